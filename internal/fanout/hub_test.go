package fanout

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	received [][]byte
	failAfter int
	sent     int
}

func (f *fakeConn) Send(payload []byte) error {
	f.sent++
	if f.failAfter > 0 && f.sent > f.failAfter {
		return errors.New("connection closed")
	}
	f.received = append(f.received, payload)
	return nil
}

func TestBroadcastDeliversToAllConnections(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a, b := &fakeConn{}, &fakeConn{}
	h.Register("a", a)
	h.Register("b", b)

	h.Broadcast([]byte("hello"))

	assert.Equal(t, [][]byte{[]byte("hello")}, a.received)
	assert.Equal(t, [][]byte{[]byte("hello")}, b.received)
}

func TestBroadcastPrunesFailingConnections(t *testing.T) {
	h := NewHub(zerolog.Nop())
	dead := &fakeConn{failAfter: 1}
	h.Register("dead", dead)
	assert.Equal(t, 1, h.ConnectionCount())

	h.Broadcast([]byte("ok"))
	h.Broadcast([]byte("msg"))

	assert.Equal(t, 0, h.ConnectionCount())
}

func TestRegisterReplacesExistingConnection(t *testing.T) {
	h := NewHub(zerolog.Nop())
	first, second := &fakeConn{}, &fakeConn{}
	h.Register("id", first)
	h.Register("id", second)
	assert.Equal(t, 1, h.ConnectionCount())

	h.Broadcast([]byte("x"))

	assert.Empty(t, first.received)
	assert.NotEmpty(t, second.received)
}

func TestUnregisterRemovesConnection(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.Register("id", &fakeConn{})
	h.Unregister("id")
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestBroadcastNoConnectionsIsNoOp(t *testing.T) {
	h := NewHub(zerolog.Nop())
	assert.NotPanics(t, func() { h.Broadcast([]byte("x")) })
}
