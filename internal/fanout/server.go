package fanout

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Vibarr is a personal single-origin service; every browser tab
	// connecting to the daemon's own origin is trusted the same way the
	// REST API already is.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConnection adapts a *websocket.Conn to the Connection interface,
// serializing concurrent writers the way gorilla/websocket requires (its
// Conn permits at most one concurrent writer).
type wsConnection struct {
	mu   chanMutex
	conn *websocket.Conn
}

type chanMutex chan struct{}

func newChanMutex() chanMutex {
	m := make(chanMutex, 1)
	m <- struct{}{}
	return m
}

func (m chanMutex) lock()   { <-m }
func (m chanMutex) unlock() { m <- struct{}{} }

func (w *wsConnection) Send(payload []byte) error {
	w.mu.lock()
	defer w.mu.unlock()
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

// ServeHTTP upgrades the request to a WebSocket, registers it with the
// hub, and blocks reading (and discarding) client frames until the
// connection closes or errors, at which point it unregisters itself.
// Vibarr's WebSocket channel is server-push only; any message content
// is accepted but ignored, existing only so the read loop can detect a
// closed connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	wc := &wsConnection{mu: newChanMutex(), conn: conn}
	h.Register(id, wc)
	h.log.Debug().Str("conn_id", id).Int("total", h.ConnectionCount()).Msg("client connected")

	defer func() {
		h.Unregister(id)
		_ = conn.Close()
		h.log.Debug().Str("conn_id", id).Int("total", h.ConnectionCount()).Msg("client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
