// Package fanout implements the live-update broadcast hub (spec §4.H):
// every pipeline/rules event is published once and forwarded to every
// connected WebSocket client, with no replay buffer — a client that
// wasn't connected when an event fired simply never sees it. The hub
// itself holds connections; a Redis subscriber feeds it so multiple
// daemon replicas stay in sync without talking to each other directly.
package fanout

import (
	"sync"

	"github.com/rs/zerolog"
)

// Connection is anything the hub can push a message to. gorilla/websocket's
// *websocket.Conn satisfies this through the wsConnection adapter in
// server.go; tests substitute an in-memory fake.
type Connection interface {
	Send(payload []byte) error
}

// Hub tracks every live connection and broadcasts to all of them,
// pruning any connection whose first write fails (spec §4.H: "a send
// failure disconnects that client; it never blocks or retries").
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Connection
	log   zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		conns: make(map[string]Connection),
		log:   log.With().Str("component", "fanout").Logger(),
	}
}

// Register adds a connection under id, replacing any prior connection
// registered under the same id.
func (h *Hub) Register(id string, c Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = c
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast sends payload to every registered connection, dropping (and
// unregistering) any connection whose Send errors. No history is kept:
// a client that connects after Broadcast returns never sees this event.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	targets := make(map[string]Connection, len(h.conns))
	for id, c := range h.conns {
		targets[id] = c
	}
	h.mu.RUnlock()

	var dead []string
	for id, c := range targets {
		if err := c.Send(payload); err != nil {
			h.log.Debug().Err(err).Str("conn_id", id).Msg("dropping connection after failed send")
			dead = append(dead, id)
		}
	}
	if len(dead) == 0 {
		return
	}
	h.mu.Lock()
	for _, id := range dead {
		delete(h.conns, id)
	}
	h.mu.Unlock()
}
