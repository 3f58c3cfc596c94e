package realtime

import (
	"fmt"
	"job-chat/contract"
	"job-chat/domain/chat"
	"job-chat/errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Hub is the table of live connections of this process. It is the
// contract.Deliverer the broadcaster hands messages to.
type Hub struct {
	mu    sync.RWMutex
	conns map[contract.ConnectionID]*Connection
}

// NewHub returns an empty hub. Connections are added by the websocket handler.
func NewHub() *Hub {
	return &Hub{conns: make(map[contract.ConnectionID]*Connection)}
}

// Attach registers the connection and starts its write loop.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()
	conn.Start()
}

func (h *Hub) Detach(connID contract.ConnectionID) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

func (h *Hub) Deliver(connID contract.ConnectionID, message chat.Message) error {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrConnectionGone, connID)
	}
	return conn.Deliver(message)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll closes every connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := lo.Values(h.conns)
	h.conns = make(map[contract.ConnectionID]*Connection)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(websocket.CloseGoingAway, "server shutdown")
	}
}
