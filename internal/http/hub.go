package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/service/tracker"
)

const writeWait = 5 * time.Second

// Hub fans session state updates out to WebSocket clients.
type Hub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	last       *tracker.State
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
}

// NewHub creates a hub. Call Run to start delivering updates.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			// Presenter views are served from other origins during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logging.WithComponent("ws-hub"),
	}
}

// Run forwards every state from updates to all connected clients. New clients receive the
// latest state on connect. Run returns when ctx is done or updates is closed, closing all
// client connections.
func (h *Hub) Run(ctx context.Context, updates <-chan tracker.State) {
	defer close(h.done)
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			last := h.last
			h.mu.Unlock()
			h.logger.Debug().Int("clients", h.Count()).Msg("Client connected")
			if last != nil {
				h.write(conn, *last)
			}

		case conn := <-h.unregister:
			h.remove(conn)
			h.logger.Debug().Int("clients", h.Count()).Msg("Client disconnected")

		case st, ok := <-updates:
			if !ok {
				return
			}
			h.mu.Lock()
			h.last = &st
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				conns = append(conns, conn)
			}
			h.mu.Unlock()
			for _, conn := range conns {
				h.write(conn, st)
			}
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, st tracker.State) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(st); err != nil {
		h.logger.Debug().Err(err).Msg("Write error, dropping client")
		h.remove(conn)
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(h.clients, conn)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the connection. Incoming messages are
// discarded; the read loop only detects disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
