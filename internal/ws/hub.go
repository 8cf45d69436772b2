// Package ws provides a lightweight WebSocket broadcast hub.
// The feed publishes full snapshots through the hub and every connected client
// receives them in real time. A newly registered client is sent the latest
// snapshot right away instead of waiting for the next tick. The hub also
// handles ping/pong keepalives so stale connections get cleaned up.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Hub manages WebSocket client connections and fans out broadcast messages
// to all of them. It is safe for concurrent use; register, unregister, and
// broadcast all go through channels.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	upgrader   websocket.Upgrader

	last  []byte // most recent broadcast, replayed on register
	count atomic.Int64
	sent  atomic.Uint64
}

// NewHub allocates a hub with buffered channels.
// Call Run in a goroutine to start the event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn, 16),
		unregister: make(chan *websocket.Conn, 16),
		broadcast:  make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Sent returns the number of messages written to clients so far.
func (h *Hub) Sent() uint64 {
	return h.sent.Load()
}

// Run processes registrations, unregistrations, broadcasts, and keepalive
// pings in a single select loop. It closes all clients when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(20 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			if h.last != nil {
				h.write(c, h.last)
			}

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			h.last = msg
			for c := range h.clients {
				h.write(c, msg)
			}

		case <-ping.C:
			for c := range h.clients {
				_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) write(c *websocket.Conn, msg []byte) {
	_ = c.SetWriteDeadline(time.Now().Add(3 * time.Second))
	if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
		h.drop(c)
		return
	}
	h.sent.Add(1)
}

func (h *Hub) drop(c *websocket.Conn) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.count.Store(int64(len(h.clients)))
	}
	_ = c.Close()
}

// Handler returns an http.Handler that upgrades incoming requests to
// WebSocket connections and registers them with the hub.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		h.register <- conn

		go func() {
			defer func() { h.unregister <- conn }()
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			conn.SetPongHandler(func(string) error {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				return nil
			})

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

// BroadcastJSON marshals v to JSON and queues it for delivery to all
// connected clients. If the broadcast channel is full the message is
// silently dropped to avoid blocking the caller.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- b:
	default:
	}
}
