// Package wshub broadcasts job lifecycle events to live websocket
// listeners, giving operators a real-time feed of the queue without
// polling /recent.
package wshub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pytake/taskqueue/internal/logger"
	"github.com/pytake/taskqueue/internal/queue"
	"github.com/pytake/taskqueue/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans a queue.JobEvent out to every connected client. It implements
// queue.EventPublisher so the worker pool can publish through it
// directly.
type Hub struct {
	mu             sync.RWMutex
	clients        map[*client]struct{}
	maxConnections int
	log            *logger.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New builds a Hub capped at maxConnections simultaneous clients; 0
// means unlimited.
func New(maxConnections int, log *logger.Logger) *Hub {
	return &Hub{
		clients:        make(map[*client]struct{}),
		maxConnections: maxConnections,
		log:            log,
	}
}

// Publish implements queue.EventPublisher: it marshals the event to
// JSON and fans it out to every connected client without blocking the
// caller on a slow reader.
func (h *Hub) Publish(evt queue.JobEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}

	h.broadcast(payload)
}

// PublishRaw fans an already-encoded payload out to every connected
// client, used by BridgeFromStore to forward events received over
// Pub/Sub without re-marshaling them.
func (h *Hub) PublishRaw(payload []byte) {
	h.broadcast(payload)
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// slow client, drop this event rather than block the sender
		}
	}
}

// BridgeFromStore subscribes to the job-event Pub/Sub channel and
// rebroadcasts every message to h's websocket clients until ctx is
// canceled. This is what lets a separate worker process's job events
// reach browsers connected to the API process's /ws/events: the two
// binaries share no memory, only the store's Pub/Sub.
func (h *Hub) BridgeFromStore(ctx context.Context, db store.Store) {
	sub := db.Subscribe(ctx, queue.EventsChannel)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			h.PublishRaw([]byte(msg))
		}
	}
}

// ServeHTTP upgrades the request to a websocket connection and streams
// job events until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.maxConnections > 0 && len(h.clients) >= h.maxConnections {
		h.mu.Unlock()
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	h.mu.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("websocket upgrade failed", "error", err)
		}
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer h.removeClient(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Connections reports the current number of connected clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
