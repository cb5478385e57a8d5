package notify

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/HuellitasApp/HuellitasGo/pkg/logger"
	"github.com/gorilla/websocket"
)

// Hub broadcasts notices to every connected websocket client.
// Writes happen from a single pump goroutine per client so the
// gorilla one-writer rule holds.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan Notice
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// La app sirve a un front conocido; el origen se valida en el proxy
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades an HTTP request to a websocket and keeps it registered
// until the peer disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		conn: conn,
		send: make(chan Notice, 16),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	logger.Info(fmt.Sprintf("Cliente de notificaciones conectado (%d activos)", total), "Notify")

	go h.writePump(c)
	go h.readPump(c)

	return nil
}

// writePump serializes notices to a single connection
func (h *Hub) writePump(c *client) {
	for notice := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(notice); err != nil {
			h.drop(c)
			return
		}
	}
}

// readPump discards inbound frames and detects disconnects
func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// drop unregisters a client and closes its connection
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, exists := h.clients[c]; exists {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	_ = c.conn.Close()
}

// Broadcast queues a notice for every connected client. Clients whose
// buffers are full are skipped rather than blocking the engine.
func (h *Hub) Broadcast(notice Notice) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- notice:
		default:
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notifier implementation

// Success broadcasts a success notice
func (h *Hub) Success(message string) {
	h.Broadcast(Notice{Level: LevelSuccess, Message: message, Timestamp: time.Now()})
}

// Error broadcasts an error notice
func (h *Hub) Error(message string) {
	h.Broadcast(Notice{Level: LevelError, Message: message, Timestamp: time.Now()})
}

// Info broadcasts an informational notice
func (h *Hub) Info(message string) {
	h.Broadcast(Notice{Level: LevelInfo, Message: message, Timestamp: time.Now()})
}
