// Package websocket provides WebSocket connection management and message broadcasting.
package websocket

import (
	"log"
	"sync"
)

// outbound is a message queued for delivery. A nil audience means every
// connected client.
type outbound struct {
	data     []byte
	audience map[string]bool
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Mutex for thread-safe client access
	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop until Stop is called.
// This should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected for %s (total: %d)", client.userID, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", total)

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) deliver(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if msg.audience != nil && !msg.audience[client.userID] {
			continue
		}
		select {
		case client.send <- msg.data:
		default:
			// Client send buffer full, close connection
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Stop terminates Run and closes every client.
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	h.enqueue(outbound{data: message})
}

// SendTo sends a message to the clients of the given users only.
func (h *Hub) SendTo(userIDs []string, message []byte) {
	audience := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		audience[id] = true
	}
	h.enqueue(outbound{data: message, audience: audience})
}

func (h *Hub) enqueue(msg outbound) {
	select {
	case h.broadcast <- msg:
	default:
		log.Println("Broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Reply queues message for a single client. It reports false if the client
// is gone or its buffer is full.
func (h *Hub) Reply(client *Client, message []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.clients[client] {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client represents a WebSocket client connection of one user.
type Client struct {
	userID string
	send   chan []byte
}

// NewClient creates a new WebSocket client for userID. Anonymous clients
// only receive messages addressed to everyone.
func NewClient(userID string) *Client {
	return &Client{
		userID: userID,
		send:   make(chan []byte, 256),
	}
}

// UserID returns the user the client belongs to.
func (c *Client) UserID() string {
	return c.userID
}

// Send returns the send channel for the client.
func (c *Client) Send() chan []byte {
	return c.send
}
