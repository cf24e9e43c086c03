package game

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const CLIENT_QUEUE_SIZE = 256

// wsConn is the part of a websocket connection the hub writes through.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client owns one connection. Messages are written in the order they were
// queued by a single writer goroutine; when the queue is full they are dropped.
type Client struct {
	conn      wsConn
	userID    string
	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan interface{}
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			log.Println("[WS] Hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Client connected: %s (Total: %d)", client.userID, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				log.Printf("[WS] Client disconnected: %s (Total: %d)", client.userID, len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			jsonMessage, err := json.Marshal(message)
			if err != nil {
				log.Printf("[WS] Marshal error: %v", err)
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				client.enqueue(jsonMessage)
			}
			h.mu.RUnlock()
		}
	}
}

// Stop ends Run and closes every client connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Broadcast never blocks; messages are dropped when the queue is full.
func (h *Hub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("[WS] Broadcast channel full, dropping message")
	}
}

// Handle forwards engine events to every connected client. Samples go out in
// the compact "update" shape; everything else carries the full event.
func (h *Hub) Handle(ev Event) {
	if ev.Type == EventTick {
		h.Broadcast(map[string]interface{}{
			"type":       string(EventTick),
			"multiplier": ev.Multiplier,
			"round_id":   ev.RoundID,
		})
		return
	}
	h.Broadcast(WSMessage{Type: string(ev.Type), Data: ev})
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.queue <- data:
	default:
		log.Printf("[WS] Send queue full for user %s, dropping message", c.userID)
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.queue:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[WS] Write error for user %s: %v", c.userID, err)
			}
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Send queues one message for this client only, behind anything already
// queued for it.
func (c *Client) Send(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Send marshal error: %v", err)
		return
	}
	c.enqueue(data)
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID string) *Client {
	return h.addClient(conn, userID)
}

func (h *Hub) addClient(conn wsConn, userID string) *Client {
	client := &Client{
		conn:   conn,
		userID: userID,
		queue:  make(chan []byte, CLIENT_QUEUE_SIZE),
		done:   make(chan struct{}),
	}
	go client.writeLoop()

	select {
	case h.register <- client:
	case <-h.quit:
		client.close()
	}
	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}
