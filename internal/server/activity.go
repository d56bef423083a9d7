// Package server exposes the live activity feed: a small HTTP server that
// streams orchestrator events to WebSocket subscribers and answers health
// probes. The feed is observational only; nothing in the turn pipeline
// depends on it.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/loomctx/loom/internal/orchestrator"
)

// ActivityHub fans orchestrator events out to connected WebSocket clients.
// Slow clients are disconnected rather than allowed to block the feed.
type ActivityHub struct {
	clients    map[subscriber]bool
	broadcast  chan orchestrator.Event
	register   chan subscriber
	unregister chan subscriber
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	origins    []string
}

// subscriber allows for both real connections and mock clients in tests.
type subscriber interface {
	getSendChannel() chan []byte
	close()
}

// NewActivityHub creates a hub. origins lists the WebSocket origin patterns
// accepted on upgrade; empty means same-origin only.
func NewActivityHub(origins []string) *ActivityHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &ActivityHub{
		clients:    make(map[subscriber]bool),
		broadcast:  make(chan orchestrator.Event, 256),
		register:   make(chan subscriber),
		unregister: make(chan subscriber),
		ctx:        ctx,
		cancel:     cancel,
		origins:    origins,
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *ActivityHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("activity: client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.getSendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("activity: client disconnected (total: %d)", count)

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("ERROR: activity: marshal event: %v", err)
				continue
			}

			// Full lock: the default branch may delete from the map.
			h.mu.Lock()
			for client := range h.clients {
				sendChan := client.getSendChannel()
				select {
				case sendChan <- data:
				default:
					// Send buffer full; drop the client.
					close(sendChan)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			log.Println("activity: hub stopping")
			return
		}
	}
}

// Stop shuts the hub down and disconnects all clients.
func (h *ActivityHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.getSendChannel())
		client.close()
	}
	h.clients = make(map[subscriber]bool)
	h.mu.Unlock()
}

// Publish queues an event for broadcast. Non-blocking; when the feed is
// backed up the event is dropped. Suitable as an orchestrator OnActivity
// callback.
func (h *ActivityHub) Publish(event orchestrator.Event) {
	select {
	case h.broadcast <- event:
	default:
		log.Println("WARNING: activity: broadcast channel full, dropping event")
	}
}

// Register adds a subscriber to the hub.
func (h *ActivityHub) Register(client subscriber) {
	h.register <- client
}

// Unregister removes a subscriber from the hub.
func (h *ActivityHub) Unregister(client subscriber) {
	h.unregister <- client
}

// ServeHTTP upgrades the request to a WebSocket and streams events to it.
func (h *ActivityHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		log.Printf("ERROR: activity: websocket upgrade failed: %v", err)
		return
	}

	client := &feedClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.Register(client)

	go client.writePump()
	go client.readPump()
}

// feedClient is one live WebSocket subscriber.
type feedClient struct {
	hub  *ActivityHub
	conn *websocket.Conn
	send chan []byte
}

func (c *feedClient) getSendChannel() chan []byte {
	return c.send
}

func (c *feedClient) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

// writePump sends queued events to the connection.
func (c *feedClient) writePump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()

		if err != nil {
			log.Printf("ERROR: activity: websocket write failed: %v", err)
			return
		}
	}
}

// readPump drains inbound messages to detect disconnection. The feed is
// one-way; client messages are ignored.
func (c *feedClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}

// MockSubscriber is a hub client for tests.
type MockSubscriber struct {
	SendChan chan []byte
}

func (m *MockSubscriber) getSendChannel() chan []byte {
	return m.SendChan
}

func (m *MockSubscriber) close() {}
