package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phenomenon0/dugout-tracker/pkg/tracker/metrics"
)

// EventType classifies a streamed event.
type EventType string

const (
	EventTypeState     EventType = "state"
	EventTypePrice     EventType = "price"
	EventTypeOrder     EventType = "order"
	EventTypeAdvice    EventType = "advice"
	EventTypeError     EventType = "error"
	EventTypeHeartbeat EventType = "heartbeat"
)

// Event is a streaming event sent to browser clients.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Hub manages WebSocket connections and broadcasts events.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan Event
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex
	metrics    *metrics.TrackerMetrics

	upgrader websocket.Upgrader
}

// wsClient is one browser connection.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Subscription filters
	subMu    sync.RWMutex
	types    map[EventType]bool
	sessions map[string]bool // empty: all sessions
}

// NewHub creates a streaming hub.
func NewHub(m *metrics.TrackerMetrics) *Hub {
	if m == nil {
		m = metrics.Default()
	}
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		metrics:    m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // browser frontend may ship from anywhere
			},
		},
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.WSClients.Set(float64(n))
			log.Printf("[WS] client connected (%d total)", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.WSClients.Set(float64(n))
			log.Printf("[WS] client disconnected (%d remaining)", n)

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-heartbeat.C:
			h.Broadcast(Event{
				Type:      EventTypeHeartbeat,
				Timestamp: time.Now(),
				Data:      map[string]interface{}{"clients": h.ClientCount()},
			})
		}
	}
}

func (h *Hub) broadcastEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[WS] failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.wants(event) {
			continue
		}

		select {
		case client.send <- data:
		default:
			// Client buffer full, drop the connection
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Broadcast queues an event for all connected clients.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[WS] broadcast channel full, dropping event")
	}
}

// BroadcastState broadcasts a game state snapshot.
func (h *Hub) BroadcastState(sessionID string, snapshot interface{}) {
	h.Broadcast(Event{Type: EventTypeState, SessionID: sessionID, Data: snapshot})
}

// BroadcastPrices broadcasts a market price snapshot.
func (h *Hub) BroadcastPrices(sessionID string, prices interface{}) {
	h.Broadcast(Event{Type: EventTypePrice, SessionID: sessionID, Data: prices})
}

// BroadcastOrder broadcasts an order result.
func (h *Hub) BroadcastOrder(sessionID string, order interface{}) {
	h.Broadcast(Event{Type: EventTypeOrder, SessionID: sessionID, Data: order})
}

// BroadcastAdvice broadcasts an advisor recommendation.
func (h *Hub) BroadcastAdvice(sessionID string, advice interface{}) {
	h.Broadcast(Event{Type: EventTypeAdvice, SessionID: sessionID, Data: advice})
}

// BroadcastError broadcasts an error event.
func (h *Hub) BroadcastError(sessionID string, err error, context string) {
	h.Broadcast(Event{
		Type:      EventTypeError,
		SessionID: sessionID,
		Data: map[string]interface{}{
			"error":   err.Error(),
			"context": context,
		},
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS handles WebSocket upgrade requests. An optional ?session=
// query parameter pre-filters to one session's events.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		types: map[EventType]bool{
			EventTypeState:     true,
			EventTypePrice:     true,
			EventTypeOrder:     true,
			EventTypeAdvice:    true,
			EventTypeError:     true,
			EventTypeHeartbeat: true,
		},
		sessions: make(map[string]bool),
	}

	if id := r.URL.Query().Get("session"); id != "" {
		client.sessions[id] = true
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// wants reports whether the client should receive the event.
func (c *wsClient) wants(event Event) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if !c.types[event.Type] {
		return false
	}
	if event.SessionID == "" || len(c.sessions) == 0 {
		return true
	}
	return c.sessions[event.SessionID]
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// handleMessage processes subscription updates from the client.
func (c *wsClient) handleMessage(message []byte) {
	var msg struct {
		Type     string   `json:"type"`
		Events   []string `json:"events"`
		Sessions []string `json:"sessions"`
	}

	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subMu.Lock()
		for _, event := range msg.Events {
			c.types[EventType(event)] = true
		}
		for _, id := range msg.Sessions {
			c.sessions[id] = true
		}
		c.subMu.Unlock()

	case "unsubscribe":
		c.subMu.Lock()
		for _, event := range msg.Events {
			delete(c.types, EventType(event))
		}
		for _, id := range msg.Sessions {
			delete(c.sessions, id)
		}
		c.subMu.Unlock()
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued messages into the same frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
