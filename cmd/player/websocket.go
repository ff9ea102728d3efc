// Package main provides the WebSocket hub pushing store change events to
// the player UI.
package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/retroplay/backend/internal/db"
	"github.com/retroplay/backend/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Only the local player UI may connect.
		return r.Host == "localhost" || r.Host == "localhost:8090" || r.Host == "127.0.0.1:8090"
	},
}

// Store change events. The hub only reflects mutations issued through this
// process's repository; cross-tab changes are not observed.
const (
	EventSavesChanged     = "saves.changed"
	EventFavoritesChanged = "favorites.changed"
	EventSessionsChanged  = "sessions.changed"
	EventSettingsChanged  = "settings.changed"
)

// eventForCollection maps a store collection to its wire event type.
func eventForCollection(col db.Collection) string {
	switch col {
	case db.CollectionSaveStates:
		return EventSavesChanged
	case db.CollectionFavorites:
		return EventFavoritesChanged
	case db.CollectionPlaySessions:
		return EventSessionsChanged
	case db.CollectionSettings:
		return EventSettingsChanged
	}
	return ""
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// WSClient represents a player UI connection.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub

	// subscriptions is written by readPump and read by the hub's run loop.
	subMu         sync.Mutex
	subscriptions map[string]bool
}

// WSHub maintains active client connections and broadcasts change events.
// It implements db.Notifier.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan wsMessage
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

type wsMessage struct {
	event   string
	payload []byte
}

// NewWSHub creates a running hub.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan wsMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

// CollectionChanged implements db.Notifier: a committed mutation is pushed
// to every subscribed client.
func (h *WSHub) CollectionChanged(col db.Collection) {
	event := eventForCollection(col)
	if event == "" {
		return
	}
	h.Broadcast(event, map[string]interface{}{
		"collection": string(col),
	})
}

// Broadcast sends an event to all subscribed clients.
func (h *WSHub) Broadcast(event string, data map[string]interface{}) {
	envelope := WSEnvelope{
		Type:      event,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("failed to marshal ws event", err, map[string]interface{}{"event": event})
		return
	}

	select {
	case h.broadcast <- wsMessage{event: event, payload: payload}:
	default:
		logging.Warn("ws broadcast queue full, dropping event", map[string]interface{}{"event": event})
	}
}

func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logging.Info("ws client connected", map[string]interface{}{"client": client.id, "total": total})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Info("ws client disconnected", map[string]interface{}{"client": client.id, "total": total})

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if !client.wants(msg.event) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// Client send buffer is full, drop the connection
					close(client.send)
					delete(h.clients, client.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// wants reports whether the client subscribed to event. A client with no
// explicit subscriptions receives everything.
func (c *WSClient) wants(event string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if len(c.subscriptions) == 0 {
		return true
	}
	return c.subscriptions[event]
}

// subscribe adds events to the client's subscription set.
func (c *WSClient) subscribe(events []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, event := range events {
		c.subscriptions[event] = true
	}
}

// unsubscribe removes events from the client's subscription set.
func (c *WSClient) unsubscribe(events []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, event := range events {
		delete(c.subscriptions, event)
	}
}

// eventList extracts the string entries of a decoded "events" field.
func eventList(msg map[string]interface{}) []string {
	raw, ok := msg["events"].([]interface{})
	if !ok {
		return nil
	}
	events := make([]string, 0, len(raw))
	for _, e := range raw {
		if event, ok := e.(string); ok {
			events = append(events, event)
		}
	}
	return events
}

// readPump pumps messages from the WebSocket connection.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("ws read error", map[string]interface{}{"error": err.Error()})
			}
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		action, ok := msg["action"].(string)
		if !ok {
			continue
		}

		switch action {
		case "subscribe":
			c.subscribe(eventList(msg))
		case "unsubscribe":
			c.unsubscribe(eventList(msg))
		case "ping":
			c.sendEnvelope(WSEnvelope{Type: "pong", Timestamp: time.Now().Unix()})
		}
	}
}

// writePump pumps messages to the WebSocket connection.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
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
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *WSClient) sendEnvelope(envelope WSEnvelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// HandleWebSocket upgrades a player UI connection.
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("ws upgrade failed", map[string]interface{}{"error": err.Error()})
			return
		}

		client := &WSClient{
			id:            time.Now().Format("20060102150405.000000000") + "-" + r.RemoteAddr,
			conn:          conn,
			send:          make(chan []byte, 256),
			hub:           hub,
			subscriptions: make(map[string]bool),
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}
