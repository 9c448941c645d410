package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeNewMessage     MessageType = "message.new"
	MessageTypeMessageEdited  MessageType = "message.edited"
	MessageTypeMessageDeleted MessageType = "message.deleted"
	MessageTypeMessagesRead   MessageType = "messages.read"
	MessageTypeEmailReceived  MessageType = "email.received"
	MessageTypeSend           MessageType = "message.send"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
	MessageTypeError          MessageType = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type  MessageType `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Hub maintains the set of active clients and fans events out to them by
// participant key. One participant may hold several connections.
type Hub struct {
	// Connections per participant key
	participants map[string]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Fan-out requests
	broadcast chan *broadcastMessage

	mu     sync.RWMutex
	logger *slog.Logger
}

type broadcastMessage struct {
	keys    []string
	message []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		participants: make(map[string]map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan *broadcastMessage, 256),
		logger:       logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.participants[client.key] == nil {
				h.participants[client.key] = make(map[*Client]bool)
			}
			h.participants[client.key][client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client registered", slog.String("participant", client.key))
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.participants[client.key]; ok && conns[client] {
				delete(conns, client)
				close(client.send)
				if len(conns) == 0 {
					delete(h.participants, client.key)
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unregistered", slog.String("participant", client.key))
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, key := range msg.keys {
				for client := range h.participants[key] {
					select {
					case client.send <- msg.message:
					default:
						// Client buffer full, skip
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Connections returns how many live connections a participant holds
func (h *Hub) Connections(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.participants[key])
}

// Notify sends an event to every connection of the given participant keys.
// It never blocks: when the fan-out queue is full the event is dropped.
func (h *Hub) Notify(keys []string, eventType MessageType, payload interface{}) {
	if len(keys) == 0 {
		return
	}

	data, err := json.Marshal(WSMessage{Type: eventType, Data: payload})
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		}
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{keys: keys, message: data}:
	default:
		if h.logger != nil {
			h.logger.Warn("websocket broadcast queue full, dropping event",
				slog.String("type", string(eventType)))
		}
	}
}
