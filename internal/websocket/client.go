package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// room for a full-length message body in multi-byte UTF-8
	maxFrameSize = 64 * 1024

	sendBuffer  = 256
	sendTimeout = 10 * time.Second
)

// SendRequest is the data of an inbound message.send frame
type SendRequest struct {
	ConversationID   string  `json:"conversationId"`
	Content          string  `json:"content"`
	ReplyToMessageID *string `json:"replyToMessageId,omitempty"`
}

// SendFunc stores a text message on behalf of the connected participant.
// The stored message reaches every participant through the hub, so the
// client only reports failures back.
type SendFunc func(ctx context.Context, req SendRequest) error

type inboundFrame struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is one authenticated connection of a participant
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	key    string
	send   chan []byte
	sendFn SendFunc
	logger *slog.Logger
}

// NewClient creates a Client for the participant identified by key.
// sendFn may be nil, in which case message.send frames are refused.
func NewClient(hub *Hub, conn *websocket.Conn, key string, sendFn SendFunc, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		hub:    hub,
		conn:   conn,
		key:    key,
		send:   make(chan []byte, sendBuffer),
		sendFn: sendFn,
		logger: logger.With(slog.String("participant", key)),
	}
}

// Key returns the participant key the connection belongs to
func (c *Client) Key() string {
	return c.key
}

// ReadPump reads frames until the connection fails, then unregisters.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket closed unexpectedly", slog.Any("error", err))
			}
			return
		}
		c.handleFrame(frame)
	}
}

// WritePump drains the send buffer and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("invalid message format")
		return
	}

	switch frame.Type {
	case MessageTypePing:
		c.enqueue(WSMessage{Type: MessageTypePong})
	case MessageTypeSend:
		c.handleSend(frame.Data)
	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) handleSend(data json.RawMessage) {
	if c.sendFn == nil {
		c.sendError("sending is not available on this connection")
		return
	}

	var req SendRequest
	if len(data) == 0 || json.Unmarshal(data, &req) != nil {
		c.sendError("invalid send payload")
		return
	}
	if req.ConversationID == "" {
		c.sendError("conversationId is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := c.sendFn(ctx, req); err != nil {
		c.logger.Debug("websocket send rejected",
			slog.String("conversation_id", req.ConversationID),
			slog.Any("error", err))
		c.sendError(err.Error())
	}
}

func (c *Client) sendError(errMsg string) {
	c.enqueue(WSMessage{Type: MessageTypeError, Error: errMsg})
}

// enqueue drops the frame when the buffer is full
func (c *Client) enqueue(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
