package handlers

import (
	"context"
	"errors"
	"log/slog"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/coachhub-backend/internal/api/middleware"
	"github.com/welldanyogia/coachhub-backend/internal/api/response"
	apperrors "github.com/welldanyogia/coachhub-backend/internal/errors"
	"github.com/welldanyogia/coachhub-backend/internal/models"
	"github.com/welldanyogia/coachhub-backend/internal/services"
	"github.com/welldanyogia/coachhub-backend/internal/websocket"
)

// WebSocketHandler upgrades authenticated requests to realtime connections
type WebSocketHandler struct {
	hub       *websocket.Hub
	messaging services.MessagingService
	upgrader  gorillaws.Upgrader
	logger    *slog.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler. messaging may be nil,
// which leaves connections receive-only.
func NewWebSocketHandler(hub *websocket.Hub, messaging services.MessagingService, upgrader gorillaws.Upgrader, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub:       hub,
		messaging: messaging,
		upgrader:  upgrader,
		logger:    logger,
	}
}

// Connect handles GET /api/messaging/ws
func (h *WebSocketHandler) Connect(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.Warn("websocket upgrade failed",
			slog.String("participant", requester.Key()),
			slog.Any("error", err))
		return nil
	}

	client := websocket.NewClient(h.hub, conn, requester.Key(), h.sendFunc(requester), h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
	return nil
}

// sendFunc stores text frames as the requester. Only client-safe error
// messages are returned to the socket.
func (h *WebSocketHandler) sendFunc(requester middleware.Requester) websocket.SendFunc {
	if h.messaging == nil {
		return nil
	}
	return func(ctx context.Context, req websocket.SendRequest) error {
		content := req.Content
		_, err := h.messaging.SendMessage(ctx, req.ConversationID, services.SendMessageInput{
			Type:             models.MessageText,
			Content:          &content,
			ReplyToMessageID: req.ReplyToMessageID,
		}, requester.Participant, requester.Name)
		if err == nil {
			return nil
		}
		if apperrors.GetErrorCode(err) == apperrors.CodeInternalError {
			h.logger.Error("websocket send failed",
				slog.String("participant", requester.Key()),
				slog.String("conversation_id", req.ConversationID),
				slog.Any("error", err))
			return errSendFailed
		}
		return err
	}
}

var errSendFailed = errors.New("failed to send message")
