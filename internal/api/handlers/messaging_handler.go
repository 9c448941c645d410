package handlers

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/coachhub-backend/internal/api/middleware"
	"github.com/welldanyogia/coachhub-backend/internal/api/response"
	"github.com/welldanyogia/coachhub-backend/internal/models"
	"github.com/welldanyogia/coachhub-backend/internal/repository"
	"github.com/welldanyogia/coachhub-backend/internal/services"
	"github.com/welldanyogia/coachhub-backend/internal/validator"
)

// MessagingHandler handles conversation and direct message HTTP requests
type MessagingHandler struct {
	service services.MessagingService
}

// NewMessagingHandler creates a new MessagingHandler
func NewMessagingHandler(service services.MessagingService) *MessagingHandler {
	return &MessagingHandler{service: service}
}

// EditMessageRequest represents the request body for editing a message
type EditMessageRequest struct {
	Content string `json:"content"`
}

// MarkReadRequest represents the request body for marking messages as read
type MarkReadRequest struct {
	MessageIDs []string `json:"messageIds"`
}

// UnreadCountResponse is the body of the unread counter endpoint
type UnreadCountResponse struct {
	ConversationID string `json:"conversationId"`
	UnreadCount    int    `json:"unreadCount"`
}

// CreateConversation handles POST /api/messaging/conversations
func (h *MessagingHandler) CreateConversation(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	var req services.CreateConversationInput
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	conversation, err := h.service.CreateConversation(c.Request().Context(), req, requester.Participant)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, conversation)
}

// ListConversations handles GET /api/messaging/conversations
func (h *MessagingHandler) ListConversations(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	limit, offset, err := pagination(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	query := services.ConversationQuery{
		Search: c.QueryParam("search"),
		Limit:  limit,
		Offset: offset,
	}
	if raw := c.QueryParam("unreadOnly"); raw != "" {
		query.UnreadOnly, err = strconv.ParseBool(raw)
		if err != nil {
			return response.BadRequest(c, "unreadOnly must be a boolean")
		}
	}

	conversations, total, err := h.service.GetConversations(c.Request().Context(), query, requester.Participant)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, conversations, total, limit, offset)
}

// GetConversation handles GET /api/messaging/conversations/:id
func (h *MessagingHandler) GetConversation(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	id := c.Param("id")
	if validator.ValidateID(id) != nil {
		return response.BadRequest(c, "invalid conversation ID")
	}

	conversation, err := h.service.GetConversation(c.Request().Context(), id, requester.Participant)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, conversation)
}

// SendMessage handles POST /api/messaging/conversations/:id/messages
func (h *MessagingHandler) SendMessage(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	id := c.Param("id")
	if validator.ValidateID(id) != nil {
		return response.BadRequest(c, "invalid conversation ID")
	}

	var req services.SendMessageInput
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	message, err := h.service.SendMessage(c.Request().Context(), id, req, requester.Participant, requester.Name)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, message)
}

// ListMessages handles GET /api/messaging/conversations/:id/messages
func (h *MessagingHandler) ListMessages(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	id := c.Param("id")
	if validator.ValidateID(id) != nil {
		return response.BadRequest(c, "invalid conversation ID")
	}

	limit, offset, err := pagination(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	filter := repository.MessageFilter{
		Type:   models.MessageType(c.QueryParam("type")),
		Search: c.QueryParam("search"),
		Limit:  limit,
		Offset: offset,
	}
	if filter.Before, err = timeParam(c, "before"); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if filter.After, err = timeParam(c, "after"); err != nil {
		return response.BadRequest(c, err.Error())
	}

	messages, total, err := h.service.GetMessages(c.Request().Context(), id, filter, requester.Participant)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, messages, total, limit, offset)
}

// UnreadCount handles GET /api/messaging/conversations/:id/unread-count
func (h *MessagingHandler) UnreadCount(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	id := c.Param("id")
	if validator.ValidateID(id) != nil {
		return response.BadRequest(c, "invalid conversation ID")
	}

	count, err := h.service.GetUnreadCount(c.Request().Context(), id, requester.Participant)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, UnreadCountResponse{ConversationID: id, UnreadCount: count})
}

// EditMessage handles PATCH /api/messaging/messages/:id
func (h *MessagingHandler) EditMessage(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	id := c.Param("id")
	if validator.ValidateID(id) != nil {
		return response.BadRequest(c, "invalid message ID")
	}

	var req EditMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	message, err := h.service.EditMessage(c.Request().Context(), id, req.Content, requester.Participant)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, message)
}

// DeleteMessage handles DELETE /api/messaging/messages/:id
func (h *MessagingHandler) DeleteMessage(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	id := c.Param("id")
	if validator.ValidateID(id) != nil {
		return response.BadRequest(c, "invalid message ID")
	}

	if err := h.service.DeleteMessage(c.Request().Context(), id, requester.Participant); err != nil {
		return response.Error(c, err)
	}
	return response.NoContent(c)
}

// MarkAsRead handles POST /api/messaging/messages/read
func (h *MessagingHandler) MarkAsRead(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	var req MarkReadRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	receipts, err := h.service.MarkAsRead(c.Request().Context(), req.MessageIDs, requester.Participant)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, receipts)
}

// CreateSupportConversation handles POST /api/messaging/support
func (h *MessagingHandler) CreateSupportConversation(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	conversation, err := h.service.CreateSupportConversation(c.Request().Context(), requester.ID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, conversation)
}

// pagination reads limit and offset, clamped to the allowed range
func pagination(c echo.Context) (int, int, error) {
	limit, offset := 0, 0
	var err error
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return 0, 0, errInvalidParam("limit")
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil {
			return 0, 0, errInvalidParam("offset")
		}
	}
	limit, offset = validator.ValidatePagination(limit, offset)
	return limit, offset, nil
}

func timeParam(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errInvalidParam(name)
	}
	t = t.UTC()
	return &t, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string {
	return "invalid " + string(e) + " parameter"
}
