package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/coachhub-backend/internal/api/middleware"
	"github.com/welldanyogia/coachhub-backend/internal/api/response"
	"github.com/welldanyogia/coachhub-backend/internal/services"
	"github.com/welldanyogia/coachhub-backend/internal/validator"
)

// EmailSyncHandler exposes the Gmail sync and thread accessors to coaches
type EmailSyncHandler struct {
	service services.EmailSyncService
}

// NewEmailSyncHandler creates a new EmailSyncHandler
func NewEmailSyncHandler(service services.EmailSyncService) *EmailSyncHandler {
	return &EmailSyncHandler{service: service}
}

// MarkThreadRequest represents the request body of the mark-read endpoint
type MarkThreadRequest struct {
	IsRead *bool `json:"isRead"`
}

// Sync handles POST /api/email-sync/sync
func (h *EmailSyncHandler) Sync(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	result, err := h.service.SyncClientEmails(c.Request().Context(), requester.ID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, result)
}

// ListThreads handles GET /api/email-sync/threads
func (h *EmailSyncHandler) ListThreads(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil {
			return response.BadRequest(c, "invalid limit parameter")
		}
	}

	threads, err := h.service.GetEmailThreads(c.Request().Context(), requester.ID, c.QueryParam("status"), limit)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, threads)
}

// GetThread handles GET /api/email-sync/threads/:id
func (h *EmailSyncHandler) GetThread(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	id := c.Param("id")
	if validator.ValidateID(id) != nil {
		return response.BadRequest(c, "invalid thread ID")
	}

	thread, err := h.service.GetEmailThread(c.Request().Context(), requester.ID, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, thread)
}

// MarkThread handles POST /api/email-sync/threads/:id/mark-read
func (h *EmailSyncHandler) MarkThread(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	id := c.Param("id")
	if validator.ValidateID(id) != nil {
		return response.BadRequest(c, "invalid thread ID")
	}

	var req MarkThreadRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.IsRead == nil {
		return response.BadRequest(c, "isRead is required")
	}

	thread, err := h.service.UpdateThreadStatus(c.Request().Context(), requester.ID, id, *req.IsRead)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, thread)
}

// Stats handles GET /api/email-sync/stats
func (h *EmailSyncHandler) Stats(c echo.Context) error {
	requester, ok := middleware.GetRequester(c)
	if !ok {
		return response.Unauthorized(c, "missing authorization token")
	}

	stats, err := h.service.GetSyncStats(c.Request().Context(), requester.ID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, stats)
}
