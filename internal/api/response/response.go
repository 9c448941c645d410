// Package response writes the JSON envelopes every API handler returns.
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/welldanyogia/coachhub-backend/internal/errors"
)

// APIResponse wraps a successful payload
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// PaginatedResponse wraps one page of a list
type PaginatedResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Meta    Meta        `json:"meta"`
}

// Meta describes the page returned
type Meta struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

var statusByCode = map[string]int{
	apperrors.CodeInvalidInput:   http.StatusBadRequest,
	apperrors.CodeUnauthorized:   http.StatusUnauthorized,
	apperrors.CodeForbidden:      http.StatusForbidden,
	apperrors.CodeNotFound:       http.StatusNotFound,
	apperrors.CodeDuplicateEntry: http.StatusConflict,
	apperrors.CodeSyncInProgress: http.StatusConflict,
}

func Success(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

func NoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// Paginated writes one page; hasMore is derived from total.
func Paginated(c echo.Context, data interface{}, total int64, limit, offset int) error {
	return c.JSON(http.StatusOK, PaginatedResponse{
		Success: true,
		Data:    data,
		Meta: Meta{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: int64(offset+limit) < total,
		},
	})
}

// Error maps err to its status code. Internal errors are not echoed to the client.
func Error(c echo.Context, err error) error {
	code := apperrors.GetErrorCode(err)
	status := statusFor(code)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	return fail(c, status, code, message)
}

func BadRequest(c echo.Context, message string) error {
	return fail(c, http.StatusBadRequest, apperrors.CodeInvalidInput, message)
}

func Unauthorized(c echo.Context, message string) error {
	return fail(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, message)
}

func Forbidden(c echo.Context, message string) error {
	return fail(c, http.StatusForbidden, apperrors.CodeForbidden, message)
}

func NotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, apperrors.CodeNotFound, message)
}

func InternalError(c echo.Context, message string) error {
	return fail(c, http.StatusInternalServerError, apperrors.CodeInternalError, message)
}

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorResponse{Success: false, Error: message, Code: code})
}

func statusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
