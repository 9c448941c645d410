package errors

import (
	"errors"
	"fmt"
)

// Domain-specific error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateEntry indicates a unique constraint violation
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates forbidden access
	ErrForbidden = errors.New("forbidden")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal server error")

	// ErrConversationNotFound indicates the conversation was not found
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound indicates the message was not found
	ErrMessageNotFound = errors.New("message not found")

	// ErrThreadNotFound indicates the email thread was not found
	ErrThreadNotFound = errors.New("email thread not found")

	// ErrAdminNotFound indicates no active administrator exists for support chats
	ErrAdminNotFound = errors.New("no active admin found")

	// ErrNoEmailAccounts indicates the coach has no syncable mailbox
	ErrNoEmailAccounts = errors.New("No active email accounts found")

	// ErrSyncInProgress indicates another sync for the same coach holds the lock
	ErrSyncInProgress = errors.New("email sync already in progress")

	// ErrNotParticipant indicates the requester is not part of the conversation
	ErrNotParticipant = fmt.Errorf("not a participant of this conversation: %w", ErrForbidden)

	// ErrNotSender indicates the requester did not author the message
	ErrNotSender = fmt.Errorf("only the sender can modify this message: %w", ErrForbidden)
)

// Error codes for API responses
const (
	CodeNotFound       = "NOT_FOUND"
	CodeDuplicateEntry = "DUPLICATE_ENTRY"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeSyncInProgress = "SYNC_IN_PROGRESS"
	CodeInternalError  = "INTERNAL_ERROR"
)

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// BadRequest builds a validation error carrying a client-facing message
func BadRequest(message string) *AppError {
	return NewAppError(ErrInvalidInput, message, CodeInvalidInput)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConversationNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrThreadNotFound) ||
		errors.Is(err, ErrAdminNotFound)
}

// IsDuplicateEntry checks if the error is a duplicate entry error
func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDuplicateEntry)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNoEmailAccounts)
}

// IsForbidden checks if the error is a forbidden error
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// GetErrorCode returns the appropriate error code for an error
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}

	switch {
	case IsNotFound(err):
		return CodeNotFound
	case IsDuplicateEntry(err):
		return CodeDuplicateEntry
	case IsInvalidInput(err):
		return CodeInvalidInput
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case IsForbidden(err):
		return CodeForbidden
	case errors.Is(err, ErrSyncInProgress):
		return CodeSyncInProgress
	default:
		return CodeInternalError
	}
}
