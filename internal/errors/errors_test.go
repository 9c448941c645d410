package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAppError_CreatesErrorWithCorrectFields(t *testing.T) {
	baseErr := errors.New("base error")
	appErr := NewAppError(baseErr, "custom message", CodeNotFound)

	assert.Equal(t, baseErr, appErr.Err)
	assert.Equal(t, "custom message", appErr.Message)
	assert.Equal(t, CodeNotFound, appErr.Code)
}

func TestAppError_Error_ReturnsMessage(t *testing.T) {
	appErr := NewAppError(errors.New("base error"), "custom message", CodeNotFound)

	assert.Equal(t, "custom message", appErr.Error())
}

func TestAppError_Error_ReturnsBaseErrorWhenNoMessage(t *testing.T) {
	appErr := NewAppError(errors.New("base error"), "", CodeNotFound)

	assert.Equal(t, "base error", appErr.Error())
}

func TestBadRequest_WrapsInvalidInput(t *testing.T) {
	err := BadRequest("direct conversations require exactly 2 participants")

	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, CodeInvalidInput, GetErrorCode(err))
	assert.Equal(t, "direct conversations require exactly 2 participants", err.Error())
}

func TestWrap_WrapsErrorWithContext(t *testing.T) {
	wrapped := Wrap(errors.New("base error"), "context")

	assert.Contains(t, wrapped.Error(), "context")
	assert.Contains(t, wrapped.Error(), "base error")
}

func TestWrap_ReturnsNilForNilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
}

func TestIsNotFound_ReturnsTrueForNotFoundErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"ErrNotFound", ErrNotFound, true},
		{"ErrConversationNotFound", ErrConversationNotFound, true},
		{"ErrMessageNotFound", ErrMessageNotFound, true},
		{"ErrThreadNotFound", ErrThreadNotFound, true},
		{"ErrAdminNotFound", ErrAdminNotFound, true},
		{"wrapped ErrNotFound", Wrap(ErrNotFound, "context"), true},
		{"other error", errors.New("other"), false},
		{"ErrDuplicateEntry", ErrDuplicateEntry, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFound(tt.err))
		})
	}
}

func TestIsForbidden_MatchesParticipantAndSenderErrors(t *testing.T) {
	assert.True(t, IsForbidden(ErrForbidden))
	assert.True(t, IsForbidden(ErrNotParticipant))
	assert.True(t, IsForbidden(ErrNotSender))
	assert.False(t, IsForbidden(ErrNotFound))
}

func TestGetErrorCode_ReturnsCorrectCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrNotFound", ErrNotFound, CodeNotFound},
		{"ErrConversationNotFound", ErrConversationNotFound, CodeNotFound},
		{"ErrThreadNotFound", ErrThreadNotFound, CodeNotFound},
		{"ErrDuplicateEntry", ErrDuplicateEntry, CodeDuplicateEntry},
		{"ErrInvalidInput", ErrInvalidInput, CodeInvalidInput},
		{"ErrNoEmailAccounts", ErrNoEmailAccounts, CodeInvalidInput},
		{"ErrUnauthorized", ErrUnauthorized, CodeUnauthorized},
		{"ErrForbidden", ErrForbidden, CodeForbidden},
		{"ErrNotSender", ErrNotSender, CodeForbidden},
		{"ErrSyncInProgress", ErrSyncInProgress, CodeSyncInProgress},
		{"explicit code", NewAppError(ErrInternal, "boom", CodeForbidden), CodeForbidden},
		{"unknown error", errors.New("unknown"), CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCode(tt.err))
		})
	}
}

func TestAppError_CanBeUnwrappedWithErrorsIs(t *testing.T) {
	appErr := NewAppError(ErrNotFound, "test", CodeNotFound)

	assert.True(t, errors.Is(appErr, ErrNotFound))
}
