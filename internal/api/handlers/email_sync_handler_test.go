package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	apperrors "github.com/welldanyogia/coachhub-backend/internal/errors"
	"github.com/welldanyogia/coachhub-backend/internal/mocks"
	"github.com/welldanyogia/coachhub-backend/internal/models"
	"github.com/welldanyogia/coachhub-backend/internal/services"
)

// EmailSyncHandlerTestSuite is the test suite for EmailSyncHandler
type EmailSyncHandlerTestSuite struct {
	suite.Suite
	echo        *echo.Echo
	handler     *EmailSyncHandler
	mockService *mocks.MockEmailSyncService
}

func (s *EmailSyncHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.mockService = new(mocks.MockEmailSyncService)
	s.handler = NewEmailSyncHandler(s.mockService)
}

func (s *EmailSyncHandlerTestSuite) TearDownTest() {
	s.mockService.AssertExpectations(s.T())
}

func TestEmailSyncHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(EmailSyncHandlerTestSuite))
}

func (s *EmailSyncHandlerTestSuite) TestSync_ReturnsResult() {
	c, rec := newContext(s.echo, http.MethodPost, "/api/email-sync/sync", "", &testCoach)

	syncedAt := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s.mockService.On("SyncClientEmails", mock.Anything, "coach-1").Return(&services.SyncResult{
		TotalProcessed:    4,
		ClientEmailsFound: 2,
		Errors:            []services.SyncError{{Account: "coach@gmail.com", Error: "token refresh failed"}},
		SyncedAt:          syncedAt,
	}, nil)

	s.NoError(s.handler.Sync(c))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"totalProcessed":4`)
	s.Contains(rec.Body.String(), `"clientEmailsFound":2`)
	s.Contains(rec.Body.String(), `"account":"coach@gmail.com"`)
}

func (s *EmailSyncHandlerTestSuite) TestSync_ErrorMapping() {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"no accounts", apperrors.ErrNoEmailAccounts, http.StatusBadRequest, "No active email accounts found"},
		{"unknown coach", apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"overlap", apperrors.ErrSyncInProgress, http.StatusConflict, "SYNC_IN_PROGRESS"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			c, rec := newContext(s.echo, http.MethodPost, "/api/email-sync/sync", "", &testCoach)
			s.mockService.On("SyncClientEmails", mock.Anything, "coach-1").Return(nil, tt.err)

			s.NoError(s.handler.Sync(c))
			s.Equal(tt.wantStatus, rec.Code)
			s.Contains(rec.Body.String(), tt.wantBody)
			s.mockService.AssertExpectations(s.T())
		})
	}
}

func (s *EmailSyncHandlerTestSuite) TestSync_Unauthenticated() {
	c, rec := newContext(s.echo, http.MethodPost, "/api/email-sync/sync", "", nil)

	s.NoError(s.handler.Sync(c))
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *EmailSyncHandlerTestSuite) TestListThreads_PassesFilters() {
	c, rec := newContext(s.echo, http.MethodGet, "/api/email-sync/threads?status=active&limit=5", "", &testCoach)

	s.mockService.On("GetEmailThreads", mock.Anything, "coach-1", "active", 5).
		Return([]models.EmailThread{{ID: "thread-1", Subject: "Session notes"}}, nil)

	s.NoError(s.handler.ListThreads(c))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Session notes")
}

func (s *EmailSyncHandlerTestSuite) TestListThreads_DefaultLimit() {
	c, rec := newContext(s.echo, http.MethodGet, "/api/email-sync/threads", "", &testCoach)

	s.mockService.On("GetEmailThreads", mock.Anything, "coach-1", "", 0).Return([]models.EmailThread{}, nil)

	s.NoError(s.handler.ListThreads(c))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *EmailSyncHandlerTestSuite) TestListThreads_BadLimit() {
	c, rec := newContext(s.echo, http.MethodGet, "/api/email-sync/threads?limit=ten", "", &testCoach)

	s.NoError(s.handler.ListThreads(c))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *EmailSyncHandlerTestSuite) TestGetThread() {
	c, rec := newContext(s.echo, http.MethodGet, "/", "", &testCoach)
	c.SetParamNames("id")
	c.SetParamValues("thread-1")

	s.mockService.On("GetEmailThread", mock.Anything, "coach-1", "thread-1").
		Return(&models.EmailThread{ID: "thread-1", Client: &models.Client{ID: "client-1", Name: "Casey"}}, nil)

	s.NoError(s.handler.GetThread(c))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"client"`)
}

func (s *EmailSyncHandlerTestSuite) TestGetThread_OtherCoach() {
	c, rec := newContext(s.echo, http.MethodGet, "/", "", &testCoach)
	c.SetParamNames("id")
	c.SetParamValues("thread-2")

	s.mockService.On("GetEmailThread", mock.Anything, "coach-1", "thread-2").Return(nil, apperrors.ErrThreadNotFound)

	s.NoError(s.handler.GetThread(c))
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *EmailSyncHandlerTestSuite) TestMarkThread() {
	c, rec := newContext(s.echo, http.MethodPost, "/", `{"isRead":false}`, &testCoach)
	c.SetParamNames("id")
	c.SetParamValues("thread-1")

	s.mockService.On("UpdateThreadStatus", mock.Anything, "coach-1", "thread-1", false).
		Return(&models.EmailThread{ID: "thread-1", IsRead: false}, nil)

	s.NoError(s.handler.MarkThread(c))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"isRead":false`)
}

func (s *EmailSyncHandlerTestSuite) TestMarkThread_MissingFlag() {
	c, rec := newContext(s.echo, http.MethodPost, "/", `{}`, &testCoach)
	c.SetParamNames("id")
	c.SetParamValues("thread-1")

	s.NoError(s.handler.MarkThread(c))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *EmailSyncHandlerTestSuite) TestStats() {
	c, rec := newContext(s.echo, http.MethodGet, "/api/email-sync/stats", "", &testCoach)

	s.mockService.On("GetSyncStats", mock.Anything, "coach-1").
		Return(&models.SyncStats{UnreadThreads: 3, NewThreadsToday: 1}, nil)

	s.NoError(s.handler.Stats(c))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"unreadThreads":3`)
	s.Contains(rec.Body.String(), `"lastSyncAt":null`)
}
