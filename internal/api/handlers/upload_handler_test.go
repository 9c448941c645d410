package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/coachhub-backend/internal/logger"
	"github.com/welldanyogia/coachhub-backend/internal/mocks"
	"github.com/welldanyogia/coachhub-backend/internal/storage"
)

// UploadHandlerTestSuite is the test suite for UploadHandler
type UploadHandlerTestSuite struct {
	suite.Suite
	echo        *echo.Echo
	handler     *UploadHandler
	mockStorage *mocks.MockFileStorage
	securityLog *bytes.Buffer
}

func (s *UploadHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.mockStorage = new(mocks.MockFileStorage)
	s.securityLog = &bytes.Buffer{}
	secLogger := logger.NewSecurityLoggerWithHandler(slog.NewJSONHandler(s.securityLog, nil))
	s.handler = NewUploadHandler(s.mockStorage, secLogger)
}

func (s *UploadHandlerTestSuite) TearDownTest() {
	s.mockStorage.AssertExpectations(s.T())
}

func TestUploadHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(UploadHandlerTestSuite))
}

func (s *UploadHandlerTestSuite) multipartContext(filename, content string) (echo.Context, *httptest.ResponseRecorder) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	s.Require().NoError(err)
	_, err = part.Write([]byte(content))
	s.Require().NoError(err)
	s.Require().NoError(writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/messaging/uploads", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	return c, rec
}

func (s *UploadHandlerTestSuite) TestUpload_Stored() {
	c, rec := s.multipartContext("plan.pdf", "%PDF-1.4")

	s.mockStorage.On("Save", "plan.pdf", mock.Anything).
		Return(&storage.StoredFile{Name: "3f1c.pdf", Size: 8}, nil)

	s.NoError(s.handler.Upload(c))
	s.Equal(http.StatusCreated, rec.Code)
	s.Contains(rec.Body.String(), `"fileUrl":"/api/messaging/uploads/3f1c.pdf"`)
	s.Contains(rec.Body.String(), `"fileName":"plan.pdf"`)
	s.Contains(rec.Body.String(), `"fileSize":8`)
}

func (s *UploadHandlerTestSuite) TestUpload_BlockedExtension() {
	c, rec := s.multipartContext("invoice.exe", "MZ")

	s.NoError(s.handler.Upload(c))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(s.securityLog.String(), "invoice.exe")
	s.mockStorage.AssertNotCalled(s.T(), "Save", mock.Anything, mock.Anything)
}

func (s *UploadHandlerTestSuite) TestUpload_EmptyFile() {
	c, rec := s.multipartContext("notes.txt", "")

	s.mockStorage.On("Save", "notes.txt", mock.Anything).Return(nil, storage.ErrEmptyFile)

	s.NoError(s.handler.Upload(c))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "file is empty")
}

func (s *UploadHandlerTestSuite) TestUpload_MissingFile() {
	req := httptest.NewRequest(http.MethodPost, "/api/messaging/uploads", strings.NewReader(""))
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	s.NoError(s.handler.Upload(c))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *UploadHandlerTestSuite) TestDownload_Streams() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("name")
	c.SetParamValues("3f1c.pdf")

	s.mockStorage.On("Open", "3f1c.pdf").Return(io.NopCloser(strings.NewReader("%PDF-1.4")), nil)

	s.NoError(s.handler.Download(c))
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("application/pdf", rec.Header().Get(echo.HeaderContentType))
	s.Contains(rec.Header().Get(echo.HeaderContentDisposition), "attachment")
	s.Equal("%PDF-1.4", rec.Body.String())
}

func (s *UploadHandlerTestSuite) TestDownload_Errors() {
	tests := []struct {
		name       string
		file       string
		err        error
		wantStatus int
	}{
		{"missing", "gone.pdf", storage.ErrFileNotFound, http.StatusNotFound},
		{"traversal", "..", storage.ErrPathTraversal, http.StatusBadRequest},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			rec := httptest.NewRecorder()
			c := s.echo.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			c.SetParamNames("name")
			c.SetParamValues(tt.file)
			s.mockStorage.On("Open", tt.file).Return(nil, tt.err)

			s.NoError(s.handler.Download(c))
			s.Equal(tt.wantStatus, rec.Code)
			s.mockStorage.AssertExpectations(s.T())
		})
	}
}
