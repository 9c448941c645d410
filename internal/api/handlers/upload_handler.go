package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/coachhub-backend/internal/api/response"
	"github.com/welldanyogia/coachhub-backend/internal/logger"
	"github.com/welldanyogia/coachhub-backend/internal/storage"
	"github.com/welldanyogia/coachhub-backend/internal/validator"
)

const uploadsPath = "/api/messaging/uploads/"

// UploadHandler stores and serves message attachments
type UploadHandler struct {
	fileStorage storage.FileStorage
	secLogger   *logger.SecurityLogger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(fileStorage storage.FileStorage, secLogger *logger.SecurityLogger) *UploadHandler {
	return &UploadHandler{
		fileStorage: fileStorage,
		secLogger:   secLogger,
	}
}

// UploadResponse carries the values a file message is sent with
type UploadResponse struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// Upload handles POST /api/messaging/uploads
func (h *UploadHandler) Upload(c echo.Context) error {
	header, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "file is required")
	}

	filename := validator.SanitizeFilename(header.Filename)
	if err := storage.ValidateFile(filename, header.Size); err != nil {
		h.secLogger.BlockedFileUpload(c.RealIP(), filename, err.Error())
		return response.BadRequest(c, err.Error())
	}

	src, err := header.Open()
	if err != nil {
		return response.BadRequest(c, "failed to read upload")
	}
	defer src.Close()

	stored, err := h.fileStorage.Save(filename, src)
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) || errors.Is(err, storage.ErrEmptyFile) || errors.Is(err, storage.ErrBlockedExt) {
			return response.BadRequest(c, err.Error())
		}
		return response.InternalError(c, "failed to store file")
	}

	return response.Created(c, UploadResponse{
		FileURL:  uploadsPath + stored.Name,
		FileName: filename,
		FileSize: stored.Size,
	})
}

// Download handles GET /api/messaging/uploads/:name
func (h *UploadHandler) Download(c echo.Context) error {
	name := c.Param("name")

	file, err := h.fileStorage.Open(name)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrPathTraversal):
			h.secLogger.PathTraversalAttempt(c.RealIP(), c.Path(), name)
			return response.BadRequest(c, "invalid file name")
		case errors.Is(err, storage.ErrFileNotFound):
			return response.NotFound(c, "file not found")
		default:
			return response.InternalError(c, "failed to retrieve file")
		}
	}
	defer file.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))

	if _, err := io.Copy(c.Response(), file); err != nil {
		return response.InternalError(c, "failed to send file")
	}
	return nil
}
