// Package storage keeps message attachments on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Security errors
var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrFileNotFound  = errors.New("file not found")
	ErrFileTooLarge  = errors.New("file exceeds size limit")
	ErrBlockedExt    = errors.New("file extension is blocked")
	ErrEmptyFile     = errors.New("file is empty")
)

// MaxFileSize is the maximum allowed upload size (25 MB)
const MaxFileSize = 25 * 1024 * 1024

// BlockedExtensions contains file extensions that are not allowed
var BlockedExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true,
	".pif": true, ".scr": true, ".vbs": true, ".js": true,
	".jar": true, ".ps1": true, ".sh": true, ".bash": true,
	".msi": true, ".dll": true, ".sys": true, ".html": true,
	".htm": true, ".svg": true,
}

// StoredFile describes an upload after it was written
type StoredFile struct {
	// Name is the generated storage name, used in download URLs
	Name string
	Size int64
}

// FileStorage defines the interface for attachment storage
type FileStorage interface {
	Save(filename string, content io.Reader) (*StoredFile, error)
	Open(name string) (io.ReadCloser, error)
	Delete(name string) error
}

// localStorage implements FileStorage on a single flat directory
type localStorage struct {
	basePath string
	maxSize  int64
}

// NewLocalStorage creates the upload directory when missing
func NewLocalStorage(basePath string) (FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &localStorage{basePath: basePath, maxSize: MaxFileSize}, nil
}

// ValidateFile checks file extension and declared size
func ValidateFile(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))

	if BlockedExtensions[ext] {
		return ErrBlockedExt
	}
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// resolve maps a storage name to a path inside basePath
func (s *localStorage) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) {
		return "", ErrPathTraversal
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.basePath, name))
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}
	if filepath.Dir(absPath) != absBase {
		return "", ErrPathTraversal
	}
	return absPath, nil
}

// Save writes content under a generated name. The size cap is enforced on
// the stream, not only on the declared size.
func (s *localStorage) Save(filename string, content io.Reader) (*StoredFile, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if BlockedExtensions[ext] {
		return nil, ErrBlockedExt
	}

	name := uuid.NewString() + ext
	fullPath := filepath.Join(s.basePath, name)

	file, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(file, io.LimitReader(content, s.maxSize+1))
	closeErr := file.Close()
	switch {
	case err != nil:
		os.Remove(fullPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	case closeErr != nil:
		os.Remove(fullPath)
		return nil, fmt.Errorf("failed to write file: %w", closeErr)
	case written > s.maxSize:
		os.Remove(fullPath)
		return nil, ErrFileTooLarge
	case written == 0:
		os.Remove(fullPath)
		return nil, ErrEmptyFile
	}

	return &StoredFile{Name: name, Size: written}, nil
}

// Open returns a reader for a stored file
func (s *localStorage) Open(name string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file; a missing file is not an error
func (s *localStorage) Delete(name string) error {
	fullPath, err := s.resolve(name)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
