package mocks

import (
	"io"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/coachhub-backend/internal/storage"
)

// MockFileStorage implements storage.FileStorage
type MockFileStorage struct {
	mock.Mock
}

// Save stores an upload under a generated name
func (m *MockFileStorage) Save(filename string, content io.Reader) (*storage.StoredFile, error) {
	args := m.Called(filename, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.StoredFile), args.Error(1)
}

// Open returns a reader for a stored file
func (m *MockFileStorage) Open(name string) (io.ReadCloser, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// Delete removes a stored file
func (m *MockFileStorage) Delete(name string) error {
	args := m.Called(name)
	return args.Error(0)
}
