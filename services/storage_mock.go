package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MockFileStorage is an in-memory FileStorage for testing
type MockFileStorage struct {
	files map[string][]byte
	mu    sync.RWMutex

	// SaveErr, when set, is returned by every Save call.
	SaveErr error
}

// NewMockFileStorage creates a new mock file storage
func NewMockFileStorage() *MockFileStorage {
	return &MockFileStorage{
		files: make(map[string][]byte),
	}
}

func (m *MockFileStorage) Save(ctx context.Context, name string, body io.Reader, size int64) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}

	content, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	m.mu.Lock()
	m.files[name] = content
	m.mu.Unlock()

	return nil
}

func (m *MockFileStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	m.mu.RLock()
	content, exists := m.files[name]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *MockFileStorage) Exists(ctx context.Context, name string) (bool, error) {
	return m.FileExists(name), nil
}

func (m *MockFileStorage) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	delete(m.files, name)
	m.mu.Unlock()

	return nil
}

// GetUploadedFiles returns a copy of all stored files (for testing assertions)
func (m *MockFileStorage) GetUploadedFiles() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make(map[string][]byte, len(m.files))
	for k, v := range m.files {
		files[k] = v
	}
	return files
}

// FileExists checks if a file exists in mock storage
func (m *MockFileStorage) FileExists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.files[name]
	return exists
}

// Clear removes all files from mock storage
func (m *MockFileStorage) Clear() {
	m.mu.Lock()
	m.files = make(map[string][]byte)
	m.mu.Unlock()
}
