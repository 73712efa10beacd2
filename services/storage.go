package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cmsp-lab/lab-orders-api/config"
)

// ErrFileNotFound is returned by FileStorage.Open when no object has the given name.
var ErrFileNotFound = errors.New("file not found in storage")

// uploadPrefix is the key prefix used by the object storage backends.
const uploadPrefix = "uploads/"

// FileStorage stores case files by name.
type FileStorage interface {
	Save(ctx context.Context, name string, body io.Reader, size int64) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
}

// NewFileStorage builds the backend selected by STORAGE_BACKEND.
func NewFileStorage(ctx context.Context, cfg *config.Config) (FileStorage, error) {
	switch cfg.StorageBackend {
	case "s3":
		return NewS3FileStorage(ctx, cfg)
	case "minio":
		return NewMinIOFileStorage(ctx, cfg)
	case "local", "":
		return NewLocalFileStorage(cfg.UploadDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// LocalFileStorage keeps files in a directory on disk.
type LocalFileStorage struct {
	dir string
}

func NewLocalFileStorage(dir string) (*LocalFileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalFileStorage{dir: dir}, nil
}

func (s *LocalFileStorage) path(name string) (string, error) {
	clean := filepath.Base(name)
	if clean != name || clean == "." || clean == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(s.dir, clean), nil
}

// Save writes to a temporary file first so readers never see a partial upload.
func (s *LocalFileStorage) Save(ctx context.Context, name string, body io.Reader, size int64) (err error) {
	fullPath, err := s.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}
	if err = os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

func (s *LocalFileStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	fullPath, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (s *LocalFileStorage) Exists(ctx context.Context, name string) (bool, error) {
	fullPath, err := s.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

func (s *LocalFileStorage) Delete(ctx context.Context, name string) error {
	fullPath, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// ContentTypeFor maps the accepted case file extensions to a MIME type.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	case ".stl":
		return "model/stl"
	default:
		return "application/octet-stream"
	}
}
