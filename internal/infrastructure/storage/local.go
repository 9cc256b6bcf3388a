package storage

import (
	"context"
	"os"
	"path/filepath"
)

// LocalStorage implements ArchiveStore using the local filesystem. It exists
// so a single-machine or development deployment can run without S3
// credentials configured.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage adapter.
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

// GetContent retrieves raw file content from local storage.
func (s *LocalStorage) GetContent(ctx context.Context, p string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.basePath, p))
}

// PutContent stores raw content to local storage.
func (s *LocalStorage) PutContent(ctx context.Context, p string, content []byte, contentType string) error {
	fullPath := filepath.Join(s.basePath, p)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(fullPath, content, 0644)
}

// Exists checks if a file exists.
func (s *LocalStorage) Exists(ctx context.Context, p string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.basePath, p))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

var _ ArchiveStore = (*LocalStorage)(nil)
