// Package storage holds the media store used for delivery confirmation photos.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PhotoStore persists an uploaded photo and returns the key it was stored under.
// Delete takes a key returned by Put; a missing object is not an error.
type PhotoStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// Photo is an uploaded file on its way to a PhotoStore.
type Photo struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// PhotoKey builds a collision-free object key for an order photo.
func PhotoKey(orderID uuid.UUID, kind, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filepath.Base(filename)))
	if ext == "" || ext == "." {
		ext = ".jpg"
	}
	return fmt.Sprintf("orders/%s/%s-%d-%s%s", orderID, kind, now.UTC().Unix(), uuid.NewString()[:8], ext)
}

// LocalStore writes photos below a root directory. Used in development.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("local photo root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create photo root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string) (string, string) {
	clean := filepath.Clean("/" + key)
	return clean, filepath.Join(s.root, clean)
}

func (s *LocalStore) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	clean, dest := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create photo dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create photo file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return strings.TrimPrefix(filepath.ToSlash(clean), "/"), nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	_, dest := s.path(key)
	if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove photo: %w", err)
	}
	return nil
}
