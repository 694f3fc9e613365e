package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore writes images to a local directory. It stands in for the
// object store when none is configured; files are never cleaned up.
type LocalStore struct {
	Dir string
}

// NewLocalStore uses dir, or the OS temp directory when dir is empty.
func NewLocalStore(dir string) *LocalStore {
	if dir == "" {
		dir = os.TempDir()
	}
	return &LocalStore{Dir: dir}
}

// Upload writes r to <dir>/<uuid>_<filename> and returns a file:// reference.
func (l *LocalStore) Upload(ctx context.Context, r io.Reader, size int64, filename, contentType string) (string, error) {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", fmt.Errorf("local store: %w", err)
	}
	path := filepath.Join(l.Dir, uuid.NewString()+"_"+filepath.Base(filename))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("local store: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("local store write: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("local store close: %w", err)
	}
	return "file://" + path, nil
}
