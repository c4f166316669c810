package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"goresearch/domain/core"
	"goresearch/ports"
)

// FileStore keeps artifacts under a base directory, one subdirectory per run
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

var (
	_ ports.ArtifactSinkPort = (*FileStore)(nil)
	_ ports.ArtifactReader   = (*FileStore)(nil)
)

// NewFileStore creates the base directory if needed
func NewFileStore(baseDir string) (*FileStore, error) {
	//nolint:gosec // artifacts are served read-only to other processes
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Persist writes content atomically, replacing an earlier artifact of the same name
func (s *FileStore) Persist(ctx context.Context, name string, content []byte) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.baseDir, filepath.FromSlash(name))
	//nolint:gosec // see NewFileStore
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create run dir: %w", err)
	}

	tmpPath := path + ".tmp"
	//nolint:gosec // artifacts are not secret
	if err := os.WriteFile(tmpPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to commit artifact: %w", err)
	}
	return nil
}

// Open returns a reader over a persisted artifact
func (s *FileStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(filepath.Join(s.baseDir, filepath.FromSlash(name))) //nolint:gosec // name validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrArtifactNotFound, name)
		}
		return nil, err
	}
	return f, nil
}
