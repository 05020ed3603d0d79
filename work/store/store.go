package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
)

// ErrNotFound reports a missing snapshot. An expired or unreadable entry is
// treated as absent by callers, so this is the only read failure most of the
// coordinator ever branches on.
var ErrNotFound = errors.New("snapshot not found")

// Store is the persistence contract of the cache coordinator: raw source
// payloads keyed by source identity, each stamped with a last-write time so
// the read path can evaluate TTLs. Writes are whole-value replacements; there
// is no merge path, which is what makes concurrent last-writer-wins safe.
type Store interface {
	// Write replaces the payload for key atomically.
	Write(key string, payload []byte) error
	// Read returns the payload for key and its age at read time.
	Read(key string) ([]byte, time.Duration, error)
}

// FileStore keeps one file per key in a directory, named by the key's
// SHA-256 so arbitrary source URLs map onto safe file names. The write is an
// atomic rename, never an in-place update, so a concurrent reader sees either
// the old payload or the new one, nothing in between.
type FileStore struct {
	dir string
}

// NewFileStore creates the backing directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(fs.dir, hex.EncodeToString(sum[:])+".snap")
}

// Write atomically replaces the snapshot for key.
func (fs *FileStore) Write(key string, payload []byte) error {
	if err := renameio.WriteFile(fs.path(key), payload, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Read returns the snapshot payload and its age, derived from the file's
// modification time.
func (fs *FileStore) Read(key string) ([]byte, time.Duration, error) {
	path := fs.path(key)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read snapshot: %w", err)
	}

	return payload, time.Since(info.ModTime()), nil
}
