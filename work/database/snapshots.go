package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iptv-core/work/store"
)

// SnapshotStore implements store.Store on the snapshots table. An upsert
// inside one statement gives the same whole-value, last-writer-wins
// replacement semantics as the file backend's atomic rename.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore wraps an open database as a snapshot store.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Write replaces the payload for key.
func (s *SnapshotStore) Write(key string, payload []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO snapshots (key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, key, payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Read returns the payload for key and its age.
func (s *SnapshotStore) Read(key string) ([]byte, time.Duration, error) {
	var payload []byte
	var updatedAt int64
	err := s.db.QueryRow("SELECT payload, updated_at FROM snapshots WHERE key = ?", key).Scan(&payload, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, store.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return payload, time.Since(time.UnixMilli(updatedAt)), nil
}
