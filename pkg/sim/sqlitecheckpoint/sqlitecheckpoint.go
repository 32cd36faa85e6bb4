// Package sqlitecheckpoint persists sim.Run checkpoints (spec §4.6) to
// a local SQLite file, for single-process durability across restarts
// without a server dependency — mirroring the teacher's
// pkg/store.SQLiteReceiptStore use of the pure-Go modernc.org/sqlite
// driver (no cgo).
package sqlitecheckpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/legalis-go/core/pkg/sim"
)

// Store implements sim.CheckpointStore on top of a SQLite database.
type Store struct {
	db *sql.DB
}

var _ sim.CheckpointStore = (*Store)(nil)

// Open opens (creating if necessary) a SQLite database at path and
// migrates the checkpoints table.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitecheckpoint: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already-open *sql.DB (sqlite driver), migrating the
// checkpoints table if needed.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS checkpoints (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		saved_at DATETIME NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Save upserts a checkpoint's bytes under key.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (key, data, saved_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at
	`, key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlitecheckpoint: save %q: %w", key, err)
	}
	return nil
}

// Load retrieves a checkpoint's bytes, returning ok=false if none is
// stored under key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM checkpoints WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlitecheckpoint: load %q: %w", key, err)
	}
	return data, true, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
