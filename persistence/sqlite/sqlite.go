// Package sqlite implements the default api.PersistenceStore backed by
// modernc.org/sqlite (a pure-Go driver, no cgo) through jmoiron/sqlx.
// Each Save inserts a new snapshot row tagged with a fresh
// google/uuid so multiple historical snapshots under the same persist
// name can coexist for diagnostics; Load returns the most recent one.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/momentics/logcorrelate/api"
)

const schema = `
CREATE TABLE IF NOT EXISTS correlation_snapshots (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	blob       BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_correlation_snapshots_name_created
	ON correlation_snapshots (name, created_at);
`

// Store is a sqlx-backed PersistenceStore.
type Store struct {
	db *sqlx.DB
}

var _ api.PersistenceStore = (*Store)(nil)

// Open opens (creating if absent) a SQLite database at path and ensures
// the snapshot table exists.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create correlation_snapshots schema")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Load returns the most recent blob saved under name, or
// ErrCodePersist wrapping sql.ErrNoRows if none exists yet (the caller,
// correlator.Init, treats that as "start empty").
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	var blob []byte
	err := s.db.GetContext(ctx, &blob, `
		SELECT blob FROM correlation_snapshots
		WHERE name = ? ORDER BY created_at DESC LIMIT 1`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, api.NewError(api.ErrCodePersist, "no persisted state").Wrap(err).WithContext("name", name)
		}
		return nil, errors.Wrap(err, "load correlation snapshot")
	}
	return blob, nil
}

// Save inserts a new snapshot row under name, tagged with a fresh uuid.
func (s *Store) Save(ctx context.Context, name string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO correlation_snapshots (id, name, blob, created_at)
		VALUES (?, ?, ?, ?)`, uuid.NewString(), name, blob, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "save correlation snapshot")
	}
	return nil
}
