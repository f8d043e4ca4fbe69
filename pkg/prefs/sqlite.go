package prefs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	lerrors "github.com/jllopis/launcher/pkg/errors"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists preferences in the extension_prefs table. It can
// share a database with store.SQLiteStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed preference store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensurePrefsSchema(db); err != nil {
		return nil, lerrors.New(lerrors.CodeStorage, "create prefs schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Enabled implements Store.
func (s *SQLiteStore) Enabled(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM extension_prefs WHERE enabled = 1 ORDER BY seq ASC`)
	if err != nil {
		return nil, lerrors.New(lerrors.CodeStorage, "list enabled extensions", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, lerrors.New(lerrors.CodeStorage, "scan enabled extension", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, lerrors.New(lerrors.CodeStorage, "list enabled extensions", err)
	}
	return ids, nil
}

// SetEnabled implements Store. Enabling an id that is already enabled
// keeps its position.
func (s *SQLiteStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	var err error
	if enabled {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO extension_prefs (id, enabled, seq, updated_at)
			VALUES (?, 1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM extension_prefs), ?)
			ON CONFLICT(id) DO UPDATE SET
				seq = CASE WHEN extension_prefs.enabled = 1 THEN extension_prefs.seq ELSE excluded.seq END,
				enabled = 1,
				updated_at = excluded.updated_at
		`, id, time.Now().UTC())
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE extension_prefs SET enabled = 0, updated_at = ? WHERE id = ?
		`, time.Now().UTC(), id)
	}
	if err != nil {
		return lerrors.New(lerrors.CodeStorage, "store extension preference", err).WithContext("extension_id", id)
	}
	return nil
}

func ensurePrefsSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS extension_prefs (
			id TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 0,
			seq INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	return err
}
