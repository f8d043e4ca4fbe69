package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	lerrors "github.com/jllopis/launcher/pkg/errors"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists artifacts in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, lerrors.New(lerrors.CodeStorage, "open sqlite database", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewSQLiteStore creates a SQLite-backed artifact store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureArtifactSchema(db); err != nil {
		return nil, lerrors.New(lerrors.CodeStorage, "create artifact schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Put implements ArtifactStore.
func (s *SQLiteStore) Put(ctx context.Context, id string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extension_artifacts (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, id, data, time.Now().UTC())
	if err != nil {
		return lerrors.New(lerrors.CodeStorage, "store artifact", err).WithContext("extension_id", id)
	}
	return nil
}

// Get implements ArtifactStore.
func (s *SQLiteStore) Get(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM extension_artifacts WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, lerrors.New(lerrors.CodeStorage, "read artifact", err).WithContext("extension_id", id)
	}
	return data, nil
}

// Keys implements ArtifactStore.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM extension_artifacts ORDER BY id ASC`)
	if err != nil {
		return nil, lerrors.New(lerrors.CodeStorage, "list artifacts", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, lerrors.New(lerrors.CodeStorage, "scan artifact id", err)
		}
		keys = append(keys, id)
	}
	if err := rows.Err(); err != nil {
		return nil, lerrors.New(lerrors.CodeStorage, "list artifacts", err)
	}
	return keys, nil
}

// Delete implements ArtifactStore.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM extension_artifacts WHERE id = ?`, id); err != nil {
		return lerrors.New(lerrors.CodeStorage, "delete artifact", err).WithContext("extension_id", id)
	}
	return nil
}

func ensureArtifactSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS extension_artifacts (
			id TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at TIMESTAMP
		);
	`)
	return err
}

var _ ArtifactStore = (*SQLiteStore)(nil)
