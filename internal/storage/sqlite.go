package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var sqliteDialect = sqlDialect{
	name: "sqlite",
	schema: `CREATE TABLE IF NOT EXISTS images (
		id         TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	upsert: `INSERT INTO images (id, data, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
	get:    `SELECT data FROM images WHERE id = ?`,
	delete: `DELETE FROM images WHERE id = ?`,
	all:    `SELECT id, data FROM images ORDER BY created_at, id`,
	clear:  `DELETE FROM images`,
}

// SQLiteStore persists assets in a local SQLite file.
type SQLiteStore struct {
	*sqlStore
	Path string
}

// NewSQLiteStore opens (and creates if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, wrap("sqlite", "open", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrap("sqlite", "open", err)
	}
	// One writer keeps SQLITE_BUSY out of concurrent imports.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 10000"); err != nil {
		db.Close()
		return nil, wrap("sqlite", "open", fmt.Errorf("busy_timeout: %w", err))
	}

	s, err := newSQLStore(ctx, db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{sqlStore: s, Path: path}, nil
}
