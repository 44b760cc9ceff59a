package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

var postgresDialect = sqlDialect{
	name: "postgres",
	schema: `CREATE TABLE IF NOT EXISTS sandbox_images (
		id         TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	upsert: `INSERT INTO sandbox_images (id, data, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, created_at = EXCLUDED.created_at`,
	get:    `SELECT data FROM sandbox_images WHERE id = $1`,
	delete: `DELETE FROM sandbox_images WHERE id = $1`,
	all:    `SELECT id, data FROM sandbox_images ORDER BY created_at, id`,
	clear:  `DELETE FROM sandbox_images`,
}

// PostgresStore persists assets in a shared Postgres table.
type PostgresStore struct {
	*sqlStore
}

func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, wrap("postgres", "open", err)
	}

	// Connection pool. Assets are large, keep the pool small.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	s, err := newSQLStore(ctx, db, postgresDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{sqlStore: s}, nil
}
