package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// sqlDialect carries the statements that differ between SQL backends.
type sqlDialect struct {
	name   string
	schema string
	upsert string
	get    string
	delete string
	all    string
	clear  string
}

// sqlStore implements AssetStore on top of database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect sqlDialect
}

func newSQLStore(ctx context.Context, db *sql.DB, d sqlDialect) (*sqlStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, wrap(d.name, "open", err)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		return nil, wrap(d.name, "migrate", err)
	}
	return &sqlStore{db: db, dialect: d}, nil
}

func (s *sqlStore) Put(ctx context.Context, id, payload string) (string, error) {
	a := newAsset(id, payload)
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, a.ID, a.Data, a.Timestamp); err != nil {
		return "", wrap(s.dialect.name, "put", err)
	}
	return id, nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (string, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.dialect.get, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap(s.dialect.name, "get", err)
	}
	return data, true, nil
}

func (s *sqlStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.delete, id)
	return wrap(s.dialect.name, "delete", err)
}

func (s *sqlStore) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.all)
	if err != nil {
		return nil, wrap(s.dialect.name, "getAll", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, wrap(s.dialect.name, "getAll", err)
		}
		out[id] = data
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(s.dialect.name, "getAll", err)
	}
	return out, nil
}

func (s *sqlStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.clear)
	return wrap(s.dialect.name, "clear", err)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
