// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("asset store closed")

// AssetStore is the only interface the editor depends on for image payloads.
// Swap the implementation in main.go; services never change.
//
//	Today:    assets = storage.NewSQLiteStore(...)
//	Tomorrow: assets = storage.NewPostgresStore(...)
type AssetStore interface {
	// Put stores payload under id, replacing any previous value, and returns id.
	Put(ctx context.Context, id, payload string) (string, error)
	// Get returns the payload stored under id; found is false when absent.
	Get(ctx context.Context, id string) (payload string, found bool, err error)
	Delete(ctx context.Context, id string) error
	// GetAll returns every stored payload keyed by id.
	GetAll(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
	Close() error
}

// Asset is one stored payload with its creation time.
type Asset struct {
	ID        string `json:"id"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

func newAsset(id, payload string) Asset {
	return Asset{ID: id, Data: payload, Timestamp: time.Now().UnixMilli()}
}

// Error wraps a backend failure with the operation that triggered it.
type Error struct {
	Backend string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s asset store: %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Backend: backend, Op: op, Err: err}
}
