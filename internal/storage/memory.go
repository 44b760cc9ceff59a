package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps assets in process memory. Used for tests and
// throwaway sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[string]Asset
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assets: make(map[string]Asset)}
}

func (s *MemoryStore) Put(ctx context.Context, id, payload string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}
	s.assets[id] = newAsset(id, payload)
	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrStoreClosed
	}
	a, ok := s.assets[id]
	return a.Data, ok, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.assets, id)
	return nil
}

func (s *MemoryStore) GetAll(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make(map[string]string, len(s.assets))
	for id, a := range s.assets {
		out[id] = a.Data
	}
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.assets = make(map[string]Asset)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
