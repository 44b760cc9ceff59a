package storage

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// State is the initialization state of a Lazy store.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Opener creates the underlying store on first use.
type Opener func(ctx context.Context) (AssetStore, error)

// Lazy opens its backend on first use. Concurrent first callers share a
// single open attempt. A failed attempt is reported to every caller that
// waited on it; the next call starts a new attempt.
type Lazy struct {
	open  Opener
	group singleflight.Group

	mu    sync.Mutex
	state State
	store AssetStore
	err   error
}

func NewLazy(open Opener) *Lazy {
	return &Lazy{open: open}
}

// State reports the current initialization state.
func (l *Lazy) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the error of the last failed open attempt.
func (l *Lazy) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Init forces initialization. It is what every operation calls first.
func (l *Lazy) Init(ctx context.Context) error {
	_, err := l.ensure(ctx)
	return err
}

func (l *Lazy) ensure(ctx context.Context) (AssetStore, error) {
	l.mu.Lock()
	switch l.state {
	case StateReady:
		s := l.store
		l.mu.Unlock()
		return s, nil
	case StateClosed:
		l.mu.Unlock()
		return nil, ErrStoreClosed
	}
	l.state = StateInitializing
	l.mu.Unlock()

	// The shared attempt must outlive the caller that happened to start it.
	openCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan("open", func() (interface{}, error) {
		return l.openOnce(openCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(AssetStore), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Lazy) openOnce(ctx context.Context) (AssetStore, error) {
	l.mu.Lock()
	if l.state == StateReady {
		s := l.store
		l.mu.Unlock()
		return s, nil
	}
	l.mu.Unlock()

	s, err := l.open(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed {
		if s != nil {
			_ = s.Close()
		}
		return nil, ErrStoreClosed
	}
	if err != nil {
		l.state = StateFailed
		l.err = err
		return nil, err
	}
	l.state = StateReady
	l.store = s
	l.err = nil
	return s, nil
}

func (l *Lazy) Put(ctx context.Context, id, payload string) (string, error) {
	s, err := l.ensure(ctx)
	if err != nil {
		return "", err
	}
	return s.Put(ctx, id, payload)
}

func (l *Lazy) Get(ctx context.Context, id string) (string, bool, error) {
	s, err := l.ensure(ctx)
	if err != nil {
		return "", false, err
	}
	return s.Get(ctx, id)
}

func (l *Lazy) Delete(ctx context.Context, id string) error {
	s, err := l.ensure(ctx)
	if err != nil {
		return err
	}
	return s.Delete(ctx, id)
}

func (l *Lazy) GetAll(ctx context.Context) (map[string]string, error) {
	s, err := l.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetAll(ctx)
}

func (l *Lazy) Clear(ctx context.Context) error {
	s, err := l.ensure(ctx)
	if err != nil {
		return err
	}
	return s.Clear(ctx)
}

// Close closes the backend if it was opened. Later calls fail with ErrStoreClosed.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.store
	l.store = nil
	l.state = StateClosed
	if s != nil {
		return s.Close()
	}
	return nil
}
