package service

import (
	"sync"

	"github.com/visionpointmarketing/troy-sandbox/internal/models"
)

// ChangeListener receives a copy of the document after every notifying change.
type ChangeListener func(sections []models.Section)

// HistoryListener receives the undo/redo availability after history moves.
type HistoryListener func(canUndo, canRedo bool)

type subscriber[F any] struct {
	id uint64
	fn F
}

// subscribers is an ordered listener list. Listeners run in subscription order.
type subscribers[F any] struct {
	mu   sync.Mutex
	seq  uint64
	list []subscriber[F]
}

// add registers fn and returns an idempotent unsubscribe function.
func (s *subscribers[F]) add(fn F) func() {
	s.mu.Lock()
	s.seq++
	id := s.seq
	s.list = append(s.list, subscriber[F]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *subscribers[F]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.list {
		if sub.id == id {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return
		}
	}
}

func (s *subscribers[F]) snapshot() []F {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]F, len(s.list))
	for i, sub := range s.list {
		out[i] = sub.fn
	}
	return out
}

func (s *subscribers[F]) reset() {
	s.mu.Lock()
	s.list = nil
	s.mu.Unlock()
}

func (s *subscribers[F]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}
