// Package render turns documents into editable and publishable markup.
package render

import "sync"

// Target identifies the field under edit.
type Target struct {
	SectionID string `json:"section_id"`
	Field     string `json:"field"`
}

// EditGuard tracks whether a field editor holds input focus. While it does,
// surfaces must not be rebuilt from the document.
type EditGuard struct {
	mu      sync.Mutex
	editing bool
	target  Target
	seq     uint64
	onBlur  map[uint64]func()
}

func NewEditGuard() *EditGuard {
	return &EditGuard{onBlur: make(map[uint64]func())}
}

// Focus records that a field editor gained focus.
func (g *EditGuard) Focus(sectionID, field string) {
	g.mu.Lock()
	g.editing = true
	g.target = Target{SectionID: sectionID, Field: field}
	g.mu.Unlock()
}

// Blur records that the focused editor lost focus and runs the blur hooks.
// Blur without a preceding Focus is a no-op.
func (g *EditGuard) Blur() {
	g.mu.Lock()
	if !g.editing {
		g.mu.Unlock()
		return
	}
	g.editing = false
	g.target = Target{}
	hooks := make([]func(), 0, len(g.onBlur))
	for _, fn := range g.onBlur {
		hooks = append(hooks, fn)
	}
	g.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (g *EditGuard) Editing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.editing
}

// Target returns the field under edit, if any.
func (g *EditGuard) Target() (Target, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.target, g.editing
}

// OnBlur registers fn to run after every Blur and returns its remover.
func (g *EditGuard) OnBlur(fn func()) func() {
	g.mu.Lock()
	g.seq++
	id := g.seq
	g.onBlur[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.onBlur, id)
		g.mu.Unlock()
	}
}
