package service

import "github.com/visionpointmarketing/troy-sandbox/internal/models"

// DefaultMaxHistory bounds the number of snapshots a store keeps.
const DefaultMaxHistory = 50

// History is a linear undo/redo log of full document snapshots.
// It is not safe for concurrent use; DocumentStore serializes access.
type History struct {
	entries [][]models.Section
	index   int
	max     int
}

func NewHistory(max int) *History {
	if max < 1 {
		max = DefaultMaxHistory
	}
	return &History{index: -1, max: max}
}

// Reset drops every entry.
func (h *History) Reset() {
	h.entries = nil
	h.index = -1
}

// Record appends a snapshot of sections, discarding any redo branch and
// evicting the oldest entry once the bound is exceeded.
func (h *History) Record(sections []models.Section) {
	if h.index < len(h.entries)-1 {
		for i := h.index + 1; i < len(h.entries); i++ {
			h.entries[i] = nil
		}
		h.entries = h.entries[:h.index+1]
	}

	h.entries = append(h.entries, models.CloneSections(sections))
	h.index = len(h.entries) - 1

	if len(h.entries) > h.max {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = nil
		h.entries = h.entries[:len(h.entries)-1]
		h.index--
	}
}

func (h *History) CanUndo() bool {
	return h.index > 0
}

func (h *History) CanRedo() bool {
	return h.index < len(h.entries)-1
}

// Undo steps back one entry and returns a copy of it.
func (h *History) Undo() ([]models.Section, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.index--
	return models.CloneSections(h.entries[h.index]), true
}

// Redo steps forward one entry and returns a copy of it.
func (h *History) Redo() ([]models.Section, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.index++
	return models.CloneSections(h.entries[h.index]), true
}

// Current returns a copy of the entry at the index.
func (h *History) Current() ([]models.Section, bool) {
	if h.index < 0 || h.index >= len(h.entries) {
		return nil, false
	}
	return models.CloneSections(h.entries[h.index]), true
}

func (h *History) Len() int   { return len(h.entries) }
func (h *History) Index() int { return h.index }
func (h *History) Max() int   { return h.max }
