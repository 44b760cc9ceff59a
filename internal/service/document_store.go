package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visionpointmarketing/troy-sandbox/internal/logger"
	"github.com/visionpointmarketing/troy-sandbox/internal/models"
)

// ColorDefaults supplies the per-type colors a section falls back to.
type ColorDefaults interface {
	DefaultColors(sectionType string) models.Colors
}

// NewSectionID returns a time-sortable section identifier.
func NewSectionID() string {
	return "section-" + uuid.Must(uuid.NewV7()).String()
}

// StoreOption customises a DocumentStore.
type StoreOption func(*DocumentStore)

// WithMaxHistory bounds the undo log. Values below 1 select DefaultMaxHistory.
func WithMaxHistory(n int) StoreOption {
	return func(s *DocumentStore) { s.history = NewHistory(n) }
}

// WithIDGenerator replaces NewSectionID.
func WithIDGenerator(gen func() string) StoreOption {
	return func(s *DocumentStore) { s.newID = gen }
}

// WithColorDefaults sets the source used when a color is first picked on a
// section without colors.
func WithColorDefaults(cd ColorDefaults) StoreOption {
	return func(s *DocumentStore) { s.colors = cd }
}

func WithLogger(log *logger.Logger) StoreOption {
	return func(s *DocumentStore) { s.log = log }
}

// WithClock replaces time.Now for export timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *DocumentStore) { s.now = now }
}

// DocumentStore owns a document and its undo history. It is the only
// mutator of document state.
//
// Mutations are totally ordered: each one, together with the notifications
// it fires, runs under emitMu. Listeners may read the store but must not
// mutate it from inside a callback.
type DocumentStore struct {
	emitMu sync.Mutex

	mu       sync.RWMutex
	sections []models.Section
	history  *History

	newID  func() string
	colors ColorDefaults
	now    func() time.Time
	log    *logger.Logger

	onChange  subscribers[ChangeListener]
	onHistory subscribers[HistoryListener]
}

// NewDocumentStore returns an empty store whose history holds one snapshot
// of the empty document.
func NewDocumentStore(opts ...StoreOption) *DocumentStore {
	s := &DocumentStore{
		sections: []models.Section{},
		history:  NewHistory(DefaultMaxHistory),
		newID:    NewSectionID,
		now:      time.Now,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.history.Record(s.sections)
	return s
}

// Subscribe registers a change listener and returns its unsubscribe function.
func (s *DocumentStore) Subscribe(fn ChangeListener) func() {
	return s.onChange.add(fn)
}

// SubscribeHistory registers a history listener and returns its unsubscribe function.
func (s *DocumentStore) SubscribeHistory(fn HistoryListener) func() {
	return s.onHistory.add(fn)
}

// Init replaces the document with a copy of saved.Sections (or an empty
// document when saved is nil or carries no sections) and restarts history.
func (s *DocumentStore) Init(saved *models.Document) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if saved != nil && saved.Sections != nil {
		s.sections = models.CloneSections(saved.Sections)
	} else {
		s.sections = []models.Section{}
	}
	s.history.Reset()
	s.history.Record(s.sections)
	sections, canUndo, canRedo := s.stateLocked()
	s.mu.Unlock()

	s.emitHistory(canUndo, canRedo)
	s.emitChange(sections)
}

// Teardown drops every listener and empties the document without notifying.
func (s *DocumentStore) Teardown() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.onChange.reset()
	s.onHistory.reset()

	s.mu.Lock()
	s.sections = []models.Section{}
	s.history.Reset()
	s.history.Record(s.sections)
	s.mu.Unlock()
}

// Sections returns a copy of the document.
func (s *DocumentStore) Sections() []models.Section {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneSections(s.sections)
}

// Section returns a copy of the section with id.
func (s *DocumentStore) Section(id string) (models.Section, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.sections[i].Clone(), true
	}
	return models.Section{}, false
}

func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sections)
}

// AddSection appends a new section of sectionType. Content is copied from
// defaults and every field starts visible. Colors stay unset unless
// defaultColors is given; renderers resolve them against type defaults.
func (s *DocumentStore) AddSection(sectionType string, defaults models.Content, fields []models.Field, defaultColors models.Colors) models.Section {
	var created models.Section
	s.mutate(func() bool {
		content := defaults.Clone()
		if content == nil {
			content = models.Content{}
		}
		visibility := make(models.Visibility, len(fields))
		for _, f := range fields {
			visibility[f.Key] = true
		}
		created = models.Section{
			ID:         s.newID(),
			Type:       sectionType,
			Content:    content,
			Visibility: visibility,
			Colors:     defaultColors.Clone(),
		}
		s.sections = append(s.sections, created)
		created = created.Clone()
		return true
	})
	s.log.Debug("section added", "section_id", created.ID, "type", sectionType)
	return created
}

// UpdateSection sets one content field, records history and notifies.
func (s *DocumentStore) UpdateSection(id, field, value string) {
	s.mutate(func() bool {
		return s.setContentLocked(id, field, value)
	})
}

// UpdateSectionSilent sets one content field without recording history or
// notifying. The caller commits the final value with UpdateSection.
func (s *DocumentStore) UpdateSectionSilent(id, field, value string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setContentLocked(id, field, value)
}

func (s *DocumentStore) setContentLocked(id, field, value string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	if s.sections[i].Content == nil {
		s.sections[i].Content = models.Content{}
	}
	s.sections[i].Content[field] = value
	return true
}

// UpdateVisibility sets the visibility flag of one field.
func (s *DocumentStore) UpdateVisibility(id, field string, visible bool) {
	s.mutate(func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		if s.sections[i].Visibility == nil {
			s.sections[i].Visibility = models.Visibility{}
		}
		s.sections[i].Visibility[field] = visible
		return true
	})
}

// SetAllVisibility sets every known visibility flag of a section.
func (s *DocumentStore) SetAllVisibility(id string, visible bool) {
	s.mutate(func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		for key := range s.sections[i].Visibility {
			s.sections[i].Visibility[key] = visible
		}
		return true
	})
}

// UpdateSectionColor sets one color slot. A section without colors first
// receives its type defaults.
func (s *DocumentStore) UpdateSectionColor(id, slot, colorKey string) {
	s.mutate(func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		sec := &s.sections[i]
		if sec.Colors == nil {
			sec.Colors = s.defaultColors(sec.Type)
		}
		sec.Colors[slot] = colorKey
		return true
	})
}

func (s *DocumentStore) defaultColors(sectionType string) models.Colors {
	if s.colors != nil {
		if c := s.colors.DefaultColors(sectionType).Clone(); c != nil {
			return c
		}
	}
	return models.Colors{}
}

// DuplicateSection inserts a deep copy of the section with a new id right
// after the original. ok is false when id is unknown.
func (s *DocumentStore) DuplicateSection(id string) (dup models.Section, ok bool) {
	s.mutate(func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		dup = s.sections[i].Clone()
		dup.ID = s.newID()

		s.sections = append(s.sections, models.Section{})
		copy(s.sections[i+2:], s.sections[i+1:])
		s.sections[i+1] = dup
		dup = dup.Clone()
		ok = true
		return true
	})
	return dup, ok
}

// DeleteSection removes the section with id. Unknown ids are ignored.
func (s *DocumentStore) DeleteSection(id string) {
	s.mutate(func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		s.sections = append(s.sections[:i], s.sections[i+1:]...)
		return true
	})
}

// MoveSection removes the section at from and reinserts it at to in the
// shortened sequence. Out of range or equal indices are ignored.
func (s *DocumentStore) MoveSection(from, to int) {
	s.mutate(func() bool {
		n := len(s.sections)
		if from == to || from < 0 || from >= n || to < 0 || to >= n {
			return false
		}
		moved := s.sections[from]
		s.sections = append(s.sections[:from], s.sections[from+1:]...)
		s.sections = append(s.sections, models.Section{})
		copy(s.sections[to+1:], s.sections[to:])
		s.sections[to] = moved
		return true
	})
}

// Clear empties the document.
func (s *DocumentStore) Clear() {
	s.mutate(func() bool {
		s.sections = []models.Section{}
		return true
	})
}

// Undo restores the previous snapshot. It reports whether anything changed.
func (s *DocumentStore) Undo() bool {
	return s.travel((*History).Undo)
}

// Redo restores the next snapshot. It reports whether anything changed.
func (s *DocumentStore) Redo() bool {
	return s.travel((*History).Redo)
}

func (s *DocumentStore) travel(step func(*History) ([]models.Section, bool)) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	snapshot, ok := step(s.history)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.sections = snapshot
	sections, canUndo, canRedo := s.stateLocked()
	s.mu.Unlock()

	s.emitChange(sections)
	s.emitHistory(canUndo, canRedo)
	return true
}

func (s *DocumentStore) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanUndo()
}

func (s *DocumentStore) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanRedo()
}

// HistoryDepth returns the number of snapshots held.
func (s *DocumentStore) HistoryDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Len()
}

// ToDocument returns a versioned copy of the document.
func (s *DocumentStore) ToDocument() models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Document{
		Version:    models.DocumentVersion,
		ExportedAt: s.now().UTC(),
		Sections:   models.CloneSections(s.sections),
	}
}

// FromDocument replaces the document with a copy of doc.Sections. It
// reports false, changing nothing, when doc carries no section sequence.
func (s *DocumentStore) FromDocument(doc *models.Document) bool {
	if doc == nil || doc.Sections == nil {
		return false
	}
	s.mutate(func() bool {
		s.sections = models.CloneSections(doc.Sections)
		return true
	})
	return true
}

// mutate applies fn under the write lock. When fn reports a change, a
// history point is recorded and listeners are notified.
func (s *DocumentStore) mutate(fn func() bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.history.Record(s.sections)
	sections, canUndo, canRedo := s.stateLocked()
	s.mu.Unlock()

	s.emitHistory(canUndo, canRedo)
	s.emitChange(sections)
}

func (s *DocumentStore) stateLocked() ([]models.Section, bool, bool) {
	return models.CloneSections(s.sections), s.history.CanUndo(), s.history.CanRedo()
}

func (s *DocumentStore) emitChange(sections []models.Section) {
	for _, fn := range s.onChange.snapshot() {
		fn(sections)
	}
}

func (s *DocumentStore) emitHistory(canUndo, canRedo bool) {
	for _, fn := range s.onHistory.snapshot() {
		fn(canUndo, canRedo)
	}
}

func (s *DocumentStore) indexOf(id string) int {
	for i := range s.sections {
		if s.sections[i].ID == id {
			return i
		}
	}
	return -1
}
