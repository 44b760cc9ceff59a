// internal/service/session_service.go
package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visionpointmarketing/troy-sandbox/internal/logger"
	"github.com/visionpointmarketing/troy-sandbox/internal/models"
	"github.com/visionpointmarketing/troy-sandbox/internal/registry"
	"github.com/visionpointmarketing/troy-sandbox/internal/render"
	"github.com/visionpointmarketing/troy-sandbox/internal/storage"
)

// Sentinel errors. Callers use errors.Is() instead of string matching.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrUnknownSectionType  = errors.New("unknown section type")
	ErrUnknownPageTemplate = errors.New("unknown page template")
)

// SessionOptions configures every session a SessionService creates.
type SessionOptions struct {
	MaxHistory    int
	MaxImageBytes int64
}

// Session is one open editing workspace: a document, its edit guard and
// editable surface, and its own view of the asset store.
type Session struct {
	ID           uuid.UUID
	PageTemplate string
	CreatedAt    time.Time

	Store  *DocumentStore
	Guard  *render.EditGuard
	Canvas *render.Canvas
	Codec  *Codec
	Images *Images
	Assets storage.AssetStore

	catalog *registry.Registry

	mu        sync.Mutex
	updatedAt time.Time
	stops     []func()
}

// AddSection appends a section of sectionType seeded from its template.
func (s *Session) AddSection(sectionType string) (models.Section, error) {
	t, ok := s.catalog.Get(sectionType)
	if !ok {
		return models.Section{}, ErrUnknownSectionType
	}
	return s.Store.AddSection(t.Type, t.Defaults, t.Fields, nil), nil
}

// Commit records value as the field's content and then ends the active
// edit. The update lands while the canvas still defers, so the single
// rebuild released by the blur already shows the committed value.
func (s *Session) Commit(sectionID, field, value string) {
	s.Store.UpdateSection(sectionID, field, value)
	s.Guard.Blur()
}

// UpdatedAt returns the time of the last document change.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) touch() {
	s.mu.Lock()
	s.updatedAt = time.Now().UTC()
	s.mu.Unlock()
}

// Info summarises the session for API responses.
func (s *Session) Info() models.EditorSession {
	return models.EditorSession{
		SessionID:    s.ID,
		PageTemplate: s.PageTemplate,
		SectionCount: s.Store.Len(),
		HistoryDepth: s.Store.HistoryDepth(),
		CanUndo:      s.Store.CanUndo(),
		CanRedo:      s.Store.CanRedo(),
		Editing:      s.Guard.Editing(),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt(),
	}
}

func (s *Session) close() {
	s.mu.Lock()
	stops := s.stops
	s.stops = nil
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	s.Canvas.Close()
	s.Store.Teardown()
}

// SessionService keeps the open editor sessions in memory. Sessions share
// one asset backend, each under its own id prefix.
type SessionService struct {
	catalog *registry.Registry
	assets  storage.AssetStore
	opts    SessionOptions
	newID   func() string
	log     *logger.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewSessionService(catalog *registry.Registry, assets storage.AssetStore, opts SessionOptions, log *logger.Logger) *SessionService {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionService{
		catalog:  catalog,
		assets:   assets,
		opts:     opts,
		newID:    NewSectionID,
		log:      log.With("component", "sessions"),
		sessions: make(map[uuid.UUID]*Session),
	}
}

// CreateSession opens a new session. A non-empty pageTemplate seeds the
// document from that page layout; otherwise the document starts empty.
func (s *SessionService) CreateSession(pageTemplate string) (*Session, error) {
	var seed *models.Document
	if pageTemplate != "" {
		page, ok := s.catalog.Page(pageTemplate)
		if !ok {
			return nil, ErrUnknownPageTemplate
		}
		seed = s.seedDocument(page)
	}

	id := uuid.New()
	log := s.log.With("session_id", id.String())
	now := time.Now().UTC()

	store := NewDocumentStore(
		WithMaxHistory(s.opts.MaxHistory),
		WithColorDefaults(s.catalog),
		WithIDGenerator(s.newID),
		WithLogger(log),
	)
	guard := render.NewEditGuard()
	canvas := render.NewCanvas(s.catalog, guard, log)
	assets := storage.NewNamespaced(s.assets, id.String()+"/")

	sess := &Session{
		ID:           id,
		PageTemplate: pageTemplate,
		CreatedAt:    now,
		Store:        store,
		Guard:        guard,
		Canvas:       canvas,
		Codec:        NewCodec(store, assets, log),
		Images:       NewImages(store, assets, s.opts.MaxImageBytes, log),
		Assets:       assets,
		catalog:      s.catalog,
		updatedAt:    now,
	}
	sess.stops = append(sess.stops,
		store.Subscribe(canvas.HandleChange),
		store.Subscribe(func([]models.Section) { sess.touch() }),
	)

	if seed != nil {
		store.Init(seed)
	} else {
		canvas.Render(nil)
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	log.Info("session created", "page_template", pageTemplate, "sections", store.Len())
	return sess, nil
}

// seedDocument builds the sections of a page layout. Content missing from
// the page falls back to the section defaults and every field starts visible.
func (s *SessionService) seedDocument(page registry.Page) *models.Document {
	sections := make([]models.Section, 0, len(page.Sections))
	for _, ps := range page.Sections {
		t, ok := s.catalog.Get(ps.Type)
		if !ok {
			s.log.Warn("page references unknown section type", "page", page.ID, "type", ps.Type)
			continue
		}
		content := t.Defaults.Clone()
		if content == nil {
			content = models.Content{}
		}
		for k, v := range ps.Content {
			content[k] = v
		}
		visibility := make(models.Visibility, len(t.Fields))
		for _, f := range t.Fields {
			visibility[f.Key] = true
		}
		sections = append(sections, models.Section{
			ID:         s.newID(),
			Type:       t.Type,
			Content:    content,
			Visibility: visibility,
			Colors:     ps.Colors.Clone(),
		})
	}
	return &models.Document{Version: models.DocumentVersion, Sections: sections}
}

func (s *SessionService) GetSession(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// ListSessions returns every open session, oldest first.
func (s *SessionService) ListSessions() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

// DeleteSession closes the session and drops its assets. An asset store
// failure is logged; the session is gone either way.
func (s *SessionService) DeleteSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	sess.close()
	if err := sess.Assets.Clear(ctx); err != nil {
		s.log.Warn("clearing session assets failed", "session_id", id.String(), "error", err)
	}
	s.log.Info("session deleted", "session_id", id.String())
	return nil
}

// Close tears down every session. Stored assets are kept.
func (s *SessionService) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[uuid.UUID]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

// Len returns the number of open sessions.
func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
