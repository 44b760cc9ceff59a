package render

import (
	"html/template"
	"strings"
	"sync"

	"github.com/visionpointmarketing/troy-sandbox/internal/logger"
	"github.com/visionpointmarketing/troy-sandbox/internal/models"
	"github.com/visionpointmarketing/troy-sandbox/internal/registry"
)

// Catalog resolves section types to templates.
type Catalog interface {
	Get(sectionType string) (*registry.Template, bool)
}

// RenderListener receives the rebuilt editable surface.
type RenderListener func(markup string, sectionCount int)

const emptyCanvas = `<div class="p-12 text-center text-gray-400">
  <p class="text-lg mb-2">No sections yet</p>
  <p class="text-sm">Click a section type in the sidebar to add it</p>
</div>`

var wrapperTmpl = template.Must(template.New("wrapper").Parse(`<div class="section-wrapper" data-section-id="{{.ID}}" data-section-type="{{.Type}}" data-index="{{.Index}}">
  <div class="drag-handle" draggable="true" title="Drag to reorder">` + iconDrag + `</div>
  <div class="section-controls">
    <button class="section-control-btn move-btn move-up" data-action="move-up" title="Move up"{{if .First}} disabled{{end}}>` + iconUp + `</button>
    <button class="section-control-btn move-btn move-down" data-action="move-down" title="Move down"{{if .Last}} disabled{{end}}>` + iconDown + `</button>
    <button class="section-control-btn visibility" data-action="visibility" title="Toggle field visibility">` + iconVisibility + `</button>
    <button class="section-control-btn color" data-action="color" title="Change colors">` + iconColor + `</button>
    <button class="section-control-btn duplicate" data-action="duplicate" title="Duplicate section">` + iconDuplicate + `</button>
    <button class="section-control-btn delete" data-action="delete" title="Delete section">` + iconDelete + `</button>
  </div>
  <div class="section-content">
{{.Inner}}
  </div>
</div>`))

const (
	iconDrag       = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><path d="M9 5h6M9 9h6M9 13h6M9 17h6" stroke-linecap="round"/></svg>`
	iconUp         = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><polyline points="18 15 12 9 6 15"/></svg>`
	iconDown       = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><polyline points="6 9 12 15 18 9"/></svg>`
	iconVisibility = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><path d="M1 12s4-8 11-8 11 8 11 8-4 8-11 8-11-8-11-8z"/><circle cx="12" cy="12" r="3"/></svg>`
	iconColor      = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><circle cx="12" cy="12" r="10"/><path d="M12 2a10 10 0 0 0 0 20z" fill="currentColor"/></svg>`
	iconDuplicate  = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><rect x="9" y="9" width="13" height="13" rx="2"/><path d="M5 15H4a2 2 0 0 1-2-2V4a2 2 0 0 1 2-2h9a2 2 0 0 1 2 2v1"/></svg>`
	iconDelete     = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><polyline points="3 6 5 6 21 6"/><path d="M19 6v14a2 2 0 0 1-2 2H7a2 2 0 0 1-2-2V6m3 0V4a2 2 0 0 1 2-2h4a2 2 0 0 1 2 2v2"/></svg>`
)

type wrapperData struct {
	ID    string
	Type  string
	Index int
	First bool
	Last  bool
	Inner template.HTML
}

// Canvas is the editable surface of one document. It rebuilds on every
// change notification unless the guard reports an active edit, in which
// case the rebuild is deferred until the editor blurs.
//
// Every snapshot handed to the canvas gets a generation number. Builds run
// one at a time and a snapshot older than the last applied one is dropped,
// so a deferred rebuild racing a newer change cannot win.
type Canvas struct {
	catalog Catalog
	guard   *EditGuard
	log     *logger.Logger

	buildMu sync.Mutex

	mu        sync.Mutex
	latest    []models.Section
	latestGen uint64
	applied   uint64
	pending   bool
	markup    string
	count     int
	renders   int

	listeners   map[uint64]RenderListener
	seq         uint64
	releaseBlur func()
}

func NewCanvas(catalog Catalog, guard *EditGuard, log *logger.Logger) *Canvas {
	if log == nil {
		log = logger.Nop()
	}
	c := &Canvas{
		catalog:   catalog,
		guard:     guard,
		log:       log.With("component", "canvas"),
		listeners: make(map[uint64]RenderListener),
		markup:    emptyCanvas,
	}
	c.releaseBlur = guard.OnBlur(c.Release)
	return c
}

// HandleChange is the change listener the canvas subscribes with.
func (c *Canvas) HandleChange(sections []models.Section) {
	c.mu.Lock()
	gen := c.accept(sections)
	if c.guard.Editing() {
		c.pending = true
		c.mu.Unlock()
		c.log.Debug("rebuild deferred while editing", "sections", len(sections))
		return
	}
	c.mu.Unlock()
	c.apply(sections, gen)
}

// Release replays a rebuild deferred by an edit.
func (c *Canvas) Release() {
	c.mu.Lock()
	if !c.pending || c.guard.Editing() {
		c.mu.Unlock()
		return
	}
	sections, gen := c.latest, c.latestGen
	c.mu.Unlock()
	c.apply(sections, gen)
}

// Render rebuilds the surface from sections unconditionally.
func (c *Canvas) Render(sections []models.Section) string {
	c.mu.Lock()
	gen := c.accept(sections)
	c.mu.Unlock()
	return c.apply(sections, gen)
}

// accept stamps sections as the newest snapshot. c.mu must be held.
func (c *Canvas) accept(sections []models.Section) uint64 {
	c.latestGen++
	c.latest = sections
	return c.latestGen
}

// apply builds and publishes the snapshot of generation gen unless a newer
// one is already on screen. It returns the current markup.
func (c *Canvas) apply(sections []models.Section, gen uint64) string {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	c.mu.Lock()
	stale := gen <= c.applied
	current := c.markup
	c.mu.Unlock()
	if stale {
		c.log.Debug("dropping stale rebuild", "generation", gen)
		return current
	}

	markup := c.build(sections)

	c.mu.Lock()
	c.applied = gen
	if gen == c.latestGen {
		c.pending = false
	}
	c.markup = markup
	c.count = len(sections)
	c.renders++
	listeners := make([]RenderListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(markup, len(sections))
	}
	return markup
}

func (c *Canvas) build(sections []models.Section) string {
	if len(sections) == 0 {
		return emptyCanvas
	}
	var b strings.Builder
	for i, s := range sections {
		tmpl, ok := c.catalog.Get(s.Type)
		if !ok {
			c.log.Warn("skipping unknown section type", "section_id", s.ID, "type", s.Type)
			continue
		}
		inner, err := tmpl.Render(s.Content, s.Visibility, s.Colors)
		if err != nil {
			c.log.Warn("skipping section that failed to render", "section_id", s.ID, "error", err)
			continue
		}
		data := wrapperData{
			ID:    s.ID,
			Type:  s.Type,
			Index: i,
			First: i == 0,
			Last:  i == len(sections)-1,
			Inner: template.HTML(inner),
		}
		if err := wrapperTmpl.Execute(&b, data); err != nil {
			c.log.Warn("skipping section wrapper", "section_id", s.ID, "error", err)
			continue
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Markup returns the last built surface.
func (c *Canvas) Markup() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.markup
}

// SectionCount returns the number of sections of the last build.
func (c *Canvas) SectionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Pending reports whether a rebuild is waiting for the editor to blur.
func (c *Canvas) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Renders counts completed builds.
func (c *Canvas) Renders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}

// OnRender registers fn to receive every rebuilt surface.
func (c *Canvas) OnRender(fn RenderListener) func() {
	c.mu.Lock()
	c.seq++
	id := c.seq
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Close detaches the canvas from its guard.
func (c *Canvas) Close() {
	c.releaseBlur()
}
