// Package registry holds the catalog of section templates, their color
// palette and the prebuilt page layouts.
package registry

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"

	"github.com/visionpointmarketing/troy-sandbox/internal/models"
	"github.com/visionpointmarketing/troy-sandbox/internal/validation"
)

//go:embed catalog
var catalogFS embed.FS

var ErrUnknownType = errors.New("unknown section type")

// Category groups section types in the picker.
type Category struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ColorSpec declares the color slots a section type supports.
type ColorSpec struct {
	Cards    bool          `json:"cards" yaml:"cards"`
	Defaults models.Colors `json:"defaults" yaml:"defaults"`
}

// Template is one section type: its defaults, field schema and markup.
type Template struct {
	Type        string         `json:"type" yaml:"type"`
	Name        string         `json:"name" yaml:"name"`
	Category    string         `json:"category" yaml:"category"`
	Description string         `json:"description" yaml:"description"`
	Defaults    models.Content `json:"defaults" yaml:"defaults"`
	Fields      []models.Field `json:"fields" yaml:"fields"`
	Colors      ColorSpec      `json:"colors" yaml:"colors"`
	Source      string         `json:"-" yaml:"template"`

	tmpl   *template.Template
	policy *bluemonday.Policy
}

// PageSection seeds one section of a page layout.
type PageSection struct {
	Type    string         `json:"type" yaml:"type"`
	Content models.Content `json:"content" yaml:"content"`
	Colors  models.Colors  `json:"colors,omitempty" yaml:"colors"`
}

// Page is a prebuilt page layout.
type Page struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Sections    []PageSection `json:"sections" yaml:"sections"`
}

func (p Page) SectionCount() int { return len(p.Sections) }

type catalogIndex struct {
	Categories []Category `yaml:"categories"`
	Sections   []string   `yaml:"sections"`
}

// Registry is an immutable lookup table from section type to template.
type Registry struct {
	templates  []*Template
	byType     map[string]*Template
	categories []Category
	pages      []Page
}

// Load reads the embedded catalog.
func Load() (*Registry, error) {
	sub, err := fs.Sub(catalogFS, "catalog")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// LoadFS reads a catalog laid out as catalog.yaml, pages.yaml and
// sections/<type>.yaml.
func LoadFS(fsys fs.FS) (*Registry, error) {
	var index catalogIndex
	if err := readYAML(fsys, "catalog.yaml", &index); err != nil {
		return nil, err
	}

	policy := richTextPolicy()
	r := &Registry{
		byType:     make(map[string]*Template, len(index.Sections)),
		categories: index.Categories,
	}
	for _, name := range index.Sections {
		t := &Template{}
		if err := readYAML(fsys, path.Join("sections", name+".yaml"), t); err != nil {
			return nil, err
		}
		if err := t.compile(policy); err != nil {
			return nil, err
		}
		if t.Type != name {
			return nil, fmt.Errorf("sections/%s.yaml declares type %q", name, t.Type)
		}
		if _, dup := r.byType[t.Type]; dup {
			return nil, fmt.Errorf("duplicate section type %q", t.Type)
		}
		r.templates = append(r.templates, t)
		r.byType[t.Type] = t
	}

	if err := readYAML(fsys, "pages.yaml", &r.pages); err != nil {
		return nil, err
	}
	for _, p := range r.pages {
		for i, ps := range p.Sections {
			if _, ok := r.byType[ps.Type]; !ok {
				return nil, fmt.Errorf("page %q section %d: %w: %q", p.ID, i, ErrUnknownType, ps.Type)
			}
		}
	}
	return r, nil
}

func readYAML(fsys fs.FS, name string, out any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

func (t *Template) compile(policy *bluemonday.Policy) error {
	if err := validation.ValidateSectionType(t.Type); err != nil {
		return err
	}
	for _, f := range t.Fields {
		if err := validation.ValidateFieldKey(f.Key); err != nil {
			return fmt.Errorf("section %q: %w", t.Type, err)
		}
	}
	if t.Defaults == nil {
		t.Defaults = models.Content{}
	}
	if t.Colors.Defaults == nil {
		t.Colors.Defaults = models.Colors{models.ColorBackground: "white"}
	}
	tmpl, err := template.New(t.Type).Option("missingkey=zero").Parse(t.Source)
	if err != nil {
		return fmt.Errorf("section %q: %w", t.Type, err)
	}
	t.tmpl = tmpl
	t.policy = policy
	return nil
}

// Render returns the editable markup of a section: every visible field
// carries its edit affordance, hidden fields are left out.
func (t *Template) Render(content models.Content, visibility models.Visibility, colors models.Colors) (string, error) {
	return t.execute(content, visibility, colors, true)
}

// ToMarkup returns the publishable markup of a section with hidden fields left out.
func (t *Template) ToMarkup(content models.Content, visibility models.Visibility, colors models.Colors) (string, error) {
	return t.execute(content, visibility, colors, false)
}

func (t *Template) execute(content models.Content, visibility models.Visibility, colors models.Colors, editable bool) (string, error) {
	v := view{
		content:    content,
		visibility: visibility,
		colors:     ResolveColors(colors, t.Colors.Defaults),
		defaults:   t.Colors.Defaults,
		editable:   editable,
		policy:     t.policy,
	}
	var b strings.Builder
	if err := t.tmpl.Execute(&b, v); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Type, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// FieldKeys returns the field keys in schema order.
func (t *Template) FieldKeys() []string {
	keys := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Get returns the template registered for sectionType.
func (r *Registry) Get(sectionType string) (*Template, bool) {
	t, ok := r.byType[sectionType]
	return t, ok
}

// All returns every template in catalog order.
func (r *Registry) All() []*Template {
	out := make([]*Template, len(r.templates))
	copy(out, r.templates)
	return out
}

func (r *Registry) Categories() []Category {
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// ByCategory groups templates by category id. Every category is present,
// possibly with no templates.
func (r *Registry) ByCategory() map[string][]*Template {
	grouped := make(map[string][]*Template, len(r.categories))
	for _, c := range r.categories {
		grouped[c.ID] = []*Template{}
	}
	for _, t := range r.templates {
		grouped[t.Category] = append(grouped[t.Category], t)
	}
	return grouped
}

// DefaultColors returns the per-type default colors. Unknown types default
// to a white background.
func (r *Registry) DefaultColors(sectionType string) models.Colors {
	if t, ok := r.byType[sectionType]; ok {
		return t.Colors.Defaults.Clone()
	}
	return models.Colors{models.ColorBackground: "white"}
}

// HasCards reports whether sectionType supports a card background color.
func (r *Registry) HasCards(sectionType string) bool {
	t, ok := r.byType[sectionType]
	return ok && t.Colors.Cards
}

func (r *Registry) Pages() []Page {
	out := make([]Page, len(r.pages))
	copy(out, r.pages)
	return out
}

func (r *Registry) Page(id string) (Page, bool) {
	for _, p := range r.pages {
		if p.ID == id {
			return p, true
		}
	}
	return Page{}, false
}
