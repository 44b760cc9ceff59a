package models

// EditorKind selects the inline editor a field is edited with.
type EditorKind string

const (
	KindText     EditorKind = "text"
	KindTextarea EditorKind = "textarea"
	KindImage    EditorKind = "image"
)

// Color slots a section may carry.
const (
	ColorBackground     = "background"
	ColorCardBackground = "cardBackground"
)

// Field describes one editable slot of a section template.
type Field struct {
	Key   string     `json:"key" yaml:"key"`
	Label string     `json:"label" yaml:"label"`
	Kind  EditorKind `json:"type" yaml:"kind"`
}

// Content maps field keys to their values. Values are plain text (literal
// newlines allowed) or an image reference.
type Content map[string]string

// Visibility maps field keys to their visibility flag. A missing key is visible.
type Visibility map[string]bool

// Colors maps a color slot (background, cardBackground) to a palette key.
type Colors map[string]string

// Section is one placed content block of a document.
type Section struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Content    Content    `json:"content"`
	Visibility Visibility `json:"visibility"`
	Colors     Colors     `json:"colors"`
}

// IsVisible reports whether key should be rendered.
func (v Visibility) IsVisible(key string) bool {
	visible, ok := v[key]
	return !ok || visible
}

// Clone returns an independent copy. A nil map stays nil.
func (c Content) Clone() Content {
	if c == nil {
		return nil
	}
	out := make(Content, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy. A nil map stays nil.
func (v Visibility) Clone() Visibility {
	if v == nil {
		return nil
	}
	out := make(Visibility, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Clone returns an independent copy. A nil map stays nil.
func (c Colors) Clone() Colors {
	if c == nil {
		return nil
	}
	out := make(Colors, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of the section.
func (s Section) Clone() Section {
	return Section{
		ID:         s.ID,
		Type:       s.Type,
		Content:    s.Content.Clone(),
		Visibility: s.Visibility.Clone(),
		Colors:     s.Colors.Clone(),
	}
}

// CloneSections deep-copies a section sequence. The result is never nil.
func CloneSections(sections []Section) []Section {
	out := make([]Section, len(sections))
	for i, s := range sections {
		out[i] = s.Clone()
	}
	return out
}
