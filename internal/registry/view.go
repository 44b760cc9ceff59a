package registry

import (
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/visionpointmarketing/troy-sandbox/internal/models"
	"github.com/visionpointmarketing/troy-sandbox/internal/validation"
)

// richTextPolicy keeps the inline emphasis body copy is written with.
func richTextPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("strong", "em", "br")
	return p
}

// view is the data a section template executes against. The same template
// produces editable or clean markup depending on editable.
type view struct {
	content    models.Content
	visibility models.Visibility
	colors     models.Colors
	defaults   models.Colors
	editable   bool
	policy     *bluemonday.Policy
}

func (v view) Editable() bool { return v.editable }

// Show reports whether key is visible. Missing flags count as visible.
func (v view) Show(key string) bool { return v.visibility.IsVisible(key) }

// Any reports whether at least one of keys is visible.
func (v view) Any(keys ...string) bool {
	for _, k := range keys {
		if v.Show(k) {
			return true
		}
	}
	return false
}

// Has reports whether key holds a value.
func (v view) Has(key string) bool { return v.content[key] != "" }

// Text returns the raw value; the template escapes it.
func (v view) Text(key string) string { return v.content[key] }

// Lines escapes the value and renders literal newlines as line breaks.
func (v view) Lines(key string) template.HTML {
	return template.HTML(newlinesToBreaks(template.HTMLEscapeString(v.content[key])))
}

// Rich keeps <strong>, <em> and <br> and escapes everything else.
func (v view) Rich(key string) template.HTML {
	return template.HTML(newlinesToBreaks(v.policy.Sanitize(v.content[key])))
}

func newlinesToBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br>")
}

// Edit marks an element as the inline editor of key.
func (v view) Edit(key string) template.HTMLAttr {
	if !v.editable {
		return ""
	}
	return template.HTMLAttr(` contenteditable="true" data-field="` + template.HTMLEscapeString(key) + `"`)
}

// Link is Edit for anchors: editable anchors have no target, clean ones
// get a placeholder href.
func (v view) Link(key string) template.HTMLAttr {
	if !v.editable {
		return ` href="#"`
	}
	return v.Edit(key)
}

// ImageEdit marks an element as the upload target of image field key.
func (v view) ImageEdit(key string) template.HTMLAttr {
	if !v.editable {
		return ""
	}
	return template.HTMLAttr(` data-field="` + template.HTMLEscapeString(key) + `" data-image-field="true"`)
}

// Image returns the value of key when it is a usable image reference.
func (v view) Image(key string) template.URL {
	return template.URL(imageURL(v.content[key]))
}

// ImageSlot renders an image field. Editable output is a placeholder that
// accepts uploads; clean output is the bare image, or nothing when empty.
func (v view) ImageSlot(key, alt, classes string) template.HTML {
	src := imageURL(v.content[key])
	var img string
	if src != "" {
		img = `<img src="` + template.HTMLEscapeString(src) + `" alt="` + template.HTMLEscapeString(alt) +
			`" class="` + template.HTMLEscapeString(classes) + `">`
	}
	if !v.editable {
		return template.HTML(img)
	}
	cls := "image-placeholder"
	if img != "" {
		cls += " has-image"
	}
	return template.HTML(`<div class="` + cls + `" data-field="` + template.HTMLEscapeString(key) +
		`" data-image-field="true">` + img + `</div>`)
}

// Background builds the inline style of an image-backed section. overlay,
// when set, is layered above the image; fallback is used without an image.
func (v view) Background(key, overlay, fallback string) template.CSS {
	src := imageURL(v.content[key])
	if src == "" || !v.Show(key) {
		return template.CSS("background-color: " + fallback + ";")
	}
	layers := "url('" + src + "')"
	if overlay != "" {
		layers = overlay + ", " + layers
	}
	return template.CSS("background-image: " + layers + "; background-size: cover; background-position: center;")
}

// Bg is the resolved section background color.
func (v view) Bg() Color {
	return ColorOr(v.colors[models.ColorBackground], v.defaults[models.ColorBackground])
}

// Card is the resolved card background color.
func (v view) Card() Color {
	fallback := v.defaults[models.ColorCardBackground]
	if fallback == "" {
		fallback = "white"
	}
	return ColorOr(v.colors[models.ColorCardBackground], fallback)
}

// Contrast returns the text classes readable on the section background.
func (v view) Contrast() Contrast {
	return ContrastFor(v.Bg().Key)
}

// Seq returns 1..n for numbered field groups.
func (v view) Seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// imageURL accepts image data URLs and plain http(s) URLs that are safe to
// place inside a quoted CSS url().
func imageURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "'\"\\()<> \t\r\n") {
		return ""
	}
	switch {
	case strings.HasPrefix(s, "data:"):
		meta, _, ok := strings.Cut(s[len("data:"):], ",")
		mimeType, encoding, _ := strings.Cut(meta, ";")
		if !ok || encoding != "base64" || !validation.AllowedMimeTypes[strings.ToLower(mimeType)] {
			return ""
		}
		return s
	case strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "http://"):
		return s
	}
	return ""
}
