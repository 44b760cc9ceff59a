package render

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/visionpointmarketing/troy-sandbox/internal/logger"
	"github.com/visionpointmarketing/troy-sandbox/internal/models"
)

const DefaultPageTitle = "Troy University Landing Page"

var ErrUnknownViewport = errors.New("unknown preview viewport")

// Viewport widths of the responsive preview, in CSS pixels. Desktop uses
// the device width.
var Viewports = map[string]int{
	"desktop": 0,
	"tablet":  768,
	"mobile":  375,
}

const tailwindConfig = `tailwind.config = {
  theme: {
    fontFamily: {
      'headline-primary': ['pressio-x-compressed', 'sans-serif'],
      'headline-secondary': ['pressio-compressed', 'sans-serif'],
      'subhead': ['avenir-lt-pro', 'sans-serif'],
      'body': ['avenir-lt-pro', 'sans-serif'],
    },
    extend: {
      colors: {
        cardinal: { DEFAULT: '#910039', 800: '#910039', 900: '#720724' },
        sand: { DEFAULT: '#f1efe3', 300: '#e8e6da' },
        wheat: { DEFAULT: '#efd19f', light: '#f5e1b3' },
        grey: '#999999',
      },
      aspectRatio: { 'feature': '16 / 9' },
    }
  }
}`

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="{{.Viewport}}, initial-scale=1.0">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://use.typekit.net/yie8ysb.css">
  <script src="https://cdn.tailwindcss.com"></script>
  <script>{{.Config}}</script>
  {{- if .Preview}}
  <style>header, footer, header *, footer * { pointer-events: none; user-select: none; }</style>
  {{- end}}
</head>
<body class="font-body">
{{.Header}}
<main>
{{.Main}}
</main>
{{.Footer}}
</body>
</html>
`))

type pageData struct {
	Title    string
	Viewport string
	Config   template.JS
	Preview  bool
	Header   template.HTML
	Main     template.HTML
	Footer   template.HTML
}

// Exporter produces the publishable outputs of a document.
type Exporter struct {
	catalog   Catalog
	fragments *Fragments
	title     string
	log       *logger.Logger
}

// NewExporter returns an exporter. fragments may be nil.
func NewExporter(catalog Catalog, fragments *Fragments, title string, log *logger.Logger) *Exporter {
	if title == "" {
		title = DefaultPageTitle
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Exporter{catalog: catalog, fragments: fragments, title: title, log: log.With("component", "exporter")}
}

// Markup concatenates the clean markup of every section in document order,
// separated by a blank line. Sections of unknown type are skipped.
func (e *Exporter) Markup(sections []models.Section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		tmpl, ok := e.catalog.Get(s.Type)
		if !ok {
			e.log.Warn("skipping unknown section type", "section_id", s.ID, "type", s.Type)
			continue
		}
		html, err := tmpl.ToMarkup(s.Content, s.Visibility, s.Colors)
		if err != nil {
			e.log.Warn("skipping section that failed to render", "section_id", s.ID, "error", err)
			continue
		}
		parts = append(parts, html)
	}
	return strings.Join(parts, "\n\n")
}

// Document wraps the clean markup in a complete page with the header and
// footer fragments.
func (e *Exporter) Document(sections []models.Section) (string, error) {
	return e.page(sections, "device-width", false)
}

// Preview returns the page as rendered at one of Viewports.
func (e *Exporter) Preview(sections []models.Section, viewport string) (string, error) {
	width, ok := Viewports[viewport]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownViewport, viewport)
	}
	vp := "device-width"
	if width > 0 {
		vp = fmt.Sprintf("%d", width)
	}
	return e.page(sections, vp, true)
}

func (e *Exporter) page(sections []models.Section, viewport string, preview bool) (string, error) {
	data := pageData{
		Title:    e.title,
		Viewport: "width=" + viewport,
		Config:   template.JS(tailwindConfig),
		Preview:  preview,
		Header:   e.fragments.Header(),
		Main:     template.HTML(e.Markup(sections)),
		Footer:   e.fragments.Footer(),
	}
	var b strings.Builder
	if err := pageTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering page: %w", err)
	}
	return b.String(), nil
}
