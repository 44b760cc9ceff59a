package registry

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionpointmarketing/troy-sandbox/internal/models"
)

func mustLoad(t *testing.T) *Registry {
	t.Helper()
	r, err := Load()
	require.NoError(t, err)
	return r
}

func TestLoadCatalog(t *testing.T) {
	r := mustLoad(t)

	var types []string
	for _, tmpl := range r.All() {
		types = append(types, tmpl.Type)
	}
	assert.Equal(t, []string{"hero", "statistics", "academic-excellence", "latest-stories", "brand-story", "final-cta"}, types)

	for _, tmpl := range r.All() {
		assert.NotEmpty(t, tmpl.Fields, tmpl.Type)
		for _, f := range tmpl.Fields {
			assert.Contains(t, tmpl.Defaults, f.Key, "%s default for %s", tmpl.Type, f.Key)
			assert.Contains(t, []models.EditorKind{models.KindText, models.KindTextarea, models.KindImage}, f.Kind)
		}
	}

	hero, ok := r.Get("hero")
	require.True(t, ok)
	assert.Equal(t, "Real People.\nReal Success.", hero.Defaults["headline"])
	assert.Equal(t, []string{"backgroundImage", "tagline", "headline", "body", "ctaPrimary", "ctaSecondary"}, hero.FieldKeys())

	_, ok = r.Get("carousel")
	assert.False(t, ok)
}

func TestCategories(t *testing.T) {
	r := mustLoad(t)

	assert.Equal(t, []Category{{ID: "hero", Name: "Hero"}, {ID: "content", Name: "Content"}, {ID: "cta", Name: "Call to Action"}}, r.Categories())

	grouped := r.ByCategory()
	assert.Len(t, grouped["hero"], 1)
	assert.Len(t, grouped["content"], 4)
	assert.Len(t, grouped["cta"], 1)
}

func TestDefaultColors(t *testing.T) {
	r := mustLoad(t)

	assert.Equal(t, models.Colors{"background": "sand"}, r.DefaultColors("statistics"))
	assert.Equal(t, models.Colors{"background": "white", "cardBackground": "white"}, r.DefaultColors("academic-excellence"))
	assert.Equal(t, models.Colors{"background": "sand", "cardBackground": "white"}, r.DefaultColors("latest-stories"))
	assert.Equal(t, models.Colors{"background": "white"}, r.DefaultColors("hero"))
	assert.Equal(t, models.Colors{"background": "white"}, r.DefaultColors("no-such-type"))

	c := r.DefaultColors("statistics")
	c["background"] = "black"
	assert.Equal(t, "sand", r.DefaultColors("statistics")["background"], "defaults are handed out as copies")

	assert.True(t, r.HasCards("academic-excellence"))
	assert.True(t, r.HasCards("latest-stories"))
	assert.False(t, r.HasCards("hero"))
	assert.False(t, r.HasCards("no-such-type"))
}

func allVisible(tmpl *Template) models.Visibility {
	v := models.Visibility{}
	for _, k := range tmpl.FieldKeys() {
		v[k] = true
	}
	return v
}

func TestRenderAddsEditAffordances(t *testing.T) {
	r := mustLoad(t)
	hero, _ := r.Get("hero")

	html, err := hero.Render(hero.Defaults, allVisible(hero), nil)
	require.NoError(t, err)

	assert.Contains(t, html, `contenteditable="true" data-field="tagline"`)
	assert.Contains(t, html, `data-field="backgroundImage" data-image-field="true"`)
	assert.Contains(t, html, "Real People.<br>Real Success.")
	assert.NotContains(t, html, `href="#"`)
}

func TestToMarkupIsClean(t *testing.T) {
	r := mustLoad(t)

	for _, tmpl := range r.All() {
		html, err := tmpl.ToMarkup(tmpl.Defaults, allVisible(tmpl), nil)
		require.NoError(t, err, tmpl.Type)
		assert.True(t, strings.HasPrefix(html, "<section"), tmpl.Type)
		assert.NotContains(t, html, "contenteditable", tmpl.Type)
		assert.NotContains(t, html, "data-field", tmpl.Type)
		assert.NotContains(t, html, "data-image-field", tmpl.Type)
	}
}

func TestHiddenFieldsAreOmitted(t *testing.T) {
	r := mustLoad(t)
	hero, _ := r.Get("hero")

	content := hero.Defaults.Clone()
	content["tagline"] = "Tagline marker"
	visibility := allVisible(hero)
	visibility["tagline"] = false

	editable, err := hero.Render(content, visibility, nil)
	require.NoError(t, err)
	clean, err := hero.ToMarkup(content, visibility, nil)
	require.NoError(t, err)

	assert.NotContains(t, editable, "Tagline marker")
	assert.NotContains(t, editable, `data-field="tagline"`)
	assert.NotContains(t, clean, "Tagline marker")
	assert.Equal(t, "Tagline marker", content["tagline"])

	visibility["tagline"] = true
	clean, err = hero.ToMarkup(content, visibility, nil)
	require.NoError(t, err)
	assert.Contains(t, clean, "Tagline marker")
}

func TestHiddenGroupDropsItsCard(t *testing.T) {
	r := mustLoad(t)
	stats, _ := r.Get("statistics")

	visibility := allVisible(stats)
	visibility["stat2Number"] = false
	visibility["stat2Label"] = false
	visibility["stat2Description"] = false

	html, err := stats.ToMarkup(stats.Defaults, visibility, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(html, `<div class="text-center py-8 px-4">`))
	assert.NotContains(t, html, "Average Starting Salary")
}

func TestMissingVisibilityMeansVisible(t *testing.T) {
	r := mustLoad(t)
	cta, _ := r.Get("final-cta")

	html, err := cta.ToMarkup(cta.Defaults, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, html, "Unlock the Real You.")
}

func TestTextIsEscaped(t *testing.T) {
	r := mustLoad(t)
	hero, _ := r.Get("hero")

	content := hero.Defaults.Clone()
	content["tagline"] = `<script>alert("x")</script>`
	content["headline"] = "<b>one</b>\ntwo"

	html, err := hero.ToMarkup(content, nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "&lt;b&gt;one&lt;/b&gt;<br>two")
}

func TestRichTextKeepsEmphasisOnly(t *testing.T) {
	r := mustLoad(t)
	stats, _ := r.Get("statistics")

	content := stats.Defaults.Clone()
	content["body"] = `Real <strong>work</strong> <em>wins</em><img src=x onerror="alert(1)"><script>bad()</script>`

	html, err := stats.ToMarkup(content, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, html, "Real <strong>work</strong> <em>wins</em>")
	assert.NotContains(t, html, "<img")
	assert.NotContains(t, html, "<script")
	assert.NotContains(t, html, "onerror")
}

func TestColorsResolveAtRenderTime(t *testing.T) {
	r := mustLoad(t)
	stats, _ := r.Get("statistics")

	html, err := stats.ToMarkup(stats.Defaults, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, html, `<section class="bg-sand`)
	assert.Contains(t, html, "halftone-overlay")
	assert.Contains(t, html, "text-black")

	colors := models.Colors{"background": "cardinal"}
	html, err = stats.ToMarkup(stats.Defaults, nil, colors)
	require.NoError(t, err)
	assert.Contains(t, html, `<section class="bg-cardinal`)
	assert.Contains(t, html, "text-white")
	assert.NotContains(t, html, "halftone-overlay")
	assert.Equal(t, models.Colors{"background": "cardinal"}, colors, "resolution never writes back")
}

func TestCardColors(t *testing.T) {
	r := mustLoad(t)
	stories, _ := r.Get("latest-stories")

	html, err := stories.ToMarkup(stories.Defaults, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, html, `news-card bg-white`)

	html, err = stories.ToMarkup(stories.Defaults, nil, models.Colors{"background": "black", "cardBackground": "wheat"})
	require.NoError(t, err)
	assert.Contains(t, html, `news-card bg-wheat`)
	assert.Contains(t, html, `bg-[#1a1a1a]`)
}

func TestImageReferences(t *testing.T) {
	r := mustLoad(t)
	story, _ := r.Get("brand-story")

	content := story.Defaults.Clone()
	content["image"] = "data:image/png;base64,iVBORw0KGgo="
	html, err := story.ToMarkup(content, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, html, `<img src="data:image/png;base64,iVBORw0KGgo="`)

	content["image"] = "javascript:alert(1)"
	html, err = story.ToMarkup(content, nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, html, "javascript:")

	content["backgroundImage"] = ""
	html, err = story.ToMarkup(content, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, html, "background-color: #910039;")

	editable, err := story.Render(content, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, editable, `<div class="image-placeholder" data-field="image" data-image-field="true"></div>`)
}

func TestPages(t *testing.T) {
	r := mustLoad(t)

	pages := r.Pages()
	require.Len(t, pages, 3)
	assert.Equal(t, "prospective-students", pages[0].ID)
	assert.Equal(t, 5, pages[0].SectionCount())

	p, ok := r.Page("academic-programs")
	require.True(t, ok)
	assert.Equal(t, 4, p.SectionCount())
	assert.Equal(t, models.Colors{"background": "white", "cardBackground": "sand"}, p.Sections[1].Colors)
	assert.Nil(t, p.Sections[0].Colors)

	_, ok = r.Page("nope")
	assert.False(t, ok)
}

func TestLoadFSRejectsBadCatalogs(t *testing.T) {
	section := `type: hero
name: Hero
category: hero
defaults: {headline: Hi}
fields:
  - {key: headline, label: Headline, kind: text}
template: "<section>{{.Text \"headline\"}}</section>"
`
	base := func() fstest.MapFS {
		return fstest.MapFS{
			"catalog.yaml":       {Data: []byte("categories: [{id: hero, name: Hero}]\nsections: [hero]\n")},
			"sections/hero.yaml": {Data: []byte(section)},
			"pages.yaml":         {Data: []byte("[]\n")},
		}
	}

	r, err := LoadFS(base())
	require.NoError(t, err)
	hero, _ := r.Get("hero")
	html, err := hero.ToMarkup(models.Content{"headline": "Hello"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "<section>Hello</section>", html)

	fsys := base()
	fsys["pages.yaml"] = &fstest.MapFile{Data: []byte("- id: x\n  sections:\n    - type: carousel\n")}
	_, err = LoadFS(fsys)
	assert.ErrorIs(t, err, ErrUnknownType)

	fsys = base()
	fsys["catalog.yaml"] = &fstest.MapFile{Data: []byte("sections: [statistics]\n")}
	fsys["sections/statistics.yaml"] = &fstest.MapFile{Data: []byte(section)}
	_, err = LoadFS(fsys)
	assert.Error(t, err)

	fsys = base()
	fsys["sections/hero.yaml"] = &fstest.MapFile{Data: []byte(strings.Replace(section, "{{.Text", "{{.Text (", 1))}
	_, err = LoadFS(fsys)
	assert.Error(t, err)
}

func TestPalette(t *testing.T) {
	assert.Len(t, BackgroundColors(), 7)
	cards := CardBackgroundColors()
	assert.Len(t, cards, 4)
	for _, c := range cards {
		assert.False(t, c.IsDark, c.Key)
	}

	assert.Equal(t, "text-white", ContrastFor("cardinal-900").Text)
	assert.False(t, ContrastFor("white").ShowHalftone)
	assert.True(t, ContrastFor("sand").ShowHalftone)
	assert.Equal(t, ContrastFor("sand"), ContrastFor("no-such-color"))

	assert.Equal(t, "white", ColorOr("nope", "white").Key)
	assert.Equal(t, "sand", ColorOr("nope", "also-nope").Key)
	assert.True(t, IsColorKey("wheat"))
	assert.False(t, IsColorKey("teal"))

	assert.Equal(t, models.Colors{"background": "black", "cardBackground": "white"},
		ResolveColors(models.Colors{"background": "black"}, models.Colors{"background": "sand", "cardBackground": "white"}))
}
