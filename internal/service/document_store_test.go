package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionpointmarketing/troy-sandbox/internal/models"
)

var heroFields = []models.Field{
	{Key: "headline", Label: "Headline", Kind: models.KindText},
	{Key: "body", Label: "Body", Kind: models.KindTextarea},
	{Key: "backgroundImage", Label: "Background", Kind: models.KindImage},
}

var heroDefaults = models.Content{
	"headline":        "Your Future Starts Here.",
	"body":            "Body copy",
	"backgroundImage": "https://example.com/hero.jpg",
}

type staticColors map[string]models.Colors

func (c staticColors) DefaultColors(sectionType string) models.Colors {
	return c[sectionType]
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("section-%d", n)
	}
}

func newTestStore(opts ...StoreOption) *DocumentStore {
	return NewDocumentStore(append([]StoreOption{WithIDGenerator(sequentialIDs())}, opts...)...)
}

func TestAddSectionSeedsContentAndVisibility(t *testing.T) {
	s := newTestStore()

	sec := s.AddSection("hero", heroDefaults, heroFields, nil)

	require.Equal(t, 1, s.Len())
	assert.Equal(t, "section-1", sec.ID)
	assert.Equal(t, "hero", sec.Type)
	assert.Equal(t, heroDefaults, sec.Content)
	assert.Nil(t, sec.Colors)
	for _, f := range heroFields {
		assert.True(t, sec.Visibility[f.Key], f.Key)
	}

	sec.Content["headline"] = "changed"
	got, ok := s.Section(sec.ID)
	require.True(t, ok)
	assert.Equal(t, "Your Future Starts Here.", got.Content["headline"], "returned section is a copy")
}

func TestAddSectionAppends(t *testing.T) {
	s := newTestStore()
	for i, typ := range []string{"hero", "statistics", "final-cta", "hero"} {
		s.AddSection(typ, nil, nil, nil)
		sections := s.Sections()
		require.Len(t, sections, i+1)
		assert.Equal(t, typ, sections[len(sections)-1].Type)
	}
}

func TestAddSectionWithoutDefaults(t *testing.T) {
	s := newTestStore()
	sec := s.AddSection("custom", nil, nil, models.Colors{models.ColorBackground: "cardinal"})
	assert.NotNil(t, sec.Content)
	assert.Empty(t, sec.Visibility)
	assert.Equal(t, "cardinal", sec.Colors[models.ColorBackground])
}

func TestUndoRedoRoundTrip(t *testing.T) {
	s := newTestStore()
	initial := s.Sections()

	a := s.AddSection("hero", heroDefaults, heroFields, nil)
	s.UpdateSection(a.ID, "headline", "One")
	b := s.AddSection("final-cta", nil, nil, nil)
	s.MoveSection(1, 0)
	s.UpdateVisibility(a.ID, "body", false)
	s.DeleteSection(b.ID)
	final := s.Sections()

	const n = 6
	for i := 0; i < n; i++ {
		require.True(t, s.Undo(), "undo %d", i)
	}
	assert.False(t, s.Undo())
	assert.Equal(t, initial, s.Sections())

	for i := 0; i < n; i++ {
		require.True(t, s.Redo(), "redo %d", i)
	}
	assert.False(t, s.Redo())
	assert.Equal(t, final, s.Sections())
}

func TestNewMutationDropsRedoBranch(t *testing.T) {
	s := newTestStore()
	a := s.AddSection("hero", heroDefaults, heroFields, nil)
	s.UpdateSection(a.ID, "headline", "Undone")

	require.True(t, s.Undo())
	require.True(t, s.CanRedo())

	s.UpdateSection(a.ID, "headline", "Replacement")
	assert.False(t, s.CanRedo())
	assert.False(t, s.Redo())

	got, _ := s.Section(a.ID)
	assert.Equal(t, "Replacement", got.Content["headline"])
}

func TestHistoryIsBounded(t *testing.T) {
	const max = 5
	s := newTestStore(WithMaxHistory(max))
	a := s.AddSection("hero", heroDefaults, heroFields, nil)
	for i := 0; i < max+3; i++ {
		s.UpdateSection(a.ID, "headline", fmt.Sprintf("v%d", i))
	}

	assert.Equal(t, max, s.HistoryDepth())
	undos := 0
	for s.Undo() {
		undos++
	}
	assert.Equal(t, max-1, undos)
}

func TestSilentUpdateSkipsHistory(t *testing.T) {
	s := newTestStore()
	a := s.AddSection("hero", heroDefaults, heroFields, nil)
	s.UpdateSection(a.ID, "headline", "Committed")

	changes := 0
	s.Subscribe(func([]models.Section) { changes++ })
	canUndo, canRedo := s.CanUndo(), s.CanRedo()
	depth := s.HistoryDepth()

	s.UpdateSectionSilent(a.ID, "headline", "Typing")
	got, _ := s.Section(a.ID)
	assert.Equal(t, "Typing", got.Content["headline"])
	assert.Equal(t, canUndo, s.CanUndo())
	assert.Equal(t, canRedo, s.CanRedo())
	assert.Equal(t, depth, s.HistoryDepth())
	assert.Zero(t, changes)

	require.True(t, s.Undo())
	got, _ = s.Section(a.ID)
	assert.Equal(t, heroDefaults["headline"], got.Content["headline"], "undo ignores the silent value")

	require.True(t, s.Redo())
	got, _ = s.Section(a.ID)
	assert.Equal(t, "Committed", got.Content["headline"])
}

func TestSilentUpdateThenCommit(t *testing.T) {
	s := newTestStore()
	a := s.AddSection("hero", heroDefaults, heroFields, nil)

	s.UpdateSectionSilent(a.ID, "headline", "Draft")
	s.UpdateSection(a.ID, "headline", "Final")
	s.AddSection("final-cta", nil, nil, nil)

	require.True(t, s.Undo())
	got, _ := s.Section(a.ID)
	assert.Equal(t, "Final", got.Content["headline"])
}

func TestVisibilityKeepsContent(t *testing.T) {
	s := newTestStore()
	a := s.AddSection("hero", heroDefaults, heroFields, nil)

	s.UpdateVisibility(a.ID, "body", false)
	got, _ := s.Section(a.ID)
	assert.False(t, got.Visibility["body"])
	assert.Equal(t, "Body copy", got.Content["body"])

	s.UpdateVisibility(a.ID, "body", true)
	got, _ = s.Section(a.ID)
	assert.True(t, got.Visibility["body"])
	assert.Equal(t, "Body copy", got.Content["body"])
}

func TestSetAllVisibility(t *testing.T) {
	s := newTestStore()
	a := s.AddSection("hero", heroDefaults, heroFields, nil)

	s.SetAllVisibility(a.ID, false)
	got, _ := s.Section(a.ID)
	for _, f := range heroFields {
		assert.False(t, got.Visibility[f.Key], f.Key)
	}
	assert.Len(t, got.Visibility, len(heroFields))

	s.SetAllVisibility(a.ID, true)
	got, _ = s.Section(a.ID)
	for _, f := range heroFields {
		assert.True(t, got.Visibility[f.Key], f.Key)
	}
}

func TestUpdateSectionColorMaterializesDefaults(t *testing.T) {
	defaults := staticColors{
		"latest-stories": {models.ColorBackground: "sand", models.ColorCardBackground: "white"},
	}
	s := newTestStore(WithColorDefaults(defaults))
	a := s.AddSection("latest-stories", nil, nil, nil)
	b := s.AddSection("unknown", nil, nil, nil)

	s.UpdateSectionColor(a.ID, models.ColorBackground, "cardinal")
	got, _ := s.Section(a.ID)
	assert.Equal(t, models.Colors{models.ColorBackground: "cardinal", models.ColorCardBackground: "white"}, got.Colors)
	assert.Equal(t, "sand", defaults["latest-stories"][models.ColorBackground], "defaults are not written through")

	s.UpdateSectionColor(b.ID, models.ColorBackground, "black")
	got, _ = s.Section(b.ID)
	assert.Equal(t, models.Colors{models.ColorBackground: "black"}, got.Colors)

	require.True(t, s.Undo())
	got, _ = s.Section(b.ID)
	assert.Nil(t, got.Colors)
}

func TestDuplicateSectionIsIndependent(t *testing.T) {
	s := newTestStore()
	a := s.AddSection("hero", heroDefaults, heroFields, nil)
	c := s.AddSection("final-cta", nil, nil, nil)

	dup, ok := s.DuplicateSection(a.ID)
	require.True(t, ok)
	assert.NotEqual(t, a.ID, dup.ID)

	sections := s.Sections()
	require.Len(t, sections, 3)
	assert.Equal(t, []string{a.ID, dup.ID, c.ID}, []string{sections[0].ID, sections[1].ID, sections[2].ID})

	s.UpdateSection(a.ID, "headline", "Original only")
	gotDup, _ := s.Section(dup.ID)
	assert.Equal(t, heroDefaults["headline"], gotDup.Content["headline"])

	s.UpdateSection(dup.ID, "body", "Duplicate only")
	gotA, _ := s.Section(a.ID)
	assert.Equal(t, "Body copy", gotA.Content["body"])

	s.UpdateVisibility(dup.ID, "headline", false)
	gotA, _ = s.Section(a.ID)
	assert.True(t, gotA.Visibility["headline"])

	_, ok = s.DuplicateSection("missing")
	assert.False(t, ok)
}

func TestMoveSection(t *testing.T) {
	s := newTestStore()
	s1 := s.AddSection("hero", nil, nil, nil)
	s2 := s.AddSection("statistics", nil, nil, nil)

	s.MoveSection(0, 1)
	sections := s.Sections()
	assert.Equal(t, []string{s2.ID, s1.ID}, []string{sections[0].ID, sections[1].ID})

	depth := s.HistoryDepth()
	s.MoveSection(1, 1)
	s.MoveSection(-1, 0)
	s.MoveSection(0, 2)
	assert.Equal(t, depth, s.HistoryDepth(), "no-op moves record nothing")
	assert.Equal(t, sections, s.Sections())
}

func TestMoveSectionSplicesIntoShortenedSequence(t *testing.T) {
	s := newTestStore()
	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, s.AddSection("hero", nil, nil, nil).ID)
	}

	s.MoveSection(0, 2)
	assert.Equal(t, []string{ids[1], ids[2], ids[0], ids[3]}, sectionIDs(s.Sections()))

	s.MoveSection(3, 0)
	assert.Equal(t, []string{ids[3], ids[1], ids[2], ids[0]}, sectionIDs(s.Sections()))
}

func TestDeleteSection(t *testing.T) {
	s := newTestStore()
	a := s.AddSection("hero", nil, nil, nil)

	s.DeleteSection(a.ID)
	assert.Empty(t, s.Sections())
	assert.NotNil(t, s.Sections())

	depth := s.HistoryDepth()
	s.DeleteSection(a.ID)
	assert.Equal(t, depth, s.HistoryDepth())
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	s := newTestStore()
	s.AddSection("hero", heroDefaults, heroFields, nil)
	before := s.Sections()
	depth := s.HistoryDepth()

	notified := 0
	s.Subscribe(func([]models.Section) { notified++ })

	s.UpdateSection("missing", "headline", "x")
	s.UpdateSectionSilent("missing", "headline", "x")
	s.UpdateVisibility("missing", "headline", false)
	s.SetAllVisibility("missing", false)
	s.UpdateSectionColor("missing", models.ColorBackground, "black")
	s.DeleteSection("missing")

	assert.Equal(t, before, s.Sections())
	assert.Equal(t, depth, s.HistoryDepth())
	assert.Zero(t, notified)
	_, ok := s.Section("missing")
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	s := newTestStore()
	s.AddSection("hero", nil, nil, nil)
	s.AddSection("hero", nil, nil, nil)

	s.Clear()
	assert.Zero(t, s.Len())
	require.True(t, s.Undo())
	assert.Equal(t, 2, s.Len())
}

func TestObserversAndNotificationOrder(t *testing.T) {
	s := newTestStore()

	var events []string
	var lastLen int
	stopA := s.Subscribe(func(sections []models.Section) {
		events = append(events, "change-a")
		lastLen = len(sections)
	})
	s.Subscribe(func([]models.Section) { events = append(events, "change-b") })
	s.SubscribeHistory(func(canUndo, canRedo bool) {
		events = append(events, fmt.Sprintf("history %v %v", canUndo, canRedo))
	})

	s.AddSection("hero", nil, nil, nil)
	assert.Equal(t, []string{"history true false", "change-a", "change-b"}, events)
	assert.Equal(t, 1, lastLen)

	events = nil
	s.Undo()
	assert.Equal(t, []string{"change-a", "change-b", "history false true"}, events)
	assert.Equal(t, 0, lastLen)

	events = nil
	stopA()
	stopA()
	s.Redo()
	assert.Equal(t, []string{"change-b", "history true false"}, events)

	events = nil
	assert.False(t, s.Redo())
	assert.Empty(t, events, "a failed redo does not notify")
}

func TestListenersReceiveCopies(t *testing.T) {
	s := newTestStore()
	s.Subscribe(func(sections []models.Section) {
		for i := range sections {
			sections[i].Content["headline"] = "mutated by listener"
		}
	})
	a := s.AddSection("hero", heroDefaults, heroFields, nil)

	got, _ := s.Section(a.ID)
	assert.Equal(t, heroDefaults["headline"], got.Content["headline"])
}

func TestInitAndTeardown(t *testing.T) {
	s := newTestStore()
	s.AddSection("hero", nil, nil, nil)

	var events []string
	s.Subscribe(func([]models.Section) { events = append(events, "change") })
	s.SubscribeHistory(func(bool, bool) { events = append(events, "history") })

	saved := &models.Document{Sections: []models.Section{
		{ID: "a", Type: "hero", Content: models.Content{"headline": "Saved"}},
		{ID: "b", Type: "final-cta"},
	}}
	s.Init(saved)

	assert.Equal(t, []string{"history", "change"}, events)
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.CanUndo())
	assert.Equal(t, 1, s.HistoryDepth())

	saved.Sections[0].Content["headline"] = "changed after init"
	got, _ := s.Section("a")
	assert.Equal(t, "Saved", got.Content["headline"])

	s.Init(nil)
	assert.Zero(t, s.Len())

	events = nil
	s.Teardown()
	s.AddSection("hero", nil, nil, nil)
	assert.Empty(t, events, "teardown drops listeners")
}

func TestDocumentRoundTrip(t *testing.T) {
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("CST", -6*3600))
	s := newTestStore(WithClock(func() time.Time { return fixed }))
	a := s.AddSection("hero", heroDefaults, heroFields, nil)
	s.UpdateVisibility(a.ID, "body", false)
	s.UpdateSectionColor(a.ID, models.ColorBackground, "cardinal")
	s.AddSection("final-cta", models.Content{"headline": "Apply"}, nil, nil)

	doc := s.ToDocument()
	assert.Equal(t, models.DocumentVersion, doc.Version)
	assert.Equal(t, fixed.UTC(), doc.ExportedAt)

	other := newTestStore()
	require.True(t, other.FromDocument(&doc))
	assert.Equal(t, s.Sections(), other.Sections())
	assert.True(t, other.CanUndo(), "import is an undoable mutation")
}

func TestFromDocumentRejectsMissingSections(t *testing.T) {
	s := newTestStore()
	s.AddSection("hero", nil, nil, nil)
	before := s.Sections()
	depth := s.HistoryDepth()

	assert.False(t, s.FromDocument(nil))
	assert.False(t, s.FromDocument(&models.Document{Version: 1}))
	assert.Equal(t, before, s.Sections())
	assert.Equal(t, depth, s.HistoryDepth())

	assert.True(t, s.FromDocument(&models.Document{Sections: []models.Section{}}))
	assert.Zero(t, s.Len())
}

func TestNewSectionIDIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewSectionID()
		assert.Regexp(t, `^section-[0-9a-f-]{36}$`, id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func sectionIDs(sections []models.Section) []string {
	ids := make([]string, len(sections))
	for i, s := range sections {
		ids[i] = s.ID
	}
	return ids
}
