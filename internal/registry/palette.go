package registry

import "github.com/visionpointmarketing/troy-sandbox/internal/models"

// Color is one background color a section or card may use.
type Color struct {
	Key         string `json:"key"`
	Hex         string `json:"hex"`
	BgClass     string `json:"bgClass"`
	IsDark      bool   `json:"isDark"`
	HasHalftone bool   `json:"hasHalftone"`
	Label       string `json:"label"`
}

// Contrast holds the text and accent classes readable on a background.
type Contrast struct {
	Text               string `json:"text"`
	TextMuted          string `json:"textMuted"`
	BadgeBg            string `json:"badgeBg"`
	BadgeText          string `json:"badgeText"`
	HeaderAccent       string `json:"headerAccent"`
	HeaderAccentCenter string `json:"headerAccentCenter"`
	CategoryText       string `json:"categoryText"`
	ShowHalftone       bool   `json:"showHalftone"`
}

// palette is ordered light to dark, the order pickers present it in.
var palette = []Color{
	{Key: "white", Hex: "#ffffff", BgClass: "bg-white", Label: "White"},
	{Key: "sand", Hex: "#f1efe3", BgClass: "bg-sand", HasHalftone: true, Label: "Sand"},
	{Key: "sand-300", Hex: "#e8e6da", BgClass: "bg-sand-300", Label: "Sand Dark"},
	{Key: "wheat", Hex: "#efd19f", BgClass: "bg-wheat", Label: "Wheat"},
	{Key: "cardinal", Hex: "#910039", BgClass: "bg-cardinal", IsDark: true, Label: "Cardinal"},
	{Key: "cardinal-900", Hex: "#720724", BgClass: "bg-cardinal-900", IsDark: true, Label: "Cardinal Dark"},
	{Key: "black", Hex: "#1a1a1a", BgClass: "bg-[#1a1a1a]", IsDark: true, Label: "Black"},
}

var paletteByKey = func() map[string]Color {
	m := make(map[string]Color, len(palette))
	for _, c := range palette {
		m[c.Key] = c
	}
	return m
}()

// fallbackColor is used for unknown color keys.
const fallbackColor = "sand"

var (
	darkContrast = Contrast{
		Text:               "text-white",
		TextMuted:          "text-white/80",
		BadgeBg:            "bg-wheat",
		BadgeText:          "text-black",
		HeaderAccent:       "section-header section-header-light",
		HeaderAccentCenter: "section-header-center-light",
		CategoryText:       "text-wheat",
	}
	lightContrast = Contrast{
		Text:               "text-black",
		TextMuted:          "text-black/80",
		BadgeBg:            "bg-cardinal-800",
		BadgeText:          "text-white",
		HeaderAccent:       "section-header section-header-black",
		HeaderAccentCenter: "section-header-center section-header-black",
		CategoryText:       "text-cardinal-800",
	}
)

// LookupColor returns the palette entry for key.
func LookupColor(key string) (Color, bool) {
	c, ok := paletteByKey[key]
	return c, ok
}

// ColorOr returns the palette entry for key, or the one for fallback when
// key is unknown.
func ColorOr(key, fallback string) Color {
	if c, ok := paletteByKey[key]; ok {
		return c
	}
	if c, ok := paletteByKey[fallback]; ok {
		return c
	}
	return paletteByKey[fallbackColor]
}

// ContrastFor returns the classes readable on the background key. Unknown
// keys are treated as sand.
func ContrastFor(key string) Contrast {
	c, ok := paletteByKey[key]
	if !ok {
		c = paletteByKey[fallbackColor]
	}
	if c.IsDark {
		return darkContrast
	}
	cfg := lightContrast
	cfg.ShowHalftone = c.HasHalftone
	return cfg
}

// BackgroundColors lists every color a section background may use.
func BackgroundColors() []Color {
	out := make([]Color, len(palette))
	copy(out, palette)
	return out
}

// CardBackgroundColors lists the light colors cards may use.
func CardBackgroundColors() []Color {
	var out []Color
	for _, c := range palette {
		if !c.IsDark {
			out = append(out, c)
		}
	}
	return out
}

// IsColorKey reports whether key names a palette color.
func IsColorKey(key string) bool {
	_, ok := paletteByKey[key]
	return ok
}

// ResolveColors merges explicit section colors over defaults without
// modifying either.
func ResolveColors(explicit, defaults models.Colors) models.Colors {
	out := make(models.Colors, len(defaults)+len(explicit))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range explicit {
		out[k] = v
	}
	return out
}
