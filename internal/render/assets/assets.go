// Package assets loads the badge artwork: the template, the clock face, the
// two hand sprites and one glyph per weather kind. When no directory is
// configured, a built-in set is drawn with gg.
package assets

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
)

// Glyph names, one per weather kind.
const (
	Sun   = "sun"
	Moon  = "moon"
	Snow  = "snow"
	Cloud = "cloud"
	Rain  = "rain"
)

// GlyphNames lists every glyph a Set must carry.
var GlyphNames = []string{Sun, Moon, Snow, Cloud, Rain}

// Set is an immutable collection of artwork. Consumers must copy before drawing.
type Set struct {
	Template   image.Image
	Clock      image.Image
	HourHand   image.Image
	MinuteHand image.Image
	Glyphs     map[string]image.Image
}

// Glyph returns the glyph for name, or nil.
func (s *Set) Glyph(name string) image.Image {
	return s.Glyphs[strings.ToLower(name)]
}

// Validate checks that every image is present.
func (s *Set) Validate() error {
	if s == nil {
		return fmt.Errorf("assets: nil set")
	}
	for name, img := range map[string]image.Image{
		"template":    s.Template,
		"clock":       s.Clock,
		"hour_hand":   s.HourHand,
		"minute_hand": s.MinuteHand,
	} {
		if img == nil {
			return fmt.Errorf("assets: missing %s", name)
		}
	}
	for _, g := range GlyphNames {
		if s.Glyphs[g] == nil {
			return fmt.Errorf("assets: missing glyph %s", g)
		}
	}
	return nil
}

// Load reads <dir>/<name>.png for every asset. An empty dir returns Builtin().
func Load(dir string) (*Set, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return Builtin(), nil
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("assets: %s is not a directory", dir)
	}

	read := func(name string) (image.Image, error) {
		img, err := gg.LoadPNG(filepath.Join(dir, name+".png"))
		if err != nil {
			return nil, fmt.Errorf("assets: load %s: %w", name, err)
		}
		return img, nil
	}

	s := &Set{Glyphs: make(map[string]image.Image, len(GlyphNames))}
	for _, it := range []struct {
		name string
		dst  *image.Image
	}{
		{"template", &s.Template},
		{"clock", &s.Clock},
		{"hour_hand", &s.HourHand},
		{"minute_hand", &s.MinuteHand},
	} {
		img, err := read(it.name)
		if err != nil {
			return nil, err
		}
		*it.dst = img
	}
	for _, g := range GlyphNames {
		img, err := read(g)
		if err != nil {
			return nil, err
		}
		s.Glyphs[g] = img
	}
	return s, nil
}
