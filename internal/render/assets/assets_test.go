package assets

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/fogleman/gg"
)

func TestBuiltinIsComplete(t *testing.T) {
	t.Parallel()
	s := Builtin()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if b := s.Template.Bounds(); b.Dx() != TemplateSize || b.Dy() != TemplateSize {
		t.Fatalf("template bounds = %v", b)
	}
	if Builtin() != s {
		t.Fatal("Builtin should be generated once")
	}
	// The crescent leaves the masked corner transparent.
	if _, _, _, a := s.Glyph(Moon).At(GlyphSize/2+60, GlyphSize/2-40).RGBA(); a != 0 {
		t.Fatalf("moon cut-out alpha = %d, want 0", a)
	}
}

func TestLoadEmptyDirFallsBackToBuiltin(t *testing.T) {
	t.Parallel()
	s, err := Load("  ")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != Builtin() {
		t.Fatal("expected builtin set")
	}
}

func TestLoadFromDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	b := Builtin()
	files := map[string]image.Image{
		"template":    b.Template,
		"clock":       b.Clock,
		"hour_hand":   b.HourHand,
		"minute_hand": b.MinuteHand,
	}
	for _, g := range GlyphNames {
		files[g] = b.Glyphs[g]
	}
	for name, img := range files {
		if err := gg.SavePNG(filepath.Join(dir, name+".png"), img); err != nil {
			t.Fatalf("SavePNG %s: %v", name, err)
		}
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if s.Clock.Bounds().Dx() != ClockSize {
		t.Fatalf("clock width = %d", s.Clock.Bounds().Dx())
	}

	if err := os.Remove(filepath.Join(dir, "rain.png")); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for missing glyph")
	}
}

func TestLoadMissingDir(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error")
	}
}
