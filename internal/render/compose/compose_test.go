package compose

import (
	"bytes"
	"image"
	"image/png"
	"testing"
	"time"

	"weatherbadge/internal/render/assets"
	"weatherbadge/internal/render/layout"
)

func at(h, m int) time.Time { return time.Date(2024, 1, 1, h, m, 0, 0, time.UTC) }

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code int
		at   time.Time
		want Kind
	}{
		{200, at(12, 0), KindRain},
		{311, at(12, 0), KindRain},
		{501, at(2, 0), KindRain},
		{600, at(12, 0), KindSnow},
		{701, at(12, 0), KindCloud},
		{800, at(12, 0), KindSun},
		{800, at(23, 0), KindMoon},
		{801, at(6, 0), KindSun},
		{800, at(5, 59), KindMoon},
		{800, at(20, 59), KindSun},
		{800, at(21, 0), KindMoon},
		{802, at(12, 0), KindCloud},
		{810, at(12, 0), KindCloud},
		{811, at(23, 0), KindCloud},
		{804, at(12, 0), KindCloud},
		{900, at(12, 0), KindCloud},
	}
	for _, tt := range tests {
		if got := Classify(tt.code, tt.at); got != tt.want {
			t.Fatalf("Classify(%d, %s) = %s, want %s", tt.code, tt.at.Format("15:04"), got, tt.want)
		}
	}
}

func TestNormalizeCaption(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"hello world":   "hello world",
		"hello   world": "hello world",
		"a -- b":        "a b",
		"well-known":    "well-known",
		"x - y":         "x y",
		"end  ":         "end ",
	}
	for in, want := range tests {
		if got := NormalizeCaption(in); got != want {
			t.Fatalf("NormalizeCaption(%q) = %q, want %q", in, got, want)
		}
	}
}

func newComposer(t *testing.T) *Composer {
	t.Helper()
	f, err := layout.LoadFont("")
	if err != nil {
		t.Fatalf("LoadFont: %v", err)
	}
	c, err := New(assets.Builtin(), f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestComposeIsOpaqueAtTemplateSize(t *testing.T) {
	t.Parallel()
	c := newComposer(t)
	img, err := c.Compose(Input{Caption: "Greetings  from -- Kazan", Time: "10:35", Temperature: "+7", Kind: KindSun})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if b := img.Bounds(); b.Dx() != assets.TemplateSize || b.Dy() != assets.TemplateSize {
		t.Fatalf("bounds = %v", b)
	}
	for _, p := range []image.Point{{0, 0}, {640, 640}, {1279, 1279}, ClockCenter, GlyphCenter} {
		if a := img.RGBAAt(p.X, p.Y).A; a != 0xff {
			t.Fatalf("pixel %v alpha = %d, want opaque", p, a)
		}
	}
}

func TestComposeDrawsGlyphByKind(t *testing.T) {
	t.Parallel()
	c := newComposer(t)
	sun, err := c.Compose(Input{Caption: "x", Time: "12:00", Temperature: "0", Kind: KindSun})
	if err != nil {
		t.Fatal(err)
	}
	snow, err := c.Compose(Input{Caption: "x", Time: "12:00", Temperature: "0", Kind: KindSnow})
	if err != nil {
		t.Fatal(err)
	}
	if sun.RGBAAt(GlyphCenter.X, GlyphCenter.Y) == snow.RGBAAt(GlyphCenter.X, GlyphCenter.Y) &&
		sun.RGBAAt(GlyphCenter.X+30, GlyphCenter.Y+30) == snow.RGBAAt(GlyphCenter.X+30, GlyphCenter.Y+30) {
		t.Fatal("glyph area identical for different kinds")
	}
}

func TestComposeRejectsBadTime(t *testing.T) {
	t.Parallel()
	c := newComposer(t)
	if _, err := c.Compose(Input{Caption: "x", Time: "25:00", Temperature: "0"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestEncodePNGRoundTrip(t *testing.T) {
	t.Parallel()
	c := newComposer(t)
	img, err := c.Compose(Input{Caption: "Novosibirsk", Time: "23:55", Temperature: "-12", Kind: KindMoon})
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	dec, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Bounds() != img.Bounds() {
		t.Fatalf("decoded bounds = %v", dec.Bounds())
	}
}

func TestNewValidatesAssets(t *testing.T) {
	t.Parallel()
	f, _ := layout.LoadFont("")
	if _, err := New(&assets.Set{}, f); err == nil {
		t.Fatal("expected error for empty asset set")
	}
	if _, err := New(assets.Builtin(), nil); err == nil {
		t.Fatal("expected error for nil font")
	}
}
