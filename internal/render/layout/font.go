package layout

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// referenceGlyphs is measured to derive the line height of a face.
const referenceGlyphs = "Hg"

// Font is a parsed TrueType font that hands out faces at integer pixel sizes.
// Faces are cached per size. truetype faces keep internal glyph caches, so all
// measuring and drawing through one Font is serialized by mu.
type Font struct {
	name string
	ttf  *truetype.Font

	mu    sync.Mutex
	faces map[int]font.Face
}

// LoadFont reads a TTF file. An empty path yields the embedded Go Regular font.
func LoadFont(path string) (*Font, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ParseFont("goregular", goregular.TTF)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	return ParseFont(path, b)
}

func ParseFont(name string, ttf []byte) (*Font, error) {
	f, err := truetype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", name, err)
	}
	return &Font{name: name, ttf: f, faces: map[int]font.Face{}}, nil
}

func (f *Font) Name() string { return f.name }

// Face returns the face for size. Callers drawing with it must hold Lock.
func (f *Font) Face(size int) font.Face {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faceLocked(size)
}

// Lock and Unlock serialize drawing with faces handed out by Face.
func (f *Font) Lock()   { f.mu.Lock() }
func (f *Font) Unlock() { f.mu.Unlock() }

func (f *Font) faceLocked(size int) font.Face {
	if size < 1 {
		size = 1
	}
	if fc, ok := f.faces[size]; ok {
		return fc
	}
	// Size is in points at 72 DPI, so one point is one pixel.
	fc := truetype.NewFace(f.ttf, &truetype.Options{Size: float64(size), DPI: 72, Hinting: font.HintingNone})
	f.faces[size] = fc
	return fc
}

// Metrics implements FaceSource.
func (f *Font) Metrics(size int) Metrics {
	return faceMetrics{font: f, size: size}
}

type faceMetrics struct {
	font *Font
	size int
}

func (m faceMetrics) Width(s string) float64 {
	m.font.mu.Lock()
	defer m.font.mu.Unlock()
	return toFloat(font.MeasureString(m.font.faceLocked(m.size), s))
}

func (m faceMetrics) Reference() (above, below float64) {
	m.font.mu.Lock()
	defer m.font.mu.Unlock()
	b, _ := font.BoundString(m.font.faceLocked(m.size), referenceGlyphs)
	return -toFloat(b.Min.Y), toFloat(b.Max.Y)
}

func toFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }
