// Package layout fits free text into a pixel box by wrapping words and
// searching for the largest font size that keeps the block inside the box.
//
// The package is pure: it only needs a way to measure strings at a given
// integer size (FaceSource). Identical inputs always produce identical output.
package layout

import (
	"image"
	"math"
	"strings"
)

const (
	MinSize = 10
	MaxSize = 277

	// lineFactor is applied to the line height when testing whether a wrapped
	// block fits vertically.
	lineFactor = 1.1
	// spacingFactor is the gap between two drawn lines, relative to the line height.
	spacingFactor = 0.1
)

// Metrics measures text rendered with one face at one size.
type Metrics interface {
	// Width returns the advance width of s in pixels.
	Width(s string) float64
	// Reference returns the ink extent of the reference glyph pair "Hg"
	// above and below the baseline. Their sum is the line height.
	Reference() (above, below float64)
}

// FaceSource yields metrics for a font at an integer pixel size.
type FaceSource interface {
	Metrics(size int) Metrics
}

// Result is a wrapped block and the size it was wrapped at.
type Result struct {
	Lines []string
	Size  int
	// Overflow is set when even MinSize does not fit the box and the block was
	// wrapped at MinSize anyway.
	Overflow bool
}

// Fit wraps text into box. A fixedSize > 0 skips the size search.
func Fit(text string, box image.Rectangle, src FaceSource, fixedSize int) Result {
	words := strings.Fields(text)
	boxW := float64(box.Dx())
	boxH := float64(box.Dy())

	if fixedSize > 0 {
		m := src.Metrics(fixedSize)
		lines := wrap(words, boxW, m)
		return Result{Lines: lines, Size: fixedSize, Overflow: !fits(lines, boxW, boxH, m)}
	}

	lo, hi := MinSize, MaxSize
	var best *Result
	for lo <= hi {
		mid := (lo + hi) / 2
		m := src.Metrics(mid)
		lines := wrap(words, boxW, m)
		if fits(lines, boxW, boxH, m) {
			best = &Result{Lines: lines, Size: mid}
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best != nil {
		return *best
	}
	return Result{Lines: wrap(words, boxW, src.Metrics(MinSize)), Size: MinSize, Overflow: true}
}

// BlockHeight is the height used by the feasibility test.
func BlockHeight(lines []string, m Metrics) float64 {
	return float64(len(lines)) * LineHeight(m) * lineFactor
}

// LineHeight is the height of the reference glyph pair.
func LineHeight(m Metrics) float64 {
	above, below := m.Reference()
	return above + below
}

// MaxWidth returns the widest line.
func MaxWidth(lines []string, m Metrics) float64 {
	w := 0.0
	for _, l := range lines {
		if lw := m.Width(l); lw > w {
			w = lw
		}
	}
	return w
}

func fits(lines []string, boxW, boxH float64, m Metrics) bool {
	return BlockHeight(lines, m) <= boxH && MaxWidth(lines, m) <= boxW
}

// wrap packs words greedily into lines no wider than boxW. A word wider than
// the box is split into character fragments that each fit.
func wrap(words []string, boxW float64, m Metrics) []string {
	var (
		lines []string
		cur   []string
		curW  float64
	)
	space := m.Width(" ")
	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, strings.Join(cur, " "))
			cur = cur[:0]
			curW = 0
		}
	}

	for _, w := range words {
		ww := m.Width(w)
		if ww > boxW {
			flush()
			lines = append(lines, splitWord(w, boxW, m)...)
			continue
		}
		if len(cur) == 0 {
			cur = append(cur, w)
			curW = ww
			continue
		}
		if curW+space+ww <= boxW {
			cur = append(cur, w)
			curW += space + ww
			continue
		}
		flush()
		cur = append(cur, w)
		curW = ww
	}
	flush()
	return lines
}

// splitWord cuts w into runs of characters whose measured width fits boxW.
// A single character wider than the box still becomes its own fragment.
func splitWord(w string, boxW float64, m Metrics) []string {
	var (
		parts []string
		part  []rune
	)
	for _, r := range w {
		next := append(part, r)
		if len(part) > 0 && m.Width(string(next)) > boxW {
			parts = append(parts, string(part))
			part = []rune{r}
			continue
		}
		part = next
	}
	if len(part) > 0 {
		parts = append(parts, string(part))
	}
	return parts
}

// Line is one wrapped line positioned inside a box.
type Line struct {
	Text string
	// X is the left edge of the line's advance box.
	X float64
	// Baseline is the y coordinate of the line's baseline.
	Baseline float64
}

// Place centers a wrapped block vertically in box and each line horizontally.
func Place(r Result, box image.Rectangle, m Metrics) []Line {
	if len(r.Lines) == 0 {
		return nil
	}
	above, _ := m.Reference()
	lh := LineHeight(m)
	spacing := lh * spacingFactor
	n := float64(len(r.Lines))
	total := n*lh + (n-1)*spacing

	y := float64(box.Min.Y) + math.Floor((float64(box.Dy())-total)/2)
	out := make([]Line, 0, len(r.Lines))
	for _, l := range r.Lines {
		x := float64(box.Min.X) + math.Floor((float64(box.Dx())-m.Width(l))/2)
		out = append(out, Line{Text: l, X: x, Baseline: y + above})
		y += lh + spacing
	}
	return out
}
