package assets

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
)

const (
	TemplateSize = 1280
	ClockSize    = 250
	GlyphSize    = 220
)

var (
	builtinOnce sync.Once
	builtinSet  *Set
)

// Builtin returns the procedurally drawn artwork. It is generated once.
func Builtin() *Set {
	builtinOnce.Do(func() {
		builtinSet = &Set{
			Template:   drawTemplate(),
			Clock:      drawClockFace(),
			HourHand:   drawHand(18, 75, "#ffffff"),
			MinuteHand: drawHand(10, 110, "#ffcc33"),
			Glyphs: map[string]image.Image{
				Sun:   drawSun(),
				Moon:  drawMoon(),
				Snow:  drawSnow(),
				Cloud: drawCloud(),
				Rain:  drawRain(),
			},
		}
	})
	return builtinSet
}

func drawTemplate() image.Image {
	dc := gg.NewContext(TemplateSize, TemplateSize)
	grad := gg.NewLinearGradient(0, 0, 0, TemplateSize)
	grad.AddColorStop(0, color.RGBA{R: 0x1d, G: 0x35, B: 0x57, A: 0xff})
	grad.AddColorStop(1, color.RGBA{R: 0x0b, G: 0x13, B: 0x2b, A: 0xff})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, TemplateSize, TemplateSize)
	dc.Fill()

	// caption panel and bottom strip
	dc.SetRGBA(1, 1, 1, 0.08)
	dc.DrawRoundedRectangle(140, 255, 1000, 390, 40)
	dc.Fill()
	dc.DrawRoundedRectangle(30, 640, 1220, 265, 40)
	dc.Fill()
	return dc.Image()
}

func drawClockFace() image.Image {
	dc := gg.NewContext(ClockSize, ClockSize)
	c := float64(ClockSize) / 2
	dc.DrawCircle(c, c, c-4)
	dc.SetHexColor("#f1faee")
	dc.FillPreserve()
	dc.SetHexColor("#457b9d")
	dc.SetLineWidth(8)
	dc.Stroke()

	dc.SetHexColor("#1d3557")
	for i := 0; i < 12; i++ {
		a := float64(i) * math.Pi / 6
		inner, outer := c-30, c-14
		if i%3 == 0 {
			inner = c - 42
			dc.SetLineWidth(8)
		} else {
			dc.SetLineWidth(4)
		}
		sin, cos := math.Sincos(a)
		dc.DrawLine(c+inner*sin, c-inner*cos, c+outer*sin, c-outer*cos)
		dc.Stroke()
	}
	dc.DrawCircle(c, c, 9)
	dc.Fill()
	return dc.Image()
}

// drawHand draws a vertical hand pointing up; the renderer pivots it near the bottom edge.
func drawHand(w, h int, hex string) image.Image {
	dc := gg.NewContext(w, h)
	dc.SetHexColor("#1d3557")
	dc.DrawRoundedRectangle(0, 0, float64(w), float64(h), float64(w)/2)
	dc.Fill()
	dc.SetHexColor(hex)
	dc.DrawRoundedRectangle(2, 2, float64(w-4), float64(h-4), float64(w-4)/2)
	dc.Fill()
	return dc.Image()
}

func drawSun() image.Image {
	dc := gg.NewContext(GlyphSize, GlyphSize)
	c := float64(GlyphSize) / 2
	dc.SetHexColor("#ffb703")
	dc.SetLineWidth(10)
	dc.SetLineCap(gg.LineCapRound)
	for i := 0; i < 8; i++ {
		sin, cos := math.Sincos(float64(i) * math.Pi / 4)
		dc.DrawLine(c+62*cos, c+62*sin, c+95*cos, c+95*sin)
		dc.Stroke()
	}
	dc.DrawCircle(c, c, 48)
	dc.Fill()
	return dc.Image()
}

func drawMoon() image.Image {
	mask := gg.NewContext(GlyphSize, GlyphSize)
	c := float64(GlyphSize) / 2
	mask.DrawCircle(c+38, c-28, 70)
	mask.Fill()

	dc := gg.NewContext(GlyphSize, GlyphSize)
	if err := dc.SetMask(mask.AsMask()); err == nil {
		dc.InvertMask()
	}
	dc.SetHexColor("#f1faee")
	dc.DrawCircle(c, c, 85)
	dc.Fill()
	return dc.Image()
}

func drawCloudShape(dc *gg.Context, dy float64) {
	dc.DrawCircle(80, 110+dy, 42)
	dc.DrawCircle(125, 92+dy, 52)
	dc.DrawCircle(165, 118+dy, 36)
	dc.DrawRoundedRectangle(40, 110+dy, 160, 44, 22)
	dc.Fill()
}

func drawCloud() image.Image {
	dc := gg.NewContext(GlyphSize, GlyphSize)
	dc.SetHexColor("#dfe7ef")
	drawCloudShape(dc, 0)
	return dc.Image()
}

func drawRain() image.Image {
	dc := gg.NewContext(GlyphSize, GlyphSize)
	dc.SetHexColor("#a8b8c8")
	drawCloudShape(dc, -25)
	dc.SetHexColor("#4cc9f0")
	dc.SetLineWidth(8)
	dc.SetLineCap(gg.LineCapRound)
	for _, x := range []float64{75, 115, 155} {
		dc.DrawLine(x, 150, x-14, 195)
		dc.Stroke()
	}
	return dc.Image()
}

func drawSnow() image.Image {
	dc := gg.NewContext(GlyphSize, GlyphSize)
	c := float64(GlyphSize) / 2
	dc.SetHexColor("#e0fbfc")
	dc.SetLineWidth(9)
	dc.SetLineCap(gg.LineCapRound)
	for i := 0; i < 3; i++ {
		sin, cos := math.Sincos(float64(i) * math.Pi / 3)
		dc.DrawLine(c-85*cos, c-85*sin, c+85*cos, c+85*sin)
		dc.Stroke()
		// branches near both tips
		for _, s := range []float64{-1, 1} {
			tx, ty := c+s*55*cos, c+s*55*sin
			for _, b := range []float64{-math.Pi / 4, math.Pi / 4} {
				bs, bc := math.Sincos(float64(i)*math.Pi/3 + b)
				dc.DrawLine(tx, ty, tx+s*25*bc, ty+s*25*bs)
				dc.Stroke()
			}
		}
	}
	return dc.Image()
}
