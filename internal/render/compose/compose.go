// Package compose draws the badge: caption, unit, time and temperature text,
// the analog clock and the weather glyph over the template.
package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"regexp"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"weatherbadge/internal/render/assets"
	"weatherbadge/internal/render/clock"
	"weatherbadge/internal/render/layout"
)

// Regions in template pixel space.
var (
	CaptionBox     = image.Rect(172, 285, 1108, 615)
	UnitBox        = image.Rect(1080, 706, 1180, 796)
	TimeBox        = image.Rect(250, 670, 625, 865)
	TemperatureBox = image.Rect(835, 670, 1095, 865)

	ClockCenter = image.Pt(170, 772)
	GlyphCenter = image.Pt(755, 772)
)

const (
	// UnitText is drawn into UnitBox.
	UnitText = "°C"
	// DefaultFixedSize is the font size for the time and temperature strings.
	DefaultFixedSize = 160
)

// Kind is the weather glyph drawn on the badge.
type Kind int

const (
	KindCloud Kind = iota
	KindSun
	KindMoon
	KindSnow
	KindRain
)

func (k Kind) String() string {
	switch k {
	case KindSun:
		return assets.Sun
	case KindMoon:
		return assets.Moon
	case KindSnow:
		return assets.Snow
	case KindRain:
		return assets.Rain
	default:
		return assets.Cloud
	}
}

// Day window for clear-sky codes, local time.
const (
	dayStartMinutes = 6 * 60
	dayEndMinutes   = 21 * 60
)

// Classify maps an OpenWeatherMap condition code and the local time of day to a Kind.
func Classify(code int, local time.Time) Kind {
	switch code / 100 {
	case 2, 3, 5:
		return KindRain
	case 6:
		return KindSnow
	case 7:
		return KindCloud
	case 8:
		if r := code % 100; r == 0 || r == 1 {
			m := local.Hour()*60 + local.Minute()
			if m >= dayStartMinutes && m < dayEndMinutes {
				return KindSun
			}
			return KindMoon
		}
	}
	return KindCloud
}

var dashRuns = regexp.MustCompile(`[ -]{2,}`)

// NormalizeCaption collapses runs of two or more spaces or hyphens into one space.
func NormalizeCaption(s string) string {
	return dashRuns.ReplaceAllString(s, " ")
}

// Input is everything that changes between two badges.
type Input struct {
	Caption     string
	Time        string // HH:MM
	Temperature string
	Kind        Kind
}

type Option func(*Composer)

// WithFixedSize overrides the font size used for time and temperature.
func WithFixedSize(size int) Option {
	return func(c *Composer) {
		if size > 0 {
			c.fixedSize = size
		}
	}
}

func WithTextColor(col color.Color) Option {
	return func(c *Composer) {
		if col != nil {
			c.textColor = col
		}
	}
}

// WithBackground sets the color the badge is flattened onto.
func WithBackground(col color.Color) Option {
	return func(c *Composer) {
		if col != nil {
			c.background = col
		}
	}
}

// Composer is safe for sequential use; the scheduler never composes two
// badges at once.
type Composer struct {
	set  *assets.Set
	font *layout.Font

	fixedSize  int
	textColor  color.Color
	background color.Color
}

func New(set *assets.Set, font *layout.Font, opts ...Option) (*Composer, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	if font == nil {
		return nil, fmt.Errorf("compose: nil font")
	}
	c := &Composer{
		set:        set,
		font:       font,
		fixedSize:  DefaultFixedSize,
		textColor:  color.White,
		background: color.White,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Compose renders one opaque badge at the template's resolution.
func (c *Composer) Compose(in Input) (*image.RGBA, error) {
	face, err := clock.Render(c.set.Clock, c.set.HourHand, c.set.MinuteHand, in.Time)
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	glyph := c.set.Glyph(in.Kind.String())
	if glyph == nil {
		return nil, fmt.Errorf("compose: no glyph for %s", in.Kind)
	}

	tb := c.set.Template.Bounds()
	dc := gg.NewContext(tb.Dx(), tb.Dy())
	dc.DrawImage(c.set.Template, -tb.Min.X, -tb.Min.Y)

	c.drawText(dc, NormalizeCaption(in.Caption), CaptionBox, 0)
	c.drawText(dc, UnitText, UnitBox, 0)
	c.drawText(dc, in.Time, TimeBox, c.fixedSize)
	c.drawText(dc, in.Temperature, TemperatureBox, c.fixedSize)

	dc.DrawImageAnchored(face, ClockCenter.X, ClockCenter.Y, 0.5, 0.5)
	dc.DrawImageAnchored(glyph, GlyphCenter.X, GlyphCenter.Y, 0.5, 0.5)

	return flatten(dc.Image(), c.background), nil
}

func (c *Composer) drawText(dc *gg.Context, text string, box image.Rectangle, fixedSize int) {
	res := layout.Fit(text, box, c.font, fixedSize)
	lines := layout.Place(res, box, c.font.Metrics(res.Size))
	if len(lines) == 0 {
		return
	}
	face := c.font.Face(res.Size)

	c.font.Lock()
	defer c.font.Unlock()
	dc.SetFontFace(face)
	dc.SetColor(c.textColor)
	for _, l := range lines {
		dc.DrawString(l.Text, l.X, l.Baseline)
	}
}

func flatten(src image.Image, bg color.Color) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Over)
	return out
}

// EncodePNG serializes a badge for upload.
func EncodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := gg.NewContextForRGBA(img).EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("compose: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
