// Package clock draws an analog clock: two hand sprites rotated around their
// pivot and composited over a clock face.
package clock

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const (
	// PivotBias is how far above the sprite's bottom edge the pivot sits.
	PivotBias = 5
	// canvasScale sizes the scratch canvas relative to the sprite's largest side.
	canvasScale = 3
)

// Angles returns the hand rotations in degrees for h:m. Negative values turn
// the hand clockwise from the sprite's own orientation (12 o'clock).
func Angles(hour, minute int) (hourDeg, minuteDeg float64) {
	hourDeg = -(float64(hour%12)*30 + float64(minute)*0.5)
	minuteDeg = -float64(minute) * 6
	return hourDeg, minuteDeg
}

// ParseHHMM parses a 24h "HH:MM" string.
func ParseHHMM(s string) (hour, minute int, err error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("clock: %q is not HH:MM", s)
	}
	hour, err = strconv.Atoi(hs)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("clock: bad hour in %q", s)
	}
	minute, err = strconv.Atoi(ms)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock: bad minute in %q", s)
	}
	return hour, minute, nil
}

// Render returns a copy of face with both hands set to hhmm. The inputs are
// not modified.
func Render(face, hourHand, minuteHand image.Image, hhmm string) (*image.RGBA, error) {
	h, m, err := ParseHHMM(hhmm)
	if err != nil {
		return nil, err
	}
	hourDeg, minuteDeg := Angles(h, m)

	fb := face.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, fb.Dx(), fb.Dy()))
	draw.Draw(out, out.Bounds(), face, fb.Min, draw.Src)

	center := image.Pt(fb.Dx()/2, fb.Dy()/2)
	for _, hand := range []struct {
		img   image.Image
		angle float64
	}{
		{hourHand, hourDeg},
		{minuteHand, minuteDeg},
	} {
		if hand.img == nil {
			continue
		}
		rot := rotateHand(hand.img, hand.angle)
		half := rot.Bounds().Dx() / 2
		dst := image.Rect(center.X-half, center.Y-half, center.X-half+rot.Bounds().Dx(), center.Y-half+rot.Bounds().Dy())
		draw.Draw(out, dst, rot, image.Point{}, draw.Over)
	}
	return out, nil
}

// rotateHand places the sprite on a transparent square canvas with its pivot
// at the canvas center and turns the canvas by deg (counter-clockwise when
// positive) around that center.
func rotateHand(sprite image.Image, deg float64) *image.RGBA {
	sb := sprite.Bounds()
	w, h := sb.Dx(), sb.Dy()
	size := canvasScale * max(w, h)

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	x := size/2 - w/2
	y := size/2 - (h - PivotBias)
	draw.Draw(canvas, image.Rect(x, y, x+w, y+h), sprite, sb.Min, draw.Src)

	if deg == 0 {
		return canvas
	}

	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	c := float64(size) / 2
	// Source to destination: rotation about (c, c) in y-down image space.
	m := f64.Aff3{
		cos, sin, c - cos*c - sin*c,
		-sin, cos, c + sin*c - cos*c,
	}
	out := image.NewRGBA(canvas.Bounds())
	draw.CatmullRom.Transform(out, m, canvas, canvas.Bounds(), draw.Src, nil)
	return out
}
