// CLAUDE:SUMMARY Converts between client-pixel coordinates and page-relative percent coordinates for annotation geometry.
package geom

import (
	"errors"
	"fmt"
)

// ErrDegenerateRect is returned when a page rect has zero or negative
// width or height and cannot serve as a coordinate basis.
var ErrDegenerateRect = errors.New("geom: degenerate page rect")

// Point is a position in client pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned box in client pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Percent is a position expressed as percentages of a page rect,
// nominally in [0,100] on both axes.
type Percent struct {
	X float64 `json:"xPercent"`
	Y float64 `json:"yPercent"`
}

// PercentRect is a box expressed as percentages of a page rect.
type PercentRect struct {
	X float64 `json:"xPercent"`
	Y float64 `json:"yPercent"`
	W float64 `json:"widthPercent"`
	H float64 `json:"heightPercent"`
}

// ToPercent converts a client point into percent coordinates relative
// to the given page rect.
func ToPercent(p Point, page Rect) (Percent, error) {
	if page.W <= 0 || page.H <= 0 {
		return Percent{}, fmt.Errorf("geom: to percent: %w", ErrDegenerateRect)
	}
	return Percent{
		X: (p.X - page.X) / page.W * 100,
		Y: (p.Y - page.Y) / page.H * 100,
	}, nil
}

// ToClient converts percent coordinates back into client pixels
// relative to the given page rect.
func ToClient(p Percent, page Rect) (Point, error) {
	if page.W <= 0 || page.H <= 0 {
		return Point{}, fmt.Errorf("geom: to client: %w", ErrDegenerateRect)
	}
	return Point{
		X: page.X + p.X/100*page.W,
		Y: page.Y + p.Y/100*page.H,
	}, nil
}

// RectToPercent converts a client rect into a percent rect relative to
// the given page rect.
func RectToPercent(r Rect, page Rect) (PercentRect, error) {
	if page.W <= 0 || page.H <= 0 {
		return PercentRect{}, fmt.Errorf("geom: rect to percent: %w", ErrDegenerateRect)
	}
	return PercentRect{
		X: (r.X - page.X) / page.W * 100,
		Y: (r.Y - page.Y) / page.H * 100,
		W: r.W / page.W * 100,
		H: r.H / page.H * 100,
	}, nil
}

// RectToClient converts a percent rect back into client pixels.
func RectToClient(r PercentRect, page Rect) (Rect, error) {
	if page.W <= 0 || page.H <= 0 {
		return Rect{}, fmt.Errorf("geom: rect to client: %w", ErrDegenerateRect)
	}
	return Rect{
		X: page.X + r.X/100*page.W,
		Y: page.Y + r.Y/100*page.H,
		W: r.W / 100 * page.W,
		H: r.H / 100 * page.H,
	}, nil
}

// Clamp limits percent coordinates to [0,100] on both axes. Stored
// records may carry slightly out-of-range values from pointer capture
// at page edges; clamping happens at render and export boundaries.
func Clamp(p Percent) Percent {
	return Percent{X: clamp01(p.X), Y: clamp01(p.Y)}
}

// ClampRect limits a percent rect so its origin stays in [0,100] and
// its extent never reaches past 100.
func ClampRect(r PercentRect) PercentRect {
	r.X = clamp01(r.X)
	r.Y = clamp01(r.Y)
	if r.W < 0 {
		r.W = 0
	}
	if r.H < 0 {
		r.H = 0
	}
	if r.X+r.W > 100 {
		r.W = 100 - r.X
	}
	if r.Y+r.H > 100 {
		r.H = 100 - r.Y
	}
	return r
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// SizeToPercent converts a pixel size (font size, stroke width) into a
// percentage of the page width, the unit annotation records store so
// sizes track zoom.
func SizeToPercent(px, pageWidth float64) (float64, error) {
	if pageWidth <= 0 {
		return 0, fmt.Errorf("geom: size to percent: %w", ErrDegenerateRect)
	}
	return px / pageWidth * 100, nil
}

// SizeFromPercent converts a stored page-width percentage back into
// pixels for the current page width.
func SizeFromPercent(pct, pageWidth float64) float64 {
	return pct / 100 * pageWidth
}
