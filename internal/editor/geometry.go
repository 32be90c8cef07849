package editor

import "math"

// Point is a position in either display or native space. Which one is implied
// by where it came from; MapPointerToNative is the only way to cross over.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsEmpty reports whether either dimension is zero or negative.
func (s Size) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Box is the on-screen bounding rectangle of the interactive surface, in
// viewport coordinates (the shape of a DOMRect).
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Region is an axis-aligned rectangle in native image pixels.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Normalize returns the rectangle spanned by a and b regardless of drag direction.
func Normalize(a, b Point) Region {
	return Region{
		X:      min(a.X, b.X),
		Y:      min(a.Y, b.Y),
		Width:  math.Abs(a.X - b.X),
		Height: math.Abs(a.Y - b.Y),
	}
}

// Contains checks if a point is inside the region.
func (r Region) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// IsEmpty checks if the region has zero or negative area.
func (r Region) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// ClampTo trims the region to the bounds of an image of the given size.
// The result may be empty if the region lies entirely outside.
func (r Region) ClampTo(s Size) Region {
	x0 := clamp(r.X, 0, s.Width)
	y0 := clamp(r.Y, 0, s.Height)
	x1 := clamp(r.X+r.Width, 0, s.Width)
	y1 := clamp(r.Y+r.Height, 0, s.Height)
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Rounded returns the region with every component rounded to the nearest pixel.
func (r Region) Rounded() (x, y, w, h int) {
	return int(math.Round(r.X)), int(math.Round(r.Y)), int(math.Round(r.Width)), int(math.Round(r.Height))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ImageContext is the caller-owned view of the image being annotated: how big
// it is shown, how big it really is and the regions committed on it.
type ImageContext struct {
	Displayed Size     `json:"displayed"`
	Native    Size     `json:"native"`
	Regions   []Region `json:"regions"`
}

