package editor

// MapPointerToNative converts a pointer position in viewport coordinates into the
// image's native pixel space.
//
// box is the surface's bounding rectangle (nil while the surface is not mounted),
// displayed is its rendered CSS size and native the decoded image size. Until all
// three are known the result is the origin; callers must tolerate that during the
// short window before layout settles.
//
// The x and y scale factors are independent, so a stretched image maps correctly.
func MapPointerToNative(pointer Point, box *Box, displayed, native Size) Point {
	if box == nil || displayed.IsEmpty() || native.IsEmpty() {
		return Point{}
	}

	sx, sy := Scale(displayed, native)
	return Point{
		X: (pointer.X - box.Left) * sx,
		Y: (pointer.Y - box.Top) * sy,
	}
}

// Scale returns the (x, y) factors that convert display pixels to native pixels.
// Both are zero when either size is unknown.
func Scale(displayed, native Size) (float64, float64) {
	if displayed.IsEmpty() || native.IsEmpty() {
		return 0, 0
	}
	return native.Width / displayed.Width, native.Height / displayed.Height
}
