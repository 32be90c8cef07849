package editor

import "testing"

func TestMapPointerToNative_Scale(t *testing.T) {
	cases := []struct {
		name      string
		native    Size
		displayed Size
		local     Point
	}{
		{"downscaled 2x", Size{800, 600}, Size{400, 300}, Point{100, 50}},
		{"upscaled", Size{320, 240}, Size{1280, 960}, Point{640, 480}},
		{"non-uniform", Size{1000, 500}, Size{300, 400}, Point{150, 100}},
		{"fractional", Size{4032, 3024}, Size{733.5, 550.125}, Point{12.25, 99.75}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			box := &Box{Left: 37.5, Top: 212, Width: tc.displayed.Width, Height: tc.displayed.Height}
			pointer := Point{X: tc.local.X + box.Left, Y: tc.local.Y + box.Top}

			got := MapPointerToNative(pointer, box, tc.displayed, tc.native)
			wantX := tc.local.X * tc.native.Width / tc.displayed.Width
			wantY := tc.local.Y * tc.native.Height / tc.displayed.Height
			if !approx(got.X, wantX) || !approx(got.Y, wantY) {
				t.Fatalf("got (%v, %v), want (%v, %v)", got.X, got.Y, wantX, wantY)
			}
		})
	}
}

func TestMapPointerToNative_EndToEndPoints(t *testing.T) {
	box := &Box{Width: 400, Height: 300}
	native := Size{800, 600}
	displayed := Size{400, 300}

	if p := MapPointerToNative(Point{100, 50}, box, displayed, native); p != (Point{200, 100}) {
		t.Fatalf("down point mapped to %+v", p)
	}
	if p := MapPointerToNative(Point{150, 100}, box, displayed, native); p != (Point{300, 200}) {
		t.Fatalf("up point mapped to %+v", p)
	}
}

func TestMapPointerToNative_NotMeasured(t *testing.T) {
	p := Point{X: 120, Y: 80}
	box := &Box{Width: 400, Height: 300}

	cases := []struct {
		name      string
		box       *Box
		displayed Size
		native    Size
	}{
		{"no bounding box", nil, Size{400, 300}, Size{800, 600}},
		{"no natural size", box, Size{400, 300}, Size{}},
		{"zero displayed width", box, Size{0, 300}, Size{800, 600}},
		{"zero displayed height", box, Size{400, 0}, Size{800, 600}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MapPointerToNative(p, tc.box, tc.displayed, tc.native); got != (Point{}) {
				t.Fatalf("expected origin, got %+v", got)
			}
		})
	}
}

func TestMapPointerToNative_Deterministic(t *testing.T) {
	box := &Box{Left: 3.3, Top: 7.7, Width: 333, Height: 222}
	first := MapPointerToNative(Point{101.1, 202.2}, box, Size{333, 222}, Size{4000, 3000})
	for i := 0; i < 100; i++ {
		if got := MapPointerToNative(Point{101.1, 202.2}, box, Size{333, 222}, Size{4000, 3000}); got != first {
			t.Fatalf("call %d returned %+v, first was %+v", i, got, first)
		}
	}
}

func TestScale(t *testing.T) {
	sx, sy := Scale(Size{400, 300}, Size{800, 900})
	if sx != 2 || sy != 3 {
		t.Fatalf("got (%v, %v), want (2, 3)", sx, sy)
	}
	if sx, sy := Scale(Size{}, Size{800, 600}); sx != 0 || sy != 0 {
		t.Fatalf("unknown display size should give zero scale, got (%v, %v)", sx, sy)
	}
}

func TestNormalize(t *testing.T) {
	a, b := Point{40, 10}, Point{10, 50}
	want := Region{X: 10, Y: 10, Width: 30, Height: 40}
	if got := Normalize(a, b); got != want {
		t.Fatalf("Normalize(a, b) = %+v, want %+v", got, want)
	}
	if got := Normalize(b, a); got != want {
		t.Fatalf("Normalize(b, a) = %+v, want %+v", got, want)
	}
	if got := Normalize(a, a); !got.IsEmpty() {
		t.Fatalf("same point should give an empty region, got %+v", got)
	}
}

func TestRegion_ClampTo(t *testing.T) {
	img := Size{100, 80}
	got := Region{X: -10, Y: 70, Width: 50, Height: 30}.ClampTo(img)
	want := Region{X: 0, Y: 70, Width: 40, Height: 10}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if r := (Region{X: 200, Y: 200, Width: 5, Height: 5}).ClampTo(img); !r.IsEmpty() {
		t.Fatalf("region outside the image should clamp to empty, got %+v", r)
	}
}
