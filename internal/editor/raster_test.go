package editor

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestRasterize_RepeatableAndClean(t *testing.T) {
	surface := Size{Width: 120, Height: 90}
	regions := []Region{{X: 10, Y: 10, Width: 40, Height: 30}}
	cmds := CompileOverlay(surface, regions, &Region{X: 60, Y: 40, Width: 30, Height: 30}, DefaultStyle())

	a := Rasterize(cmds, surface)
	b := Rasterize(cmds, surface)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatalf("two rasterizations of the same buffer differ")
	}

	// After the drag ends the live rectangle must vanish entirely.
	committed := Rasterize(CompileOverlay(surface, regions, nil, DefaultStyle()), surface)
	if got := committed.NRGBAAt(75, 40); got.A != 0 {
		t.Fatalf("pixel on the old live rectangle edge is still painted: %+v", got)
	}
}

func TestRasterize_StrokesRegionEdges(t *testing.T) {
	surface := Size{Width: 100, Height: 100}
	style := DefaultStyle()
	style.RegionFill = ""
	cmds := CompileOverlay(surface, []Region{{X: 20, Y: 60, Width: 40, Height: 30}}, nil, style)
	img := Rasterize(cmds, surface)

	want := color.NRGBA{R: 0xff, G: 0x3b, B: 0x30, A: 0xff}
	if got := img.NRGBAAt(59, 75); got != want {
		t.Fatalf("right edge pixel = %+v, want %+v", got, want)
	}
	if got := img.NRGBAAt(40, 75); got.A != 0 {
		t.Fatalf("interior should be untouched without a fill, got %+v", got)
	}
}

func TestRasterize_LiveRectIsDashed(t *testing.T) {
	surface := Size{Width: 100, Height: 100}
	style := DefaultStyle()
	style.LiveFill = ""
	cmds := CompileOverlay(surface, nil, &Region{X: 10, Y: 10, Width: 60, Height: 40}, style)
	img := Rasterize(cmds, surface)

	// The 6-on/4-off pattern starts at the top-left corner and runs right.
	if got := img.NRGBAAt(13, 10); got.A == 0 {
		t.Fatalf("first dash should be painted, got %+v", got)
	}
	if got := img.NRGBAAt(18, 10); got.A != 0 {
		t.Fatalf("first gap should be empty, got %+v", got)
	}
}

func TestComposite_LeavesBaseUntouched(t *testing.T) {
	base := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	gray := color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	for i := 0; i < len(base.Pix); i += 4 {
		copy(base.Pix[i:i+4], []uint8{gray.R, gray.G, gray.B, gray.A})
	}
	orig := append([]uint8(nil), base.Pix...)

	cmds := CompileOverlay(Size{64, 48}, []Region{{X: 4, Y: 4, Width: 20, Height: 20}}, nil, DefaultStyle())
	out := Composite(base, cmds)

	if !bytes.Equal(base.Pix, orig) {
		t.Fatalf("Composite modified its input")
	}
	if got := out.NRGBAAt(60, 44); got != gray {
		t.Fatalf("pixel outside every region should keep the photo, got %+v", got)
	}
	if got := out.NRGBAAt(4, 20); got == gray {
		t.Fatalf("region border was not drawn over the photo")
	}
}
