package editor

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Rasterize executes draw commands onto a transparent surface of the given size.
// It mirrors what the browser canvas does with the same buffer and is used for
// server-side previews and tests.
func Rasterize(commands []DrawCommand, surface Size) *image.NRGBA {
	w := int(math.Round(surface.Width))
	h := int(math.Round(surface.Height))
	if w <= 0 || h <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	dc := gg.NewContext(w, h)
	execute(dc, commands)
	return imaging.Clone(dc.Image())
}

// Composite draws the overlay on top of a copy of base. The overlay is rasterized
// on its own layer first, so "clear" never wipes the photo. base is not modified.
func Composite(base image.Image, commands []DrawCommand) *image.NRGBA {
	b := base.Bounds()
	layer := Rasterize(commands, Size{Width: float64(b.Dx()), Height: float64(b.Dy())})
	dc := gg.NewContextForImage(base)
	dc.DrawImage(layer, 0, 0)
	return imaging.Clone(dc.Image())
}

func execute(dc *gg.Context, commands []DrawCommand) {
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetLineCap(gg.LineCapButt) // canvas default
	for _, cmd := range commands {
		switch cmd.Op {
		case OpClear:
			dc.SetRGBA(0, 0, 0, 0)
			dc.Clear()
		case OpRect:
			drawRect(dc, cmd)
		case OpLabel:
			drawLabel(dc, cmd)
		}
	}
}

func drawRect(dc *gg.Context, cmd DrawCommand) {
	if cmd.Fill != "" {
		dc.SetHexColor(cmd.Fill)
		dc.DrawRectangle(cmd.X, cmd.Y, cmd.Width, cmd.Height)
		dc.Fill()
	}
	if cmd.Stroke == "" {
		return
	}
	dc.SetHexColor(cmd.Stroke)
	dc.SetLineWidth(max(1, cmd.StrokeWidth))
	dc.SetDash(cmd.Dash...)
	dc.DrawRectangle(cmd.X, cmd.Y, cmd.Width, cmd.Height)
	dc.Stroke()
	dc.SetDash()
}

// drawLabel paints the text on a filled tag anchored at the region's top-left.
// basicfont has a single size, so FontSize only affects the tag padding.
func drawLabel(dc *gg.Context, cmd DrawCommand) {
	face := basicfont.Face7x13
	textW, _ := dc.MeasureString(cmd.Text)
	pad := math.Max(2, math.Floor(cmd.FontSize/6))

	if cmd.Fill != "" {
		dc.SetHexColor(cmd.Fill)
		dc.DrawRectangle(cmd.X, cmd.Y, math.Ceil(textW)+2*pad, float64(face.Height)+2*pad)
		dc.Fill()
	}
	if cmd.Stroke != "" {
		dc.SetHexColor(cmd.Stroke)
	} else {
		dc.SetRGB(1, 1, 1)
	}
	dc.DrawString(cmd.Text, cmd.X+pad, cmd.Y+pad+float64(face.Ascent))
}
