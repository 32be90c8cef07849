package genai

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/retouch/retouch/internal/editor"
)

// Prepared is an image ready to be sent to a model.
type Prepared struct {
	Data []byte
	MIME string
	// Size is the size of the encoded image; Scale is Size divided by the
	// original size (1 when no downscale happened).
	Size  editor.Size
	Scale float64
}

// PrepareImage downsizes img so its longer side is at most maxDim and encodes
// it as PNG. maxDim <= 0 disables the resize.
func PrepareImage(img image.Image, maxDim int) (*Prepared, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image")
	}

	out := img
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			out = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
		} else {
			out = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	ob := out.Bounds()
	return &Prepared{
		Data:  buf.Bytes(),
		MIME:  "image/png",
		Size:  editor.Size{Width: float64(ob.Dx()), Height: float64(ob.Dy())},
		Scale: float64(ob.Dx()) / float64(w),
	}, nil
}

// ScaleRegions converts native regions into the coordinate space of a
// prepared image.
func ScaleRegions(regions []editor.Region, scale float64) []editor.Region {
	out := make([]editor.Region, len(regions))
	for i, r := range regions {
		out[i] = editor.Region{X: r.X * scale, Y: r.Y * scale, Width: r.Width * scale, Height: r.Height * scale}
	}
	return out
}
