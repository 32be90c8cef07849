// Package prompt turns annotated regions into the text sent alongside the image.
package prompt

import (
	"fmt"
	"strings"

	"github.com/retouch/retouch/internal/editor"
)

// DefaultInstruction is used when the user leaves the instruction empty.
const DefaultInstruction = "Remove the unwanted objects, blemishes or damage inside the marked regions " +
	"and fill them in so they blend naturally with the surrounding image. " +
	"Leave everything outside the regions unchanged and return the full edited image."

// Describe lists regions one per line using their 1-based order and rounded
// native pixel coordinates.
func Describe(regions []editor.Region) string {
	var b strings.Builder
	for i, r := range regions {
		x, y, w, h := r.Rounded()
		fmt.Fprintf(&b, "Region %d: x=%d, y=%d, width=%d, height=%d\n", i+1, x, y, w, h)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Build combines the instruction with the region list and the image size the
// coordinates refer to.
func Build(instruction string, native editor.Size, regions []editor.Region) string {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = DefaultInstruction
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n")
	if len(regions) == 0 {
		b.WriteString("No regions were marked; apply the instruction to the whole image.")
		return b.String()
	}
	fmt.Fprintf(&b, "Coordinates are in pixels of the %dx%d source image, measured from the top-left corner.\n",
		int(native.Width), int(native.Height))
	b.WriteString(Describe(regions))
	return b.String()
}
