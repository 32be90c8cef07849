package editor

import (
	"encoding/json"
	"fmt"
	"math"
)

// Draw operations understood by the frontend canvas and by Rasterize.
const (
	OpClear = "clear"
	OpRect  = "rect"
	OpLabel = "label"
)

// DrawCommand represents a single drawing operation on the overlay surface.
// All coordinates are native image pixels; the frontend sizes its canvas backing
// store to the native resolution and lets CSS scale it.
type DrawCommand struct {
	Op          string    `json:"op"`                    // "clear", "rect", "label"
	Region      int       `json:"region,omitempty"`      // 1-based ordinal, 0 for the live rectangle
	X           float64   `json:"x"`                     // Top-left x
	Y           float64   `json:"y"`                     // Top-left y
	Width       float64   `json:"width,omitempty"`       // Rect width, or surface width for "clear"
	Height      float64   `json:"height,omitempty"`      // Rect height, or surface height for "clear"
	Fill        string    `json:"fill,omitempty"`        // Fill color
	Stroke      string    `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64   `json:"strokeWidth,omitempty"` // Stroke width
	Dash        []float64 `json:"dash,omitempty"`        // Line dash pattern
	Text        string    `json:"text,omitempty"`        // Label text
	FontSize    float64   `json:"fontSize,omitempty"`    // Label font size in native pixels
}

// Style controls how committed and in-progress regions look.
type Style struct {
	RegionStroke     string
	RegionFill       string
	LabelColor       string
	LabelBackground  string
	LiveStroke       string
	LiveFill         string
	LiveDash         []float64
	MinStrokeWidth   float64
	StrokeWidthRatio float64 // stroke width as a fraction of the shorter image side
}

// DefaultStyle returns the overlay style used by the web client.
func DefaultStyle() Style {
	return Style{
		RegionStroke:     "#ff3b30",
		RegionFill:       "#ff3b3033",
		LabelColor:       "#ffffff",
		LabelBackground:  "#ff3b30",
		LiveStroke:       "#0a84ff",
		LiveFill:         "#0a84ff22",
		LiveDash:         []float64{6, 4},
		MinStrokeWidth:   2,
		StrokeWidthRatio: 0.004,
	}
}

// CompileOverlay generates the full draw command buffer for the overlay.
// The buffer always starts by clearing the whole surface, then draws committed
// regions in sequence order (each labelled with its 1-based position) and finally
// the live rectangle on top when it has a positive area.
func CompileOverlay(surface Size, regions []Region, live *Region, style Style) []DrawCommand {
	commands := make([]DrawCommand, 0, 1+2*len(regions)+1)
	commands = append(commands, DrawCommand{
		Op:     OpClear,
		Width:  surface.Width,
		Height: surface.Height,
	})

	strokeWidth := strokeWidthFor(surface, style)
	fontSize := math.Max(12, strokeWidth*6)

	for i, r := range regions {
		ordinal := i + 1
		commands = append(commands, DrawCommand{
			Op:          OpRect,
			Region:      ordinal,
			X:           r.X,
			Y:           r.Y,
			Width:       r.Width,
			Height:      r.Height,
			Fill:        style.RegionFill,
			Stroke:      style.RegionStroke,
			StrokeWidth: strokeWidth,
		})
		commands = append(commands, DrawCommand{
			Op:       OpLabel,
			Region:   ordinal,
			X:        r.X,
			Y:        r.Y,
			Fill:     style.LabelBackground,
			Stroke:   style.LabelColor,
			Text:     fmt.Sprintf("#%d", ordinal),
			FontSize: fontSize,
		})
	}

	if live != nil && !live.IsEmpty() {
		commands = append(commands, DrawCommand{
			Op:          OpRect,
			X:           live.X,
			Y:           live.Y,
			Width:       live.Width,
			Height:      live.Height,
			Fill:        style.LiveFill,
			Stroke:      style.LiveStroke,
			StrokeWidth: strokeWidth,
			Dash:        style.LiveDash,
		})
	}

	return commands
}

func strokeWidthFor(surface Size, style Style) float64 {
	w := style.StrokeWidthRatio * math.Min(surface.Width, surface.Height)
	return math.Max(style.MinStrokeWidth, math.Round(w))
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
