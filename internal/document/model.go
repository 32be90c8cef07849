package document

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/retouch/retouch/internal/editor"
)

var (
	ErrNoImage       = errors.New("no image loaded")
	ErrInvalidRegion = errors.New("invalid region")
	ErrNoRegions     = errors.New("no regions")
)

// InDocument is the application-owned state of one repair session: the image,
// the ordered regions drawn on it and the user's instruction. The editor only
// ever reads Regions; every change goes through the methods below, each of which
// returns a new value and leaves the receiver untouched.
type InDocument struct {
	ID          string          `json:"id"`
	Version     int             `json:"version"`
	Image       *ImageInfo      `json:"image"`
	Regions     []editor.Region `json:"regions"`
	Instruction string          `json:"instruction"`
}

type ImageInfo struct {
	AssetID string `json:"assetId"`
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	MIME    string `json:"mime"`
}

// Native returns the decoded image size in pixels.
func (i ImageInfo) Native() editor.Size {
	return editor.Size{Width: float64(i.Width), Height: float64(i.Height)}
}

// NewEmptyDocument creates a session document with no image.
func NewEmptyDocument(id string) *InDocument {
	return &InDocument{
		ID:      id,
		Version: 1,
		Regions: []editor.Region{},
	}
}

func (d *InDocument) clone() *InDocument {
	out := *d
	out.Regions = slices.Clone(d.Regions)
	if out.Regions == nil {
		out.Regions = []editor.Region{}
	}
	if d.Image != nil {
		img := *d.Image
		out.Image = &img
	}
	out.Version = d.Version + 1
	return &out
}

// WithImage loads a new image. Regions drawn on the previous image are dropped
// since their coordinates belong to a different pixel space.
func (d *InDocument) WithImage(img ImageInfo) *InDocument {
	out := d.clone()
	out.Image = &img
	out.Regions = []editor.Region{}
	return out
}

// WithRegion appends a committed region.
func (d *InDocument) WithRegion(r editor.Region) (*InDocument, error) {
	if err := d.checkRegion(r); err != nil {
		return nil, err
	}
	out := d.clone()
	out.Regions = append(out.Regions, r)
	return out, nil
}

// UndoLast removes the most recently committed region. With no regions it
// returns an unchanged copy.
func (d *InDocument) UndoLast() *InDocument {
	out := d.clone()
	if n := len(out.Regions); n > 0 {
		out.Regions = out.Regions[:n-1]
	}
	return out
}

// ClearRegions removes every region.
func (d *InDocument) ClearRegions() *InDocument {
	out := d.clone()
	out.Regions = []editor.Region{}
	return out
}

// WithInstruction sets the free-text instruction.
func (d *InDocument) WithInstruction(s string) *InDocument {
	out := d.clone()
	out.Instruction = s
	return out
}

// Validate checks that the document is ready to be sent for repair. A document
// without regions is only ready when it carries an instruction.
func (d *InDocument) Validate() error {
	if d.Image == nil {
		return ErrNoImage
	}
	if len(d.Regions) == 0 && strings.TrimSpace(d.Instruction) == "" {
		return ErrNoRegions
	}
	for i, r := range d.Regions {
		if err := d.checkRegion(r); err != nil {
			return fmt.Errorf("region %d: %w", i+1, err)
		}
	}
	return nil
}

func (d *InDocument) checkRegion(r editor.Region) error {
	return CheckRegion(r, d.Image)
}

// CheckRegion verifies that r has a positive area and starts inside img.
// A nil img only checks the area.
func CheckRegion(r editor.Region, img *ImageInfo) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: non-positive size %vx%v", ErrInvalidRegion, r.Width, r.Height)
	}
	if img == nil {
		return nil
	}
	if r.X < 0 || r.Y < 0 || r.X >= float64(img.Width) || r.Y >= float64(img.Height) {
		return fmt.Errorf("%w: origin (%v, %v) outside %dx%d image", ErrInvalidRegion, r.X, r.Y, img.Width, img.Height)
	}
	return nil
}
