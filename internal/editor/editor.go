package editor

import (
	"log/slog"
	"slices"
)

// DefaultMinRegionSize is the drag size, in native pixels, that both dimensions
// must exceed before a drag becomes a region. Anything smaller is treated as a click.
const DefaultMinRegionSize = 5

// State is the editor's interaction state.
type State int

const (
	StateIdle State = iota
	StateDragging
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// DragState is the editor-owned, in-progress drag. It only lives between a
// pointer-down and the matching up or leave.
type DragState struct {
	Active bool
	Anchor Point
	Live   *Region
}

// Layout describes the interactive surface as laid out at the time of an event.
// Box is nil while the surface is not mounted.
type Layout struct {
	Box       *Box
	Displayed Size
}

// LayoutFromBox builds a Layout whose displayed size is the box's own size,
// which is the common case of a canvas stretched over an <img>.
func LayoutFromBox(b Box) Layout {
	return Layout{Box: &b, Displayed: Size{Width: b.Width, Height: b.Height}}
}

// Options configures an Editor.
type Options struct {
	// MinRegionSize is the exclusive lower bound on committed width and height.
	// Zero means DefaultMinRegionSize.
	MinRegionSize float64
	Style         Style
	// OnCommit is called exactly once for every drag that produces a region.
	OnCommit func(Region)
	// OnRedraw receives the full command buffer every time the overlay is redrawn.
	OnRedraw func([]DrawCommand)
}

// Editor is the region annotation state machine and overlay renderer.
//
// It is a controlled component: committed regions are owned by the caller and
// handed in through SetRegions; the editor only reports new ones through
// OnCommit. The only state it owns is the drag in progress. An Editor is not
// safe for concurrent use; all calls are expected on the UI thread.
type Editor struct {
	opts    Options
	native  Size
	regions []Region
	drag    DragState
	frame   []DrawCommand
	redraws int
}

// New creates an editor with no image loaded.
func New(opts Options) *Editor {
	if opts.MinRegionSize <= 0 {
		opts.MinRegionSize = DefaultMinRegionSize
	}
	if opts.Style.RegionStroke == "" {
		opts.Style = DefaultStyle()
	}
	e := &Editor{opts: opts}
	e.redraw()
	return e
}

// --- Owner inputs ---

// SetImage (re)mounts the overlay at the image's native resolution. Any drag in
// progress belongs to the previous image and is dropped.
func (e *Editor) SetImage(native Size) {
	e.native = native
	e.drag = DragState{}
	e.redraw()
}

// SetRegions replaces the committed region sequence. The editor keeps its own
// copy and never writes to it.
func (e *Editor) SetRegions(regions []Region) {
	e.regions = slices.Clone(regions)
	e.redraw()
}

// SetOnCommit replaces the commit callback.
func (e *Editor) SetOnCommit(fn func(Region)) {
	e.opts.OnCommit = fn
}

// SetOnRedraw replaces the redraw callback.
func (e *Editor) SetOnRedraw(fn func([]DrawCommand)) {
	e.opts.OnRedraw = fn
}

// --- Pointer events ---
// Each returns true when the event changed the overlay and a redraw happened.

// PointerDown starts a drag at the mapped pointer position.
func (e *Editor) PointerDown(pointer Point, layout Layout) bool {
	if e.drag.Active {
		return false
	}
	anchor := e.mapPointer(pointer, layout)
	e.drag = DragState{
		Active: true,
		Anchor: anchor,
		Live:   &Region{X: anchor.X, Y: anchor.Y},
	}
	e.redraw()
	return true
}

// PointerMove tracks the live rectangle while dragging.
func (e *Editor) PointerMove(pointer Point, layout Layout) bool {
	if !e.drag.Active {
		return false
	}
	live := Normalize(e.drag.Anchor, e.mapPointer(pointer, layout))
	e.drag.Live = &live
	e.redraw()
	return true
}

// PointerUp ends the drag. The rectangle between the anchor and the release point
// is committed when both sides exceed the minimum size, otherwise it is dropped.
func (e *Editor) PointerUp(pointer Point, layout Layout) bool {
	if !e.drag.Active {
		return false
	}
	final := Normalize(e.drag.Anchor, e.mapPointer(pointer, layout))
	e.drag = DragState{}

	if e.accepts(final) && e.opts.OnCommit != nil {
		e.opts.OnCommit(final)
	}
	e.redraw()
	return true
}

// PointerLeave aborts the drag without committing.
func (e *Editor) PointerLeave() bool {
	if !e.drag.Active {
		return false
	}
	e.drag = DragState{}
	e.redraw()
	return true
}

// --- Queries ---

// State returns the current interaction state.
func (e *Editor) State() State {
	if e.drag.Active {
		return StateDragging
	}
	return StateIdle
}

// Drag returns a copy of the drag in progress.
func (e *Editor) Drag() DragState {
	d := e.drag
	if d.Live != nil {
		live := *d.Live
		d.Live = &live
	}
	return d
}

// Regions returns a copy of the committed regions last handed to SetRegions.
func (e *Editor) Regions() []Region {
	return slices.Clone(e.regions)
}

// Native returns the overlay surface size.
func (e *Editor) Native() Size {
	return e.native
}

// Render returns the draw commands for the current state. It is the same buffer
// the last redraw produced.
func (e *Editor) Render() []DrawCommand {
	return slices.Clone(e.frame)
}

// RenderJSON returns Render serialized for the frontend.
func (e *Editor) RenderJSON() string {
	result, err := DrawCommandsToJSON(e.frame)
	if err != nil {
		slog.Error("encode overlay", "error", err, "commands", len(e.frame))
	}
	return result
}

// Redraws counts how many full redraws have happened since New.
func (e *Editor) Redraws() int {
	return e.redraws
}

func (e *Editor) accepts(r Region) bool {
	return r.Width > e.opts.MinRegionSize && r.Height > e.opts.MinRegionSize
}

func (e *Editor) mapPointer(pointer Point, layout Layout) Point {
	return MapPointerToNative(pointer, layout.Box, layout.Displayed, e.native)
}

// redraw rebuilds the whole overlay from current state. There is no incremental
// path, so the overlay can never hold stale rectangles.
func (e *Editor) redraw() {
	var live *Region
	if e.drag.Active {
		live = e.drag.Live
	}
	e.frame = CompileOverlay(e.native, e.regions, live, e.opts.Style)
	e.redraws++
	if e.opts.OnRedraw != nil {
		e.opts.OnRedraw(slices.Clone(e.frame))
	}
}
