// Package session is the page-side owner of one repair: it keeps the document
// the user is building and feeds its regions back into the overlay editor.
package session

import (
	"fmt"
	"log/slog"

	"github.com/retouch/retouch/internal/document"
	"github.com/retouch/retouch/internal/editor"
	"github.com/retouch/retouch/internal/prompt"
)

type Options struct {
	Editor editor.Options
	// OnCommit is called after a drawn region has been appended to the document.
	OnCommit func(editor.Region)
	// OnChange receives the document after every change.
	OnChange func(*document.InDocument)
}

// Session is not safe for concurrent use; like the editor it lives on the UI thread.
type Session struct {
	doc      *document.InDocument
	ed       *editor.Editor
	onCommit func(editor.Region)
	onChange func(*document.InDocument)
}

func New(id string, opts Options) *Session {
	s := &Session{
		doc:      document.NewEmptyDocument(id),
		onCommit: opts.OnCommit,
		onChange: opts.OnChange,
	}
	s.ed = editor.New(opts.Editor)
	s.ed.SetOnCommit(s.commit)
	return s
}

// Editor returns the overlay editor for pointer events and rendering.
func (s *Session) Editor() *editor.Editor { return s.ed }

// Document returns the current document. Documents are never mutated, so the
// value stays valid after later changes.
func (s *Session) Document() *document.InDocument { return s.doc }

// LoadImage switches to a new image and drops every region of the old one.
func (s *Session) LoadImage(img document.ImageInfo) {
	s.doc = s.doc.WithImage(img)
	s.ed.SetImage(img.Native())
	s.sync()
}

func (s *Session) commit(r editor.Region) {
	doc, err := s.doc.WithRegion(r)
	if err != nil {
		slog.Warn("region rejected", "error", err, "region", r)
		return
	}
	s.doc = doc
	s.sync()
	if s.onCommit != nil {
		s.onCommit(r)
	}
}

// Undo removes the most recent region. It reports false when there was none.
func (s *Session) Undo() bool {
	if len(s.doc.Regions) == 0 {
		return false
	}
	s.doc = s.doc.UndoLast()
	s.sync()
	return true
}

// Clear removes every region. It reports false when there were none.
func (s *Session) Clear() bool {
	if len(s.doc.Regions) == 0 {
		return false
	}
	s.doc = s.doc.ClearRegions()
	s.sync()
	return true
}

// ReplaceRegions adopts a region list from elsewhere, such as another tab of
// the same session. Nothing changes unless every region fits the image.
func (s *Session) ReplaceRegions(regions []editor.Region) error {
	doc := s.doc.ClearRegions()
	for i, r := range regions {
		next, err := doc.WithRegion(r)
		if err != nil {
			return fmt.Errorf("region %d: %w", i+1, err)
		}
		doc = next
	}
	s.doc = doc
	s.sync()
	return nil
}

// SetInstruction stores the free-text instruction.
func (s *Session) SetInstruction(text string) {
	s.doc = s.doc.WithInstruction(text)
	s.changed()
}

// HitTest returns the 1-based number of the topmost region under the pointer,
// or 0 when the pointer is over none.
func (s *Session) HitTest(pointer editor.Point, layout editor.Layout) int {
	p := editor.MapPointerToNative(pointer, layout.Box, layout.Displayed, s.ed.Native())
	for i := len(s.doc.Regions) - 1; i >= 0; i-- {
		if s.doc.Regions[i].Contains(p.X, p.Y) {
			return i + 1
		}
	}
	return 0
}

// ImageContext describes the image as currently shown at the displayed size.
func (s *Session) ImageContext(displayed editor.Size) editor.ImageContext {
	return editor.ImageContext{
		Displayed: displayed,
		Native:    s.ed.Native(),
		Regions:   s.ed.Regions(),
	}
}

// Describe lists the regions the way they are sent to the model.
func (s *Session) Describe() string {
	return prompt.Describe(s.doc.Regions)
}

// Ready reports whether the document can be submitted for repair.
func (s *Session) Ready() error {
	return s.doc.Validate()
}

// sync hands the document's regions to the editor, which redraws.
func (s *Session) sync() {
	s.ed.SetRegions(s.doc.Regions)
	s.changed()
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange(s.doc)
	}
}
