package editor

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCompileOverlay_OrderAndLabels(t *testing.T) {
	// Deliberately placed right-to-left and bottom-to-top.
	regions := []Region{
		{X: 600, Y: 500, Width: 50, Height: 50},
		{X: 300, Y: 200, Width: 50, Height: 50},
		{X: 10, Y: 10, Width: 50, Height: 50},
	}
	cmds := CompileOverlay(Size{800, 600}, regions, nil, DefaultStyle())

	if cmds[0].Op != OpClear || cmds[0].Width != 800 || cmds[0].Height != 600 {
		t.Fatalf("first command should clear the native surface, got %+v", cmds[0])
	}

	var labels []string
	for _, c := range cmds {
		if c.Op == OpLabel {
			labels = append(labels, c.Text)
		}
	}
	if want := []string{"#1", "#2", "#3"}; !reflect.DeepEqual(labels, want) {
		t.Fatalf("labels %v, want %v", labels, want)
	}

	for i, c := range cmds[1:] {
		r := regions[i/2]
		if c.X != r.X || c.Y != r.Y {
			t.Fatalf("command %d at (%v,%v), want region %d at (%v,%v)", i+1, c.X, c.Y, i/2+1, r.X, r.Y)
		}
	}
}

func TestCompileOverlay_LiveRectOnTop(t *testing.T) {
	style := DefaultStyle()
	regions := []Region{{X: 10, Y: 10, Width: 100, Height: 100}}
	live := &Region{X: 50, Y: 50, Width: 30, Height: 20}

	cmds := CompileOverlay(Size{800, 600}, regions, live, style)
	last := cmds[len(cmds)-1]
	if last.Op != OpRect || last.Region != 0 {
		t.Fatalf("live rectangle should be drawn last, got %+v", last)
	}
	if last.Stroke == style.RegionStroke || len(last.Dash) == 0 {
		t.Fatalf("live rectangle should have a distinct dashed style, got %+v", last)
	}
	if countOps(cmds, OpRect) != 2 {
		t.Fatalf("committed region should still be drawn under the live one")
	}
}

func TestCompileOverlay_SkipsEmptyLiveRect(t *testing.T) {
	for _, live := range []*Region{
		{X: 5, Y: 5},
		{X: 5, Y: 5, Width: 10},
		{X: 5, Y: 5, Height: 10},
	} {
		cmds := CompileOverlay(Size{100, 100}, nil, live, DefaultStyle())
		if len(cmds) != 1 {
			t.Fatalf("zero-area live rect %+v should not be drawn, got %+v", live, cmds)
		}
	}
}

func TestCompileOverlay_Idempotent(t *testing.T) {
	regions := []Region{{X: 1, Y: 2, Width: 30, Height: 40}, {X: 100, Y: 100, Width: 10, Height: 10}}
	a := CompileOverlay(Size{640, 480}, regions, nil, DefaultStyle())
	b := CompileOverlay(Size{640, 480}, regions, nil, DefaultStyle())
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two renders of the same state differ:\n%+v\n%+v", a, b)
	}
}

func TestCompileOverlay_StrokeScalesWithImage(t *testing.T) {
	r := []Region{{X: 0, Y: 0, Width: 10, Height: 10}}
	small := CompileOverlay(Size{200, 200}, r, nil, DefaultStyle())[1]
	large := CompileOverlay(Size{4000, 3000}, r, nil, DefaultStyle())[1]
	if small.StrokeWidth != 2 {
		t.Fatalf("small images use the minimum stroke, got %v", small.StrokeWidth)
	}
	if large.StrokeWidth != 12 {
		t.Fatalf("expected 12px stroke on a 4000x3000 image, got %v", large.StrokeWidth)
	}
}

func TestEditor_RenderJSON(t *testing.T) {
	e := New(Options{})
	e.SetImage(Size{100, 100})
	e.SetRegions([]Region{{X: 10, Y: 10, Width: 20, Height: 20}})

	var cmds []DrawCommand
	if err := json.Unmarshal([]byte(e.RenderJSON()), &cmds); err != nil {
		t.Fatalf("render output is not valid JSON: %v", err)
	}
	if !reflect.DeepEqual(cmds, e.Render()) {
		t.Fatalf("JSON and Go render disagree")
	}
}
