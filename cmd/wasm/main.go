//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/retouch/retouch/internal/document"
	"github.com/retouch/retouch/internal/editor"
	"github.com/retouch/retouch/internal/session"
)

var (
	sess     *session.Session
	onCommit js.Value
	onChange js.Value
)

func main() {
	sess = session.New("local", session.Options{
		OnCommit: commit,
		OnChange: change,
	})

	// Create the editor API object
	retouchEditor := js.Global().Get("Object").New()

	// --- Commands (frontend → editor) ---
	retouchEditor.Set("setImage", js.FuncOf(setImage))
	retouchEditor.Set("setRegions", js.FuncOf(setRegions))
	retouchEditor.Set("setInstruction", js.FuncOf(setInstruction))
	retouchEditor.Set("undo", js.FuncOf(undo))
	retouchEditor.Set("clear", js.FuncOf(clearRegions))
	retouchEditor.Set("pointerDown", js.FuncOf(pointerDown))
	retouchEditor.Set("pointerMove", js.FuncOf(pointerMove))
	retouchEditor.Set("pointerUp", js.FuncOf(pointerUp))
	retouchEditor.Set("pointerLeave", js.FuncOf(pointerLeave))
	retouchEditor.Set("onCommit", js.FuncOf(setOnCommit))
	retouchEditor.Set("onChange", js.FuncOf(setOnChange))

	// --- Queries (frontend ← editor) ---
	retouchEditor.Set("render", js.FuncOf(render))
	retouchEditor.Set("hitTest", js.FuncOf(hitTest))
	retouchEditor.Set("isDragging", js.FuncOf(isDragging))
	retouchEditor.Set("describe", js.FuncOf(describe))
	retouchEditor.Set("getDocument", js.FuncOf(getDocument))
	retouchEditor.Set("getImageContext", js.FuncOf(getImageContext))
	retouchEditor.Set("validate", js.FuncOf(validate))

	// Register on global scope
	js.Global().Set("retouchEditor", retouchEditor)

	// Signal that WASM is ready
	js.Global().Set("retouchWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func commit(r editor.Region) {
	if onCommit.Type() == js.TypeFunction {
		onCommit.Invoke(toJSON(r))
	}
}

// change lets the page mirror the document, e.g. into a regions.sync message.
func change(doc *document.InDocument) {
	if onChange.Type() == js.TypeFunction {
		onChange.Invoke(toJSON(doc))
	}
}

func errorValue(err error) js.Value {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

// --- Command Handlers ---

// setImage(imageInfoJSON) loads the uploaded image described by the server.
func setImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing image JSON"})
	}
	var img document.ImageInfo
	if err := json.Unmarshal([]byte(args[0].String()), &img); err != nil {
		return errorValue(err)
	}
	sess.LoadImage(img)
	return js.ValueOf(sess.Editor().RenderJSON())
}

func setRegions(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing regions JSON"})
	}
	var regions []editor.Region
	if err := json.Unmarshal([]byte(args[0].String()), &regions); err != nil {
		return errorValue(err)
	}
	if err := sess.ReplaceRegions(regions); err != nil {
		return errorValue(err)
	}
	return js.ValueOf(sess.Editor().RenderJSON())
}

func setInstruction(this js.Value, args []js.Value) interface{} {
	text := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		text = args[0].String()
	}
	sess.SetInstruction(text)
	return nil
}

func undo(this js.Value, args []js.Value) interface{} {
	if !sess.Undo() {
		return nil
	}
	return js.ValueOf(sess.Editor().RenderJSON())
}

func clearRegions(this js.Value, args []js.Value) interface{} {
	if !sess.Clear() {
		return nil
	}
	return js.ValueOf(sess.Editor().RenderJSON())
}

func pointerDown(this js.Value, args []js.Value) interface{} {
	return pointerEvent(args, sess.Editor().PointerDown)
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	return pointerEvent(args, sess.Editor().PointerMove)
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	return pointerEvent(args, sess.Editor().PointerUp)
}

func pointerLeave(this js.Value, args []js.Value) interface{} {
	if !sess.Editor().PointerLeave() {
		return nil
	}
	return js.ValueOf(sess.Editor().RenderJSON())
}

func setOnCommit(this js.Value, args []js.Value) interface{} {
	onCommit = callbackArg(args)
	return nil
}

func setOnChange(this js.Value, args []js.Value) interface{} {
	onChange = callbackArg(args)
	return nil
}

func callbackArg(args []js.Value) js.Value {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return js.Undefined()
	}
	return args[0]
}

// readPointer reads (clientX, clientY, left, top, width, height). The box
// arguments are optional; without them the surface counts as unmounted.
func readPointer(args []js.Value) (editor.Point, editor.Layout, bool) {
	if len(args) < 2 {
		return editor.Point{}, editor.Layout{}, false
	}
	pointer := editor.Point{X: args[0].Float(), Y: args[1].Float()}

	var layout editor.Layout
	if len(args) >= 6 && !args[2].IsUndefined() && !args[2].IsNull() {
		layout = editor.LayoutFromBox(editor.Box{
			Left:   args[2].Float(),
			Top:    args[3].Float(),
			Width:  args[4].Float(),
			Height: args[5].Float(),
		})
	}
	return pointer, layout, true
}

func pointerEvent(args []js.Value, handle func(editor.Point, editor.Layout) bool) interface{} {
	pointer, layout, ok := readPointer(args)
	if !ok || !handle(pointer, layout) {
		return nil
	}
	return js.ValueOf(sess.Editor().RenderJSON())
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(sess.Editor().RenderJSON())
}

// hitTest takes the same arguments as the pointer events and returns the
// 1-based region under the pointer, or 0.
func hitTest(this js.Value, args []js.Value) interface{} {
	pointer, layout, ok := readPointer(args)
	if !ok {
		return js.ValueOf(0)
	}
	return js.ValueOf(sess.HitTest(pointer, layout))
}

func isDragging(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(sess.Editor().State() == editor.StateDragging)
}

func describe(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(sess.Describe())
}

func getDocument(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(toJSON(sess.Document()))
}

// getImageContext(displayedWidth, displayedHeight)
func getImageContext(this js.Value, args []js.Value) interface{} {
	var displayed editor.Size
	if len(args) >= 2 {
		displayed = editor.Size{Width: args[0].Float(), Height: args[1].Float()}
	}
	return js.ValueOf(toJSON(sess.ImageContext(displayed)))
}

func validate(this js.Value, args []js.Value) interface{} {
	if err := sess.Ready(); err != nil {
		return errorValue(err)
	}
	return js.ValueOf(map[string]interface{}{"ok": true})
}
