//go:build js && wasm

package main

import (
	"syscall/js"

	"github.com/inamate/genscene/internal/engine"
)

var eng *engine.Engine

func main() {
	eng = engine.NewEngine()

	// Create the engine API object
	sceneEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	sceneEngine.Set("loadScene", js.FuncOf(loadScene))
	sceneEngine.Set("updateScene", js.FuncOf(updateScene))
	sceneEngine.Set("loadSampleScene", js.FuncOf(loadSampleScene))
	sceneEngine.Set("setPlayhead", js.FuncOf(setPlayhead))
	sceneEngine.Set("play", js.FuncOf(play))
	sceneEngine.Set("pause", js.FuncOf(pause))
	sceneEngine.Set("togglePlay", js.FuncOf(togglePlay))
	sceneEngine.Set("setSelection", js.FuncOf(setSelection))
	sceneEngine.Set("markAssetReady", js.FuncOf(markAssetReady))
	sceneEngine.Set("tick", js.FuncOf(tick))

	// --- Queries (frontend ← backend) ---
	sceneEngine.Set("render", js.FuncOf(render))
	sceneEngine.Set("hitTest", js.FuncOf(hitTest))
	sceneEngine.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	sceneEngine.Set("canConnect", js.FuncOf(canConnect))
	sceneEngine.Set("getScene", js.FuncOf(getScene))
	sceneEngine.Set("getPlaybackState", js.FuncOf(getPlaybackState))
	sceneEngine.Set("getSelection", js.FuncOf(getSelection))
	sceneEngine.Set("getFrame", js.FuncOf(getFrame))
	sceneEngine.Set("getTime", js.FuncOf(getTime))
	sceneEngine.Set("isPlaying", js.FuncOf(isPlaying))
	sceneEngine.Set("getFPS", js.FuncOf(getFPS))
	sceneEngine.Set("getTotalFrames", js.FuncOf(getTotalFrames))

	// Register on global scope
	js.Global().Set("sceneEngine", sceneEngine)

	// Signal that WASM is ready
	js.Global().Set("sceneWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// --- Command Handlers ---

func loadScene(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing scene JSON"})
	}

	if err := eng.LoadScene(args[0].String()); err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}

	return js.ValueOf(map[string]interface{}{"ok": true})
}

func updateScene(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing scene JSON"})
	}

	if err := eng.UpdateScene(args[0].String()); err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}

	return js.ValueOf(map[string]interface{}{"ok": true})
}

func loadSampleScene(this js.Value, args []js.Value) interface{} {
	eng.LoadSampleScene()
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func setPlayhead(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetPlayhead(args[0].Int())
	return nil
}

func play(this js.Value, args []js.Value) interface{} {
	eng.Play()
	return nil
}

func pause(this js.Value, args []js.Value) interface{} {
	eng.Pause()
	return nil
}

func togglePlay(this js.Value, args []js.Value) interface{} {
	eng.TogglePlay()
	return nil
}

func setSelection(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		eng.SetSelection(nil)
		return nil
	}

	arr := args[0]
	if arr.Type() != js.TypeObject {
		eng.SetSelection(nil)
		return nil
	}

	length := arr.Length()
	ids := make([]string, length)
	for i := 0; i < length; i++ {
		ids[i] = arr.Index(i).String()
	}
	eng.SetSelection(ids)
	return nil
}

// markAssetReady is called by the host once a font has loaded.
func markAssetReady(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeString {
		return nil
	}
	eng.MarkAssetReady(args[0].String())
	return nil
}

func tick(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Tick())
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Render())
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	x := args[0].Float()
	y := args[1].Float()
	return js.ValueOf(eng.HitTest(x, y))
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetSelectionBounds())
}

func canConnect(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.CanConnect(args[0].String(), args[1].String()))
}

func getScene(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetScene())
}

func getPlaybackState(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetPlaybackState())
}

func getSelection(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetSelection())
}

func getFrame(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetFrame())
}

func getTime(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Time())
}

func isPlaying(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.IsPlaying())
}

func getFPS(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetFPS())
}

func getTotalFrames(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetTotalFrames())
}
