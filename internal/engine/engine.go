package engine

import (
	"encoding/json"
	"log/slog"
	"math"

	"github.com/inamate/genscene/internal/document"
)

// Engine owns one scene and its playback state. It evaluates lazily and
// caches the last result until the scene or the playhead changes.
// It is not safe for concurrent use.
type Engine struct {
	// Scene state
	scene *document.Scene

	// Last evaluation
	result  *RenderResult
	evalErr error

	// Playback state
	frame   int
	playing bool
	fps     int

	// Total frames in the timeline
	totalFrames int

	// Selection state (backend owns this)
	selection []string

	// Assets the host reported as loaded
	readyAssets map[string]bool

	// Dirty flag - result needs re-evaluation
	dirty bool

	logger *slog.Logger
}

// NewEngine creates a new engine instance.
func NewEngine() *Engine {
	return &Engine{
		fps:         24,
		totalFrames: 48,
		readyAssets: make(map[string]bool),
		dirty:       true,
		logger:      slog.Default(),
	}
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(l *slog.Logger) {
	if l != nil {
		e.logger = l
	}
}

// --- Commands (frontend → backend) ---

// LoadScene loads a scene from JSON and resets playback.
func (e *Engine) LoadScene(jsonData string) error {
	scene, err := document.ParseScene([]byte(jsonData))
	if err != nil {
		return err
	}
	e.setScene(scene)
	e.frame = 0
	e.playing = false
	e.selection = nil
	return nil
}

// UpdateScene replaces the scene while preserving playback state.
// Used when the scene changes during editing/playback.
func (e *Engine) UpdateScene(jsonData string) error {
	scene, err := document.ParseScene([]byte(jsonData))
	if err != nil {
		return err
	}
	e.setScene(scene)

	// Clamp frame to valid range (but don't reset it)
	e.frame = max(0, min(e.frame, e.totalFrames-1))
	return nil
}

// LoadSampleScene loads the built-in sample scene.
func (e *Engine) LoadSampleScene() {
	e.setScene(document.NewSampleScene())
	e.frame = 0
	e.playing = false
	e.selection = nil
}

func (e *Engine) setScene(scene *document.Scene) {
	e.scene = scene
	e.fps = scene.Timeline.FPS
	if e.fps <= 0 {
		e.fps = 24
	}
	e.totalFrames = int(math.Round(scene.Timeline.Duration * float64(e.fps)))
	if e.totalFrames <= 0 {
		e.totalFrames = 48
	}
	e.dirty = true
}

// SetPlayhead sets the current frame.
func (e *Engine) SetPlayhead(frame int) {
	frame = max(0, min(frame, e.totalFrames-1))
	if e.frame != frame {
		e.frame = frame
		e.dirty = true
	}
}

// Play starts playback.
func (e *Engine) Play() {
	e.playing = true
}

// Pause stops playback.
func (e *Engine) Pause() {
	e.playing = false
}

// TogglePlay toggles play/pause state.
func (e *Engine) TogglePlay() {
	e.playing = !e.playing
}

// SetSelection sets the selected object IDs.
func (e *Engine) SetSelection(ids []string) {
	e.selection = ids
}

// MarkAssetReady records that the host finished loading an asset.
func (e *Engine) MarkAssetReady(assetID string) {
	if !e.readyAssets[assetID] {
		e.readyAssets[assetID] = true
		e.dirty = true
	}
}

// Tick advances one frame if playing and returns the render result JSON.
// At the end of the timeline it wraps when the timeline loops and stops
// otherwise. This is called once per animation frame from the frontend.
func (e *Engine) Tick() string {
	if e.playing {
		next := e.frame + 1
		if next >= e.totalFrames {
			if e.scene != nil && !e.scene.Timeline.Loop {
				next = e.totalFrames - 1
				e.playing = false
			} else {
				next = 0
			}
		}
		if next != e.frame {
			e.frame = next
			e.dirty = true
		}
	}

	return e.Render()
}

// --- Queries (frontend ← backend) ---

// Time returns the playhead in seconds.
func (e *Engine) Time() float64 {
	return float64(e.frame) / float64(e.fps)
}

// Evaluate returns the result at the current playhead, re-evaluating if
// anything changed.
func (e *Engine) Evaluate() (*RenderResult, error) {
	if e.scene == nil {
		return &RenderResult{Objects: []EvaluatedObject{}, Warnings: []string{}}, nil
	}
	if e.dirty {
		e.result, e.evalErr = Evaluate(e.scene, e.Time(), &Options{
			AssetReady: func(id string) bool { return e.readyAssets[id] },
			Logger:     e.logger,
		})
		e.dirty = false
		if e.evalErr != nil {
			e.logger.Error("scene evaluation failed", "error", e.evalErr, "t", e.Time())
		}
	}
	return e.result, e.evalErr
}

// Render evaluates the scene and returns the render result as JSON.
func (e *Engine) Render() string {
	result, err := e.Evaluate()
	if err != nil {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(data)
	}
	out, err := result.ToJSON()
	if err != nil {
		return `{"objects":[],"warnings":[]}`
	}
	return out
}

// HitTest performs a hit test at the given coordinates.
// Returns the object ID of the topmost hit, or empty string.
func (e *Engine) HitTest(x, y float64) string {
	result, err := e.Evaluate()
	if err != nil || result == nil {
		return ""
	}
	return HitTest(result.Objects, x, y)
}

// GetSelectionBounds returns the bounding box of the current selection as JSON.
func (e *Engine) GetSelectionBounds() string {
	result, err := e.Evaluate()
	if err != nil || result == nil || len(e.selection) == 0 {
		return RectToJSON(Rect{})
	}
	return RectToJSON(SelectionBounds(result.Objects, e.selection))
}

// CanConnect reports whether depender may depend on dependee without
// creating a cycle.
func (e *Engine) CanConnect(depender, dependee string) bool {
	if e.scene == nil {
		return depender != dependee
	}
	return CanConnect(e.scene, depender, dependee)
}

// GetScene returns the current scene as JSON.
func (e *Engine) GetScene() string {
	if e.scene == nil {
		return "{}"
	}
	data, err := json.Marshal(e.scene)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// GetPlaybackState returns the current playback state as JSON.
func (e *Engine) GetPlaybackState() string {
	data, _ := json.Marshal(map[string]any{
		"frame":       e.frame,
		"time":        e.Time(),
		"playing":     e.playing,
		"fps":         e.fps,
		"totalFrames": e.totalFrames,
	})
	return string(data)
}

// GetSelection returns the current selection as JSON.
func (e *Engine) GetSelection() string {
	data, _ := json.Marshal(e.selection)
	return string(data)
}

// GetFrame returns the current frame number.
func (e *Engine) GetFrame() int {
	return e.frame
}

// IsPlaying returns whether playback is active.
func (e *Engine) IsPlaying() bool {
	return e.playing
}

// GetFPS returns the frames per second.
func (e *Engine) GetFPS() int {
	return e.fps
}

// GetTotalFrames returns the total number of frames.
func (e *Engine) GetTotalFrames() int {
	return e.totalFrames
}
