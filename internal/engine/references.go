package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/inamate/genscene/internal/document"
)

// TimeObjectID names the pseudo-object that exposes t to references.
const TimeObjectID = "time"

var (
	errTargetMissing = errors.New("target not evaluated")
	errPropMissing   = errors.New("property not found")
)

// ResolveReference reads ref from the evaluated objects. The pseudo-object
// "time" exposes t as both "t" and "value" unless a real object shadows it.
// An empty property path reads "value".
func ResolveReference(ref document.Reference, t float64, evaluated map[string]*EvaluatedObject) (document.Value, error) {
	var props map[string]any
	if obj, ok := evaluated[ref.TargetID]; ok {
		props = obj.props()
	} else if ref.TargetID == TimeObjectID {
		props = map[string]any{"t": t, "value": t}
	} else {
		return nil, fmt.Errorf("%w: %q", errTargetMissing, ref.TargetID)
	}

	path := ref.TargetProp
	if path == "" {
		path = "value"
	}

	v, ok := walkProps(props, strings.Split(path, "."))
	if !ok {
		if geo, isMap := props["geometry"].(map[string]any); isMap {
			v, ok = walkProps(geo, strings.Split(path, "."))
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q on %q", errPropMissing, path, ref.TargetID)
	}

	switch val := v.(type) {
	case float64:
		return document.Scalar(val), nil
	case document.Vec2:
		return val, nil
	default:
		return nil, fmt.Errorf("%w: %q on %q is not a value", errPropMissing, path, ref.TargetID)
	}
}

func walkProps(props map[string]any, segments []string) (any, bool) {
	var cur any = props
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// evalContext is the state of one evaluation pass. It is created per call
// and never shared.
type evalContext struct {
	t         float64
	scene     *document.Scene
	opts      *Options
	config    document.RenderConfig
	logger    *slog.Logger
	evaluated map[string]*EvaluatedObject
	warnings  []string
	byEntity  map[string][]string

	// While generators and relations expand, pending is the working set
	// and evaluated holds provisional values demanded from it.
	pending  *workingSet
	visiting map[string]bool
	quiet    int
}

func newEvalContext(scene *document.Scene, t float64, opts *Options) *evalContext {
	return &evalContext{
		t:         t,
		scene:     scene,
		opts:      opts,
		config:    scene.RenderConfig,
		logger:    opts.logger(),
		evaluated: make(map[string]*EvaluatedObject),
		warnings:  []string{},
		byEntity:  make(map[string][]string),
		visiting:  make(map[string]bool),
	}
}

// warn records a recoverable problem tagged with the offending entity id.
// A message already recorded for the entity is not repeated.
func (c *evalContext) warn(entityID, format string, args ...any) {
	if c.quiet > 0 {
		return
	}
	msg := fmt.Sprintf("[%s] %s", entityID, fmt.Sprintf(format, args...))
	if slices.Contains(c.byEntity[entityID], msg) {
		return
	}
	c.warnings = append(c.warnings, msg)
	c.byEntity[entityID] = append(c.byEntity[entityID], msg)
	c.logger.Debug("evaluation warning", "entity", entityID, "warning", msg)
}

// demand evaluates id from the working set ahead of the ranked pass, so
// expansion reads a reference target the way the pass itself would.
// Warnings raised on the way are dropped; the ranked pass reports them.
func (c *evalContext) demand(id string) {
	if c.pending == nil || c.visiting[id] {
		return
	}
	if _, done := c.evaluated[id]; done {
		return
	}
	obj, ok := c.pending.find(id)
	if !ok {
		return
	}

	c.visiting[id] = true
	c.quiet++
	ev, err := c.evaluateObject(*obj)
	c.quiet--
	delete(c.visiting, id)
	if err != nil {
		return
	}
	c.evaluated[id] = ev
}

// invalidate drops provisional values after a rule changed the working set.
func (c *evalContext) invalidate() {
	if c.pending != nil {
		clear(c.evaluated)
	}
}

// slot is the value shape a param position accepts.
type slot int

const (
	numberSlot slot = iota
	vectorSlot
	matrixSlot
)

func (s slot) String() string {
	switch s {
	case vectorSlot:
		return "vector"
	case matrixSlot:
		return "matrix"
	}
	return "number"
}

// zero is the stand-in for a reference that cannot fill the slot.
func (s slot) zero() document.Value {
	switch s {
	case vectorSlot:
		return document.Vec2{}
	case matrixSlot:
		return Identity().ToDocument()
	}
	return document.Scalar(0)
}

// accepts reports whether v can fill the slot. Vector slots take a
// scalar as (s, s).
func (s slot) accepts(v document.Value) bool {
	switch v.(type) {
	case document.Scalar:
		return s == numberSlot || s == vectorSlot
	case document.Vec2:
		return s == vectorSlot
	case document.Matrix:
		return s == matrixSlot
	}
	return false
}

// resolveValue replaces a reference with the value it points at. Failed
// lookups and values of the wrong shape yield the slot's zero and one
// warning. Literals pass through untouched.
func (c *evalContext) resolveValue(owner string, v document.Value, want slot) document.Value {
	ref, ok := v.(document.Reference)
	if !ok {
		return v
	}
	c.demand(ref.TargetID)
	resolved, err := ResolveReference(ref, c.t, c.evaluated)
	if err != nil {
		c.warn(owner, "unresolved reference %s: %v", ref, err)
		return want.zero()
	}
	if !want.accepts(resolved) {
		c.warn(owner, "reference %s is not a %s", ref, want)
		return want.zero()
	}
	return resolved
}

func (c *evalContext) resolveParam(owner string, p document.Param, want slot) document.Param {
	out := p.Clone()
	out.Value = c.resolveValue(owner, p.Value, want)
	for i := range out.Keys {
		out.Keys[i].Value = c.resolveValue(owner, out.Keys[i].Value, want)
	}
	return out
}

func (c *evalContext) resolveOptional(owner string, p *document.Param, want slot) *document.Param {
	if p == nil {
		return nil
	}
	out := c.resolveParam(owner, *p, want)
	return &out
}

func (c *evalContext) resolveTransform(owner string, ts document.TransformSpec) document.TransformSpec {
	return document.TransformSpec{
		Translate: c.resolveOptional(owner, ts.Translate, vectorSlot),
		Rotate:    c.resolveOptional(owner, ts.Rotate, numberSlot),
		Scale:     c.resolveOptional(owner, ts.Scale, vectorSlot),
		Shear:     c.resolveOptional(owner, ts.Shear, vectorSlot),
		Matrix:    c.resolveOptional(owner, ts.Matrix, matrixSlot),
	}
}

// resolveObject returns a copy of obj with every reference replaced by a
// literal, so later stages never see a Reference.
func (c *evalContext) resolveObject(obj document.SceneObject) document.SceneObject {
	out := obj
	out.Transform = c.resolveTransform(obj.ID, obj.Transform)
	out.Geometry = document.MapGeometryParams(obj.Geometry, func(p document.Param) document.Param {
		return c.resolveParam(obj.ID, p, numberSlot)
	})
	return out
}

// transformAt evaluates an object's transform with references resolved.
func (c *evalContext) transformAt(obj document.SceneObject) (Matrix2D, error) {
	m, err := EvaluateTransform(c.resolveTransform(obj.ID, obj.Transform), c.t)
	if err != nil {
		return m, fmt.Errorf("object %s: %w", obj.ID, err)
	}
	return m, nil
}
