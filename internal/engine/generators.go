package engine

import (
	"fmt"
	"math"

	"github.com/inamate/genscene/internal/document"
)

// workingSet is the per-call copy of the scene's objects. Derived clones
// are appended to it and are visible to every later stage of the pass.
type workingSet struct {
	objects []document.SceneObject
	index   map[string]int
}

func newWorkingSet(objs []document.SceneObject) *workingSet {
	w := &workingSet{objects: objs, index: make(map[string]int, len(objs))}
	for i, o := range objs {
		if _, dup := w.index[o.ID]; !dup {
			w.index[o.ID] = i
		}
	}
	return w
}

func (w *workingSet) find(id string) (*document.SceneObject, bool) {
	i, ok := w.index[id]
	if !ok {
		return nil, false
	}
	return &w.objects[i], true
}

func (w *workingSet) add(obj document.SceneObject) {
	w.index[obj.ID] = len(w.objects)
	w.objects = append(w.objects, obj)
}

// MaxClones bounds the clones a single generator or repeat relation may
// add. Larger requests are skipped with a warning.
const MaxClones = 10000

// CloneID is the deterministic id of the index-th clone of sourceID made
// by the generator or relation ruleID.
func CloneID(sourceID, ruleID string, index int) string {
	return fmt.Sprintf("%s__%s__%d", sourceID, ruleID, index)
}

// derive deep-copies src with its transform collapsed to m.
func derive(src document.SceneObject, ruleID string, index int, m Matrix2D) document.SceneObject {
	c := src.Clone()
	c.ID = CloneID(src.ID, ruleID, index)
	c.Transform = document.MatrixTransform(m.ToDocument())
	c.GeneratedBy = ruleID
	c.SourceID = src.ID
	return c
}

// expandGenerators runs every generator in list order.
func (c *evalContext) expandGenerators(ws *workingSet) error {
	for _, g := range c.scene.Generators {
		meta := g.Meta()
		if unknown, ok := g.(document.UnknownGenerator); ok {
			c.warn(meta.ID, "generator type %q is not implemented", unknown.Type)
			continue
		}

		src, ok := ws.find(meta.Source)
		if !ok {
			c.warn(meta.ID, "source object %q not found", meta.Source)
			continue
		}
		source := *src
		base, err := c.transformAt(source)
		if err != nil {
			return fmt.Errorf("generator %s: %w", meta.ID, err)
		}

		offsets, err := c.generatorOffsets(g)
		if err != nil {
			return fmt.Errorf("generator %s: %w", meta.ID, err)
		}
		for k, off := range offsets {
			ws.add(derive(source, meta.ID, k, base.Multiply(off)))
		}
		c.invalidate()
		c.logger.Debug("generator expanded", "generator", meta.ID, "source", meta.Source, "clones", len(offsets))
	}
	return nil
}

// generatorOffsets returns the per-instance offset matrices.
func (c *evalContext) generatorOffsets(g document.Generator) ([]Matrix2D, error) {
	id := g.Meta().ID
	t := c.t

	switch gen := g.(type) {
	case document.InstanceGenerator:
		out := make([]Matrix2D, 0, len(gen.Transforms))
		for i, ts := range gen.Transforms {
			m, err := EvaluateTransform(c.resolveTransform(id, ts), t)
			if err != nil {
				return nil, fmt.Errorf("transforms[%d]: %w", i, err)
			}
			out = append(out, m)
		}
		return out, nil

	case document.GridGenerator:
		a, err := vecAt(c.resolveOptional(id, &gen.A, vectorSlot), t, document.Vec2{})
		if err != nil {
			return nil, fmt.Errorf("a: %w", err)
		}
		b, err := vecAt(c.resolveOptional(id, &gen.B, vectorSlot), t, document.Vec2{})
		if err != nil {
			return nil, fmt.Errorf("b: %w", err)
		}
		cell := Identity()
		if gen.Cell != nil {
			if cell, err = EvaluateTransform(c.resolveTransform(id, *gen.Cell), t); err != nil {
				return nil, fmt.Errorf("cellTransform: %w", err)
			}
		}
		if gen.I[0] > gen.I[1] || gen.J[0] > gen.J[1] {
			c.warn(id, "empty grid range i=%v j=%v", gen.I, gen.J)
			return nil, nil
		}
		ni := int64(gen.I[1]) - int64(gen.I[0]) + 1
		nj := int64(gen.J[1]) - int64(gen.J[0]) + 1
		if ni > MaxClones || nj > MaxClones || ni*nj > MaxClones {
			c.warn(id, "grid of %d x %d cells exceeds the limit of %d", ni, nj, MaxClones)
			return nil, nil
		}

		out := make([]Matrix2D, 0, ni*nj)
		for j := gen.J[0]; j <= gen.J[1]; j++ {
			for i := gen.I[0]; i <= gen.I[1]; i++ {
				p := a.Scale(float64(i)).Add(b.Scale(float64(j)))
				out = append(out, Translate(p.X, p.Y).Multiply(cell))
			}
		}
		return out, nil

	case document.RadialGenerator:
		if gen.Count <= 0 {
			return nil, nil
		}
		if gen.Count > MaxClones {
			c.warn(id, "count %d exceeds the limit of %d", gen.Count, MaxClones)
			return nil, nil
		}
		radius, err := scalarAt(c.resolveOptional(id, &gen.Radius, numberSlot), t, 0)
		if err != nil {
			return nil, fmt.Errorf("radius: %w", err)
		}
		start, err := scalarAt(c.resolveOptional(id, gen.StartAngle, numberSlot), t, 0)
		if err != nil {
			return nil, fmt.Errorf("startAngle: %w", err)
		}
		// Without an end angle the clones cover a full turn with no
		// clone landing on the first one.
		fullTurn := start + 2*math.Pi*float64(gen.Count-1)/float64(gen.Count)
		end, err := scalarAt(c.resolveOptional(id, gen.EndAngle, numberSlot), t, fullTurn)
		if err != nil {
			return nil, fmt.Errorf("endAngle: %w", err)
		}
		center, err := vecAt(c.resolveOptional(id, gen.Center, vectorSlot), t, document.Vec2{})
		if err != nil {
			return nil, fmt.Errorf("center: %w", err)
		}

		step := (end - start) / float64(max(gen.Count-1, 1))
		out := make([]Matrix2D, gen.Count)
		for k := range out {
			angle := start + float64(k)*step
			out[k] = Translate(center.X+radius*math.Cos(angle), center.Y+radius*math.Sin(angle))
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unhandled generator type %q", g.GeneratorType())
	}
}
