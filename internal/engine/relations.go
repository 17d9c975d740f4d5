package engine

import (
	"fmt"
	"math"

	"github.com/inamate/genscene/internal/document"
)

// resolveRelations applies every enabled relation in list order. Each one
// rewrites the transform of the object it constrains in the working set.
func (c *evalContext) resolveRelations(ws *workingSet) error {
	for _, rel := range c.scene.Relations {
		meta := rel.Meta()
		if !meta.Enabled {
			continue
		}

		var err error
		switch r := rel.(type) {
		case document.AttachRelation:
			err = c.applyAttach(ws, r)
		case document.AlignRelation:
			err = c.applyAlign(ws, r)
		case document.FollowPathRelation:
			err = c.applyFollowPath(ws, r)
		case document.RepeatRelation:
			err = c.applyRepeat(ws, r)
		case document.UnknownRelation:
			c.warn(meta.ID, "relation type %q is not implemented", r.Type)
		default:
			err = fmt.Errorf("unhandled relation type %q", rel.RelationType())
		}
		if err != nil {
			return fmt.Errorf("relation %s: %w", meta.ID, err)
		}
		c.invalidate()
	}
	return nil
}

// lookup finds every id or warns about the first missing one.
func (c *evalContext) lookup(ws *workingSet, relID string, ids ...string) ([]*document.SceneObject, bool) {
	out := make([]*document.SceneObject, len(ids))
	for i, id := range ids {
		obj, ok := ws.find(id)
		if !ok {
			c.warn(relID, "target object %q not found", id)
			return nil, false
		}
		out[i] = obj
	}
	return out, true
}

func (c *evalContext) applyAttach(ws *workingSet, r document.AttachRelation) error {
	objs, ok := c.lookup(ws, r.ID, r.Parent, r.Child)
	if !ok {
		return nil
	}
	parent, child := objs[0], objs[1]

	pm, err := c.transformAt(*parent)
	if err != nil {
		return err
	}
	offset, err := vecAt(c.resolveOptional(r.ID, r.Offset, vectorSlot), c.t, document.Vec2{})
	if err != nil {
		return fmt.Errorf("offset: %w", err)
	}

	m := composeInheritance(pm, r.InheritRotation, r.InheritScale).Multiply(Translate(offset.X, offset.Y))
	child.Transform = document.MatrixTransform(m.ToDocument())
	return nil
}

// composeInheritance keeps the parent's translation plus, optionally, its
// rotation and column scales.
func composeInheritance(parent Matrix2D, rotation, scale bool) Matrix2D {
	switch {
	case rotation && scale:
		return parent
	case !rotation && !scale:
		return Translate(parent.Translation())
	}

	m := Translate(parent.Translation())
	if rotation {
		m = m.Multiply(Rotate(parent.RotationAngle()))
	}
	if scale {
		m = m.Multiply(Scale(parent.ColumnScales()))
	}
	return m
}

// isPrimitive reports whether obj has point geometry that can be bounded.
func isPrimitive(obj *document.SceneObject) bool {
	if obj.Kind != document.KindPrimitive || obj.Geometry == nil {
		return false
	}
	return obj.Geometry.GeometryType() != document.GeometryMath
}

// worldGeometry evaluates obj's geometry with references resolved.
func (c *evalContext) worldGeometry(obj *document.SceneObject) (*EvaluatedGeometry, error) {
	resolved := c.resolveObject(*obj)
	geo, err := EvaluatePrimitiveGeometry(resolved.Geometry, resolved.Transform, c.t)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", obj.ID, err)
	}
	return geo, nil
}

func (c *evalContext) applyAlign(ws *workingSet, r document.AlignRelation) error {
	objs, ok := c.lookup(ws, r.ID, r.A, r.B)
	if !ok {
		return nil
	}
	a, b := objs[0], objs[1]
	if !isPrimitive(a) || !isPrimitive(b) {
		c.warn(r.ID, "align needs two primitives, got %q and %q", a.ID, b.ID)
		return nil
	}

	ga, err := c.worldGeometry(a)
	if err != nil {
		return err
	}
	gb, err := c.worldGeometry(b)
	if err != nil {
		return err
	}
	if ga.Bounds == nil || gb.Bounds == nil {
		c.warn(r.ID, "align target has no bounds")
		return nil
	}

	switch r.Anchor {
	case "", document.AnchorCenter, document.AnchorTopLeft:
	default:
		c.warn(r.ID, "unknown anchor %q, using center", r.Anchor)
	}
	anchor := func(rect Rect) (float64, float64) {
		if r.Anchor == document.AnchorTopLeft {
			return rect.Min()
		}
		return rect.Center()
	}

	ax, ay := anchor(*ga.Bounds)
	bx, by := anchor(*gb.Bounds)
	m := Translate(bx-ax, by-ay).Multiply(ga.Matrix)
	a.Transform = document.MatrixTransform(m.ToDocument())
	return nil
}

func (c *evalContext) applyFollowPath(ws *workingSet, r document.FollowPathRelation) error {
	objs, ok := c.lookup(ws, r.ID, r.Object, r.Path)
	if !ok {
		return nil
	}
	obj, path := objs[0], objs[1]

	if !isPrimitive(path) {
		c.warn(r.ID, "path %q is not a primitive", path.ID)
		return nil
	}
	typ := path.Geometry.GeometryType()
	if typ != document.GeometryPolyline && typ != document.GeometryPolygon {
		c.warn(r.ID, "path %q must be a polyline or polygon, got %s", path.ID, typ)
		return nil
	}

	geo, err := c.worldGeometry(path)
	if err != nil {
		return err
	}
	pts := geo.Points
	if len(pts) == 0 {
		c.warn(r.ID, "path %q has no points", path.ID)
		return nil
	}
	if typ == document.GeometryPolygon {
		pts = append(pts[:len(pts):len(pts)], pts[0])
	}

	uParam := c.resolveParam(r.ID, r.U, numberSlot)
	u, err := scalarAt(&uParam, c.t, 0)
	if err != nil {
		return fmt.Errorf("u: %w", err)
	}
	pos, angle := pointAlong(pts, math.Max(0, math.Min(1, u)))

	om, err := c.transformAt(*obj)
	if err != nil {
		return err
	}
	m := Translate(pos.X, pos.Y)
	if r.TangentAlign {
		m = m.Multiply(Rotate(angle))
	}
	m = m.Multiply(om.WithoutTranslation())
	obj.Transform = document.MatrixTransform(m.ToDocument())
	return nil
}

// pointAlong locates u in [0, 1] on pts by segment index, not arc length,
// and returns the point with the direction angle of its segment.
func pointAlong(pts []Point, u float64) (Point, float64) {
	if len(pts) == 1 {
		return pts[0], 0
	}
	segments := len(pts) - 1
	pos := u * float64(segments)
	i := min(int(math.Floor(pos)), segments-1)
	f := pos - float64(i)

	a, b := pts[i], pts[i+1]
	p := Point{X: lerp(a.X, b.X, f), Y: lerp(a.Y, b.Y, f)}
	return p, math.Atan2(b.Y-a.Y, b.X-a.X)
}

func (c *evalContext) applyRepeat(ws *workingSet, r document.RepeatRelation) error {
	objs, ok := c.lookup(ws, r.ID, r.Object)
	if !ok {
		return nil
	}
	source := *objs[0]
	if r.Count <= 1 {
		return nil
	}
	if r.Count > MaxClones {
		c.warn(r.ID, "count %d exceeds the limit of %d", r.Count, MaxClones)
		return nil
	}

	delta, err := EvaluateTransform(c.resolveTransform(r.ID, r.Delta), c.t)
	if err != nil {
		return fmt.Errorf("deltaTransform: %w", err)
	}
	prev, err := c.transformAt(source)
	if err != nil {
		return err
	}
	for k := 1; k < r.Count; k++ {
		prev = prev.Multiply(delta)
		ws.add(derive(source, r.ID, k, prev))
	}
	return nil
}
