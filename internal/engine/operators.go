package engine

import (
	"fmt"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/raster"
)

// operatorOutputs keeps operator results by output id, in the order each
// id was first produced.
type operatorOutputs struct {
	byID  map[string]*EvaluatedObject
	order []string
}

func (o *operatorOutputs) put(obj *EvaluatedObject) {
	if _, seen := o.byID[obj.ObjectID]; !seen {
		o.order = append(o.order, obj.ObjectID)
	}
	o.byID[obj.ObjectID] = obj
}

// runOperators executes operators in declared order. Inputs resolve
// against prior outputs first, then evaluated objects.
func (c *evalContext) runOperators() (*operatorOutputs, error) {
	outs := &operatorOutputs{byID: make(map[string]*EvaluatedObject)}

	for _, op := range c.scene.Operators {
		io := op.IO()
		if unknown, ok := op.(document.UnknownOperator); ok {
			c.warn(io.ID, "operator type %q is not implemented", unknown.Type)
			continue
		}
		if len(io.InputRefs) == 0 {
			c.warn(io.ID, "operator has no inputs")
			continue
		}

		var missing []string
		for _, ref := range io.InputRefs {
			if _, ok := c.operatorInput(outs, ref); !ok {
				missing = append(missing, ref)
			}
		}
		if len(missing) > 0 {
			c.warn(io.ID, "input not found: %v", missing)
			continue
		}
		input, _ := c.operatorInput(outs, io.InputRefs[0])

		result, err := c.applyOperator(op, input)
		if err != nil {
			return nil, fmt.Errorf("operator %s: %w", io.ID, err)
		}
		if result == nil {
			continue
		}

		result.ObjectID = io.OutputRef
		if result.ObjectID == "" {
			result.ObjectID = io.ID
		}
		result.Style = input.Style
		result.Visible = true
		outs.put(result)
	}
	return outs, nil
}

func (c *evalContext) operatorInput(outs *operatorOutputs, id string) (*EvaluatedObject, bool) {
	if obj, ok := outs.byID[id]; ok {
		return obj, true
	}
	obj, ok := c.evaluated[id]
	return obj, ok
}

// applyOperator returns a partial object carrying either geometry or a
// raster, or nil after a warning when the input has the wrong shape.
func (c *evalContext) applyOperator(op document.Operator, in *EvaluatedObject) (*EvaluatedObject, error) {
	id := op.IO().ID

	switch o := op.(type) {
	case document.AffineOperator:
		m, err := EvaluateTransform(c.resolveTransform(id, o.Transform), c.t)
		if err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}
		switch {
		case in.Geometry != nil && len(in.Geometry.Points) > 0:
			geo := *in.Geometry
			geo.Points = m.TransformPoints(in.Geometry.Points)
			geo.Matrix = m.Multiply(in.Geometry.Matrix)
			geo.Bounds = nil
			if b, ok := BoundsOf(geo.Points); ok {
				geo.Bounds = &b
			}
			return &EvaluatedObject{Geometry: &geo}, nil
		case in.Raster != nil:
			// Raster resampling is not implemented; the raster passes through.
			c.logger.Debug("affine operator passes raster through", "operator", id)
			return &EvaluatedObject{Raster: in.Raster.Clone()}, nil
		}
		c.warn(id, "input %q has neither geometry nor raster", in.ObjectID)
		return nil, nil

	case document.RasterizeOperator:
		if in.Geometry == nil || in.Geometry.Bounds == nil {
			c.warn(id, "input %q has no geometry to rasterize", in.ObjectID)
			return nil, nil
		}
		w, h := c.rasterSize(o.Resolution)
		r := raster.Rasterize(in.Geometry.Points, in.Geometry.Bounds.Frame(), w, h)
		return &EvaluatedObject{Raster: r}, nil

	case document.ThresholdOperator:
		if in.Raster == nil {
			c.warn(id, "input %q has no raster", in.ObjectID)
			return nil, nil
		}
		inverse := false
		switch o.Mode {
		case "", document.ThresholdBinary:
		case document.ThresholdInverse:
			inverse = true
		default:
			c.warn(id, "unknown threshold mode %q, using binary", o.Mode)
		}
		return &EvaluatedObject{Raster: raster.Threshold(in.Raster, o.Level, inverse)}, nil

	case document.MorphologyOperator:
		if in.Raster == nil {
			c.warn(id, "input %q has no raster", in.ObjectID)
			return nil, nil
		}
		kernel := raster.Kernel(o.Kernel)
		switch kernel {
		case "":
			kernel = raster.KernelSquare
		case raster.KernelSquare, raster.KernelCross:
		default:
			c.warn(id, "unknown kernel %q, using square", o.Kernel)
			kernel = raster.KernelSquare
		}
		if o.Mode == document.OperatorDilate {
			return &EvaluatedObject{Raster: raster.Dilate(in.Raster, o.Radius, o.Iterations, kernel)}, nil
		}
		return &EvaluatedObject{Raster: raster.Erode(in.Raster, o.Radius, o.Iterations, kernel)}, nil

	default:
		return nil, fmt.Errorf("unhandled operator type %q", op.OperatorType())
	}
}

// rasterSize picks the operator resolution, then the render config
// default, then 64x64.
func (c *evalContext) rasterSize(res document.Resolution) (int, int) {
	w, h := res.Width, res.Height
	if w <= 0 {
		w = c.config.RasterWidth
	}
	if h <= 0 {
		h = c.config.RasterHeight
	}
	if w <= 0 {
		w = raster.DefaultSize
	}
	if h <= 0 {
		h = raster.DefaultSize
	}
	return w, h
}

// mergeOutputs writes operator results into the emitted list. An existing
// entry gets only the field matching the result kind overwritten; unknown
// ids are appended.
func mergeOutputs(objects []EvaluatedObject, outs *operatorOutputs) []EvaluatedObject {
	pos := make(map[string]int, len(objects))
	for i, o := range objects {
		pos[o.ObjectID] = i
	}
	for _, id := range outs.order {
		res := outs.byID[id]
		i, ok := pos[id]
		if !ok {
			pos[id] = len(objects)
			objects = append(objects, *res)
			continue
		}
		if res.Raster != nil {
			objects[i].Raster = res.Raster
		} else if res.Geometry != nil {
			objects[i].Geometry = res.Geometry
		}
	}
	return objects
}
