package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/inamate/genscene/internal/document"
)

// ErrUnsupportedGeometry is returned for geometry that has no point form.
var ErrUnsupportedGeometry = errors.New("unsupported geometry")

// circleSegments is the fixed circle tessellation.
const circleSegments = 32

// textAdvance approximates glyph width as a fraction of the font size.
const textAdvance = 0.6

// GeometryToPoints converts a local-space geometry to its outline points.
// Rects and circles are centered on the origin; text is a placeholder box
// with its top-left corner at the origin.
func GeometryToPoints(g document.Geometry, t float64) ([]Point, error) {
	switch geo := g.(type) {
	case document.PointGeometry:
		return []Point{{X: 0, Y: 0}}, nil

	case document.LineGeometry:
		return vecsToPoints(geo.Points[:]), nil

	case document.PolylineGeometry:
		return vecsToPoints(geo.Points), nil

	case document.PolygonGeometry:
		return vecsToPoints(geo.Points), nil

	case document.RectGeometry:
		w, h, err := rectSize(geo, t)
		if err != nil {
			return nil, err
		}
		hw, hh := w/2, h/2
		return []Point{{X: -hw, Y: -hh}, {X: hw, Y: -hh}, {X: hw, Y: hh}, {X: -hw, Y: hh}}, nil

	case document.CircleGeometry:
		r, err := scalarAt(&geo.Radius, t, 0)
		if err != nil {
			return nil, fmt.Errorf("radius: %w", err)
		}
		pts := make([]Point, circleSegments)
		for i := range pts {
			a := 2 * math.Pi * float64(i) / circleSegments
			pts[i] = Point{X: r * math.Cos(a), Y: r * math.Sin(a)}
		}
		return pts, nil

	case document.TextGeometry:
		w, h, err := textSize(geo, t)
		if err != nil {
			return nil, err
		}
		return []Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}, nil

	case nil:
		return nil, fmt.Errorf("%w: missing geometry", ErrUnsupportedGeometry)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeometryType())
	}
}

// EvaluatePrimitiveGeometry transforms g's points by the transform at t
// and computes their bounds.
func EvaluatePrimitiveGeometry(g document.Geometry, ts document.TransformSpec, t float64) (*EvaluatedGeometry, error) {
	m, err := EvaluateTransform(ts, t)
	if err != nil {
		return nil, err
	}
	return evaluateGeometryWith(g, m, t)
}

func evaluateGeometryWith(g document.Geometry, m Matrix2D, t float64) (*EvaluatedGeometry, error) {
	local, err := GeometryToPoints(g, t)
	if err != nil {
		return nil, err
	}

	out := &EvaluatedGeometry{
		Type:   g.GeometryType(),
		Points: m.TransformPoints(local),
		Matrix: m,
	}
	if b, ok := BoundsOf(out.Points); ok {
		out.Bounds = &b
	}

	switch geo := g.(type) {
	case document.PolygonGeometry, document.RectGeometry, document.CircleGeometry:
		out.Closed = true
	case document.TextGeometry:
		out.Text = geo.Text
		out.FontAsset = geo.FontAsset
		out.Size, _ = scalarAt(&geo.Size, t, 0)
	}
	switch geo := g.(type) {
	case document.RectGeometry:
		out.Width, out.Height, _ = rectSize(geo, t)
	case document.CircleGeometry:
		out.Radius, _ = scalarAt(&geo.Radius, t, 0)
	}
	return out, nil
}

// evaluateMath computes amp * sin(freq*input + phase); input defaults to t.
func evaluateMath(g document.MathGeometry, t float64) (*EvaluatedGeometry, error) {
	amp, err := scalarAt(g.Amp, t, 1)
	if err != nil {
		return nil, fmt.Errorf("amp: %w", err)
	}
	freq, err := scalarAt(g.Freq, t, 1)
	if err != nil {
		return nil, fmt.Errorf("freq: %w", err)
	}
	phase, err := scalarAt(g.Phase, t, 0)
	if err != nil {
		return nil, fmt.Errorf("phase: %w", err)
	}
	input, err := scalarAt(g.Input, t, t)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}

	v := amp * math.Sin(freq*input+phase)
	return &EvaluatedGeometry{Type: document.GeometryMath, Matrix: Identity(), Value: &v}, nil
}

func rectSize(g document.RectGeometry, t float64) (float64, float64, error) {
	w, err := scalarAt(&g.Width, t, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("width: %w", err)
	}
	h, err := scalarAt(&g.Height, t, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("height: %w", err)
	}
	return w, h, nil
}

func textSize(g document.TextGeometry, t float64) (float64, float64, error) {
	size, err := scalarAt(&g.Size, t, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("size: %w", err)
	}
	return textAdvance * size * float64(len([]rune(g.Text))), size, nil
}

func vecsToPoints(vs []document.Vec2) []Point {
	out := make([]Point, len(vs))
	for i, v := range vs {
		out[i] = Point{X: v.X, Y: v.Y}
	}
	return out
}
