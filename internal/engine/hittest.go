package engine

import (
	"encoding/json"
	"math"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/raster"
)

const (
	// pointHitRadius is the pick distance for single points.
	pointHitRadius = 4.0
	// lineHitTolerance is the minimum pick distance for open paths.
	lineHitTolerance = 3.0
)

// HitTest returns the ID of the topmost (last drawn) object containing
// the point, or empty string.
func HitTest(objects []EvaluatedObject, x, y float64) string {
	for i := len(objects) - 1; i >= 0; i-- {
		if hitObject(&objects[i], x, y) {
			return objects[i].ObjectID
		}
	}
	return ""
}

func hitObject(o *EvaluatedObject, x, y float64) bool {
	if o.Geometry != nil && hitGeometry(o.Geometry, o.Style, x, y) {
		return true
	}
	if o.Raster != nil {
		if px, py, ok := o.Raster.WorldToPixel(x, y); ok {
			return o.Raster.At(px, py) != 0
		}
	}
	return false
}

func hitGeometry(g *EvaluatedGeometry, style *document.Style, x, y float64) bool {
	switch g.Type {
	case document.GeometryPoint:
		if len(g.Points) == 0 {
			return false
		}
		p := g.Points[0]
		return math.Hypot(x-p.X, y-p.Y) <= pointHitRadius

	case document.GeometryLine, document.GeometryPolyline:
		tol := lineHitTolerance
		if style != nil && style.StrokeWidth != nil {
			tol = math.Max(tol, *style.StrokeWidth/2)
		}
		for i := 0; i+1 < len(g.Points); i++ {
			if segmentDistance(g.Points[i], g.Points[i+1], x, y) <= tol {
				return true
			}
		}
		return false

	case document.GeometryText:
		return g.Bounds != nil && g.Bounds.Contains(x, y)

	case document.GeometryMath:
		return false

	default:
		if len(g.Points) < 3 {
			return false
		}
		return raster.ContainsEvenOdd(g.Points, x, y)
	}
}

// segmentDistance is the distance from (x, y) to segment ab.
func segmentDistance(a, b Point, x, y float64) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(x-a.X, y-a.Y)
	}
	u := ((x-a.X)*dx + (y-a.Y)*dy) / lenSq
	u = math.Max(0, math.Min(1, u))
	return math.Hypot(x-(a.X+u*dx), y-(a.Y+u*dy))
}

// SelectionBounds returns the combined bounding box of the given object IDs.
func SelectionBounds(objects []EvaluatedObject, objectIDs []string) Rect {
	wanted := make(map[string]bool, len(objectIDs))
	for _, id := range objectIDs {
		wanted[id] = true
	}

	var result Rect
	first := true
	for i := range objects {
		o := &objects[i]
		if !wanted[o.ObjectID] {
			continue
		}
		b, ok := objectBounds(o)
		if !ok {
			continue
		}
		if first {
			result = b
			first = false
		} else {
			result = result.Union(b)
		}
	}
	return result
}

func objectBounds(o *EvaluatedObject) (Rect, bool) {
	if o.Geometry != nil && o.Geometry.Bounds != nil {
		return *o.Geometry.Bounds, true
	}
	if o.Raster != nil {
		f := o.Raster.Frame
		return Rect{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height}, true
	}
	return Rect{}, false
}

// RectToJSON serializes a Rect to JSON.
func RectToJSON(r Rect) string {
	data, _ := json.Marshal(r)
	return string(data)
}
