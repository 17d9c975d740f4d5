package engine

import (
	"encoding/json"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/raster"
)

// EvaluatedGeometry is world-space geometry ready for a drawing backend.
// Local dimensions are kept so renderers can draw exact shapes.
type EvaluatedGeometry struct {
	Type      document.GeometryType `json:"type"`
	Points    []Point               `json:"points,omitempty"`
	Bounds    *Rect                 `json:"bounds,omitempty"`
	Matrix    Matrix2D              `json:"matrix"`
	Closed    bool                  `json:"closed,omitempty"`
	Width     float64               `json:"width,omitempty"`
	Height    float64               `json:"height,omitempty"`
	Radius    float64               `json:"radius,omitempty"`
	Text      string                `json:"text,omitempty"`
	FontAsset string                `json:"fontAsset,omitempty"`
	Size      float64               `json:"size,omitempty"`
	Value     *float64              `json:"value,omitempty"`
}

// EvaluatedObject is the per-object result of one evaluation pass.
// Entries produced by operators may carry only a raster, only geometry,
// or neither.
type EvaluatedObject struct {
	ObjectID    string              `json:"objectId"`
	Kind        document.ObjectKind `json:"kind,omitempty"`
	Transform   *Matrix2D           `json:"transform,omitempty"`
	Geometry    *EvaluatedGeometry  `json:"geometry,omitempty"`
	Raster      *raster.Raster      `json:"raster,omitempty"`
	Style       *document.Style     `json:"style,omitempty"`
	Visible     bool                `json:"visible"`
	GeneratedBy string              `json:"generatedBy,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// RenderResult is the output of Evaluate.
type RenderResult struct {
	Objects  []EvaluatedObject     `json:"objects"`
	Warnings []string              `json:"warnings"`
	Config   document.RenderConfig `json:"config"`
}

// ToJSON serializes the result.
func (r *RenderResult) ToJSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Object looks up an emitted object by id.
func (r *RenderResult) Object(id string) (*EvaluatedObject, bool) {
	for i := range r.Objects {
		if r.Objects[i].ObjectID == id {
			return &r.Objects[i], true
		}
	}
	return nil, false
}

// props exposes the fields a reference may walk. Top-level fields come
// first; geometry fields are also reachable under "geometry".
func (o *EvaluatedObject) props() map[string]any {
	p := map[string]any{}
	if o.Transform != nil {
		m := *o.Transform
		x, y := m.Translation()
		sx, sy := m.ColumnScales()
		p["x"] = x
		p["y"] = y
		p["position"] = document.Vec2{X: x, Y: y}
		p["rotation"] = m.RotationAngle()
		p["scaleX"] = sx
		p["scaleY"] = sy
	}
	if o.Style != nil {
		style := map[string]any{}
		if o.Style.Opacity != nil {
			style["opacity"] = *o.Style.Opacity
		}
		if o.Style.StrokeWidth != nil {
			style["strokeWidth"] = *o.Style.StrokeWidth
		}
		p["style"] = style
	}
	if o.Raster != nil {
		p["raster"] = map[string]any{
			"width":      float64(o.Raster.Width),
			"height":     float64(o.Raster.Height),
			"foreground": float64(o.Raster.Foreground()),
		}
	}
	if o.Geometry != nil {
		g := o.Geometry.props()
		p["geometry"] = g
		if v, ok := g["value"]; ok {
			p["value"] = v
		}
		if b, ok := g["bounds"]; ok {
			p["bounds"] = b
		}
	}
	return p
}

func (g *EvaluatedGeometry) props() map[string]any {
	p := map[string]any{
		"width":  g.Width,
		"height": g.Height,
		"radius": g.Radius,
		"size":   g.Size,
	}
	if g.Value != nil {
		p["value"] = *g.Value
	}
	if g.Bounds != nil {
		cx, cy := g.Bounds.Center()
		p["bounds"] = map[string]any{
			"x":      g.Bounds.X,
			"y":      g.Bounds.Y,
			"width":  g.Bounds.Width,
			"height": g.Bounds.Height,
			"center": document.Vec2{X: cx, Y: cy},
		}
	}
	if len(g.Points) > 0 {
		p["count"] = float64(len(g.Points))
	}
	return p
}
