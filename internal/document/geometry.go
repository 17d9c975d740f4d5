package document

import (
	"encoding/json"
	"fmt"
)

type GeometryType string

const (
	GeometryPoint    GeometryType = "point"
	GeometryLine     GeometryType = "line"
	GeometryPolyline GeometryType = "polyline"
	GeometryPolygon  GeometryType = "polygon"
	GeometryRect     GeometryType = "rect"
	GeometryCircle   GeometryType = "circle"
	GeometryText     GeometryType = "text"
	GeometryMath     GeometryType = "math"
)

// Geometry is a local-space geometry description. The set of
// implementations is closed.
type Geometry interface {
	GeometryType() GeometryType
	cloneGeometry() Geometry
}

// PointGeometry is a single point at the local origin.
type PointGeometry struct{}

// LineGeometry is a segment between two points.
type LineGeometry struct {
	Points [2]Vec2 `json:"points"`
}

// PolylineGeometry is an open point sequence.
type PolylineGeometry struct {
	Points []Vec2 `json:"points"`
}

// PolygonGeometry is a closed point sequence.
type PolygonGeometry struct {
	Points []Vec2 `json:"points"`
}

// RectGeometry is a rectangle centered on the local origin.
type RectGeometry struct {
	Width  Param `json:"width"`
	Height Param `json:"height"`
}

// CircleGeometry is a circle centered on the local origin.
type CircleGeometry struct {
	Radius Param `json:"radius"`
}

// TextGeometry is a run of text set in a font asset.
type TextGeometry struct {
	FontAsset string `json:"fontAsset"`
	Text      string `json:"text"`
	Size      Param  `json:"size"`
}

// MathGeometry is a numeric node: amp * sin(freq*input + phase).
// Input defaults to t. It has no visual geometry.
type MathGeometry struct {
	Amp   *Param `json:"amp,omitempty"`
	Freq  *Param `json:"freq,omitempty"`
	Phase *Param `json:"phase,omitempty"`
	Input *Param `json:"input,omitempty"`
}

func (PointGeometry) GeometryType() GeometryType    { return GeometryPoint }
func (LineGeometry) GeometryType() GeometryType     { return GeometryLine }
func (PolylineGeometry) GeometryType() GeometryType { return GeometryPolyline }
func (PolygonGeometry) GeometryType() GeometryType  { return GeometryPolygon }
func (RectGeometry) GeometryType() GeometryType     { return GeometryRect }
func (CircleGeometry) GeometryType() GeometryType   { return GeometryCircle }
func (TextGeometry) GeometryType() GeometryType     { return GeometryText }
func (MathGeometry) GeometryType() GeometryType     { return GeometryMath }

func (g PointGeometry) cloneGeometry() Geometry { return g }
func (g LineGeometry) cloneGeometry() Geometry  { return g }

func (g PolylineGeometry) cloneGeometry() Geometry {
	return PolylineGeometry{Points: append([]Vec2(nil), g.Points...)}
}

func (g PolygonGeometry) cloneGeometry() Geometry {
	return PolygonGeometry{Points: append([]Vec2(nil), g.Points...)}
}

func (g RectGeometry) cloneGeometry() Geometry {
	return RectGeometry{Width: g.Width.Clone(), Height: g.Height.Clone()}
}

func (g CircleGeometry) cloneGeometry() Geometry {
	return CircleGeometry{Radius: g.Radius.Clone()}
}

func (g TextGeometry) cloneGeometry() Geometry {
	g.Size = g.Size.Clone()
	return g
}

func (g MathGeometry) cloneGeometry() Geometry {
	return MathGeometry{
		Amp:   CloneParam(g.Amp),
		Freq:  CloneParam(g.Freq),
		Phase: CloneParam(g.Phase),
		Input: CloneParam(g.Input),
	}
}

// CloneGeometry deep-copies g. A nil geometry stays nil.
func CloneGeometry(g Geometry) Geometry {
	if g == nil {
		return nil
	}
	return g.cloneGeometry()
}

// MapGeometryParams returns a copy of g with fn applied to every param it
// holds. Geometries without params are returned unchanged.
func MapGeometryParams(g Geometry, fn func(Param) Param) Geometry {
	mapOpt := func(p *Param) *Param {
		if p == nil {
			return nil
		}
		v := fn(*p)
		return &v
	}

	switch geo := g.(type) {
	case RectGeometry:
		return RectGeometry{Width: fn(geo.Width), Height: fn(geo.Height)}
	case CircleGeometry:
		return CircleGeometry{Radius: fn(geo.Radius)}
	case TextGeometry:
		geo.Size = fn(geo.Size)
		return geo
	case MathGeometry:
		return MathGeometry{
			Amp:   mapOpt(geo.Amp),
			Freq:  mapOpt(geo.Freq),
			Phase: mapOpt(geo.Phase),
			Input: mapOpt(geo.Input),
		}
	default:
		return g
	}
}

// GeometryReferences lists the references held by g's params.
func GeometryReferences(g Geometry) []Reference {
	var refs []Reference
	MapGeometryParams(g, func(p Param) Param {
		refs = append(refs, p.References()...)
		return p
	})
	return refs
}

func (g PointGeometry) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"point"}`), nil
}

func (g LineGeometry) MarshalJSON() ([]byte, error) {
	type plain LineGeometry
	return marshalTagged(string(GeometryLine), plain(g))
}

func (g PolylineGeometry) MarshalJSON() ([]byte, error) {
	type plain PolylineGeometry
	return marshalTagged(string(GeometryPolyline), plain(g))
}

func (g PolygonGeometry) MarshalJSON() ([]byte, error) {
	type plain PolygonGeometry
	return marshalTagged(string(GeometryPolygon), plain(g))
}

func (g RectGeometry) MarshalJSON() ([]byte, error) {
	type plain RectGeometry
	return marshalTagged(string(GeometryRect), plain(g))
}

func (g CircleGeometry) MarshalJSON() ([]byte, error) {
	type plain CircleGeometry
	return marshalTagged(string(GeometryCircle), plain(g))
}

func (g TextGeometry) MarshalJSON() ([]byte, error) {
	type plain TextGeometry
	return marshalTagged(string(GeometryText), plain(g))
}

func (g MathGeometry) MarshalJSON() ([]byte, error) {
	type plain MathGeometry
	return marshalTagged(string(GeometryMath), plain(g))
}

// DecodeGeometry decodes a {"type": ...} geometry. Unknown types are a
// schema error.
func DecodeGeometry(raw json.RawMessage) (Geometry, error) {
	if isNull(raw) {
		return nil, nil
	}
	typ, err := peekType(raw)
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}

	switch GeometryType(typ) {
	case GeometryPoint:
		return PointGeometry{}, nil
	case GeometryLine:
		var g LineGeometry
		return decodeInto(raw, &g)
	case GeometryPolyline:
		var g PolylineGeometry
		return decodeInto(raw, &g)
	case GeometryPolygon:
		var g PolygonGeometry
		return decodeInto(raw, &g)
	case GeometryRect:
		var g RectGeometry
		return decodeInto(raw, &g)
	case GeometryCircle:
		var g CircleGeometry
		return decodeInto(raw, &g)
	case GeometryText:
		var g TextGeometry
		return decodeInto(raw, &g)
	case GeometryMath:
		var g MathGeometry
		return decodeInto(raw, &g)
	default:
		return nil, fmt.Errorf("%w: geometry type %q", ErrUnknownType, typ)
	}
}
