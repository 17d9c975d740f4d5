package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Scene is the full declarative description evaluated at a time t.
type Scene struct {
	Objects      []SceneObject `json:"objects"`
	Relations    []Relation    `json:"relations"`
	Generators   []Generator   `json:"generators"`
	Operators    []Operator    `json:"operators"`
	Assets       []Asset       `json:"assets"`
	Styles       []NamedStyle  `json:"styles"`
	RenderConfig RenderConfig  `json:"renderConfig"`
	Timeline     Timeline      `json:"timeline"`
}

type ObjectKind string

const (
	KindPrimitive ObjectKind = "primitive"
	KindText      ObjectKind = "text"
	KindPattern   ObjectKind = "pattern"
	KindComposite ObjectKind = "composite"
	KindMath      ObjectKind = "math"
)

// SceneObject is one authored (or derived) object. GeneratedBy is set on
// clones produced by a generator or relation; SourceID names the object
// they were cloned from.
type SceneObject struct {
	ID          string        `json:"id"`
	Kind        ObjectKind    `json:"kind"`
	Transform   TransformSpec `json:"transform"`
	Geometry    Geometry      `json:"geometry,omitempty"`
	Style       StyleSpec     `json:"style"`
	Visible     bool          `json:"visible"`
	GeneratedBy string        `json:"generatedBy,omitempty"`
	SourceID    string        `json:"sourceId,omitempty"`
}

// Style is a set of drawing attributes. Nil fields are unset.
type Style struct {
	Fill        *string  `json:"fill,omitempty"`
	Stroke      *string  `json:"stroke,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
}

// Merge returns s with every set field of o applied on top.
func (s Style) Merge(o Style) Style {
	if o.Fill != nil {
		s.Fill = o.Fill
	}
	if o.Stroke != nil {
		s.Stroke = o.Stroke
	}
	if o.StrokeWidth != nil {
		s.StrokeWidth = o.StrokeWidth
	}
	if o.Opacity != nil {
		s.Opacity = o.Opacity
	}
	return s
}

// Clone copies s so that no pointer is shared.
func (s Style) Clone() Style {
	var out Style
	if s.Fill != nil {
		v := *s.Fill
		out.Fill = &v
	}
	if s.Stroke != nil {
		v := *s.Stroke
		out.Stroke = &v
	}
	if s.StrokeWidth != nil {
		v := *s.StrokeWidth
		out.StrokeWidth = &v
	}
	if s.Opacity != nil {
		v := *s.Opacity
		out.Opacity = &v
	}
	return out
}

type StyleMode string

const (
	StyleInline StyleMode = "inline"
	StyleRef    StyleMode = "ref"
)

// StyleSpec is either an inline Style or a reference to a NamedStyle with
// optional overrides.
type StyleSpec struct {
	Mode      StyleMode
	Inline    Style
	RefID     string
	Overrides *Style
}

// InlineStyle wraps s as an inline style spec.
func InlineStyle(s Style) StyleSpec { return StyleSpec{Mode: StyleInline, Inline: s} }

// StyleRefTo references a named style.
func StyleRefTo(id string, overrides *Style) StyleSpec {
	return StyleSpec{Mode: StyleRef, RefID: id, Overrides: overrides}
}

func (s StyleSpec) MarshalJSON() ([]byte, error) {
	if s.Mode == StyleRef {
		return json.Marshal(struct {
			Mode      StyleMode `json:"mode"`
			RefID     string    `json:"refId"`
			Overrides *Style    `json:"overrides,omitempty"`
		}{StyleRef, s.RefID, s.Overrides})
	}
	return json.Marshal(s.Inline)
}

func (s *StyleSpec) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*s = StyleSpec{Mode: StyleInline}
		return nil
	}
	var probe struct {
		Mode      StyleMode `json:"mode"`
		RefID     string    `json:"refId"`
		Overrides *Style    `json:"overrides"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("style: %w", err)
	}
	if probe.Mode == StyleRef {
		*s = StyleSpec{Mode: StyleRef, RefID: probe.RefID, Overrides: probe.Overrides}
		return nil
	}
	var inline Style
	if err := json.Unmarshal(data, &inline); err != nil {
		return fmt.Errorf("style: %w", err)
	}
	*s = StyleSpec{Mode: StyleInline, Inline: inline}
	return nil
}

// Clone deep-copies the spec.
func (s StyleSpec) Clone() StyleSpec {
	out := s
	out.Inline = s.Inline.Clone()
	if s.Overrides != nil {
		o := s.Overrides.Clone()
		out.Overrides = &o
	}
	return out
}

// NamedStyle is a reusable style.
type NamedStyle struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Style Style  `json:"style"`
}

// Asset is an external resource (font, image) referenced by id.
type Asset struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RenderConfig is passed through to the drawing backend. RasterWidth and
// RasterHeight are the default rasterize resolution.
type RenderConfig struct {
	Width        int     `json:"width" mapstructure:"width"`
	Height       int     `json:"height" mapstructure:"height"`
	Background   string  `json:"background" mapstructure:"background"`
	PixelRatio   float64 `json:"pixelRatio,omitempty" mapstructure:"pixelRatio"`
	RasterWidth  int     `json:"rasterWidth,omitempty" mapstructure:"rasterWidth"`
	RasterHeight int     `json:"rasterHeight,omitempty" mapstructure:"rasterHeight"`
}

// Timeline describes playback of t.
type Timeline struct {
	Duration float64 `json:"duration"`
	FPS      int     `json:"fps"`
	Loop     bool    `json:"loop"`
}

type sceneJSON struct {
	Objects      []SceneObject     `json:"objects"`
	Relations    []json.RawMessage `json:"relations"`
	Generators   []json.RawMessage `json:"generators"`
	Operators    []json.RawMessage `json:"operators"`
	Assets       []Asset           `json:"assets"`
	Styles       []NamedStyle      `json:"styles"`
	RenderConfig RenderConfig      `json:"renderConfig"`
	Timeline     Timeline          `json:"timeline"`
}

func (s *Scene) UnmarshalJSON(data []byte) error {
	var sj sceneJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return err
	}

	out := Scene{
		Objects:      sj.Objects,
		Assets:       sj.Assets,
		Styles:       sj.Styles,
		RenderConfig: sj.RenderConfig,
		Timeline:     sj.Timeline,
	}
	for i, raw := range sj.Relations {
		r, err := DecodeRelation(raw)
		if err != nil {
			return fmt.Errorf("relations[%d]: %w", i, err)
		}
		out.Relations = append(out.Relations, r)
	}
	for i, raw := range sj.Generators {
		g, err := DecodeGenerator(raw)
		if err != nil {
			return fmt.Errorf("generators[%d]: %w", i, err)
		}
		out.Generators = append(out.Generators, g)
	}
	for i, raw := range sj.Operators {
		o, err := DecodeOperator(raw)
		if err != nil {
			return fmt.Errorf("operators[%d]: %w", i, err)
		}
		out.Operators = append(out.Operators, o)
	}

	*s = out
	return nil
}

type objectJSON struct {
	ID          string          `json:"id"`
	Kind        ObjectKind      `json:"kind"`
	Transform   TransformSpec   `json:"transform"`
	Geometry    json.RawMessage `json:"geometry"`
	Style       StyleSpec       `json:"style"`
	Visible     *bool           `json:"visible"`
	GeneratedBy string          `json:"generatedBy"`
	SourceID    string          `json:"sourceId"`
}

// UnmarshalJSON decodes the tagged geometry. Visible defaults to true.
func (o *SceneObject) UnmarshalJSON(data []byte) error {
	var oj objectJSON
	if err := json.Unmarshal(data, &oj); err != nil {
		return err
	}
	geo, err := DecodeGeometry(oj.Geometry)
	if err != nil {
		return fmt.Errorf("object %s: %w", oj.ID, err)
	}

	visible := true
	if oj.Visible != nil {
		visible = *oj.Visible
	}
	if oj.Style.Mode == "" {
		oj.Style.Mode = StyleInline
	}

	*o = SceneObject{
		ID:          oj.ID,
		Kind:        oj.Kind,
		Transform:   oj.Transform,
		Geometry:    geo,
		Style:       oj.Style,
		Visible:     visible,
		GeneratedBy: oj.GeneratedBy,
		SourceID:    oj.SourceID,
	}
	return nil
}

// ParseScene decodes a scene from JSON.
func ParseScene(data []byte) (*Scene, error) {
	var s Scene
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	return &s, nil
}

// Clone returns an independently owned copy of the object: geometry,
// transform, and style share nothing with o.
func (o SceneObject) Clone() SceneObject {
	out := o
	out.Transform = o.Transform.Clone()
	out.Geometry = CloneGeometry(o.Geometry)
	out.Style = o.Style.Clone()
	return out
}

// CloneObjects returns a deep copy of the object list.
func (s *Scene) CloneObjects() []SceneObject {
	out := make([]SceneObject, len(s.Objects))
	for i := range s.Objects {
		out[i] = s.Objects[i].Clone()
	}
	return out
}

// References lists every reference held by the object's params.
func (o SceneObject) References() []Reference {
	var refs []Reference
	for _, p := range o.Transform.Params() {
		refs = append(refs, p.References()...)
	}
	refs = append(refs, GeometryReferences(o.Geometry)...)
	return refs
}

// StyleByID looks up a named style.
func (s *Scene) StyleByID(id string) (NamedStyle, bool) {
	for _, st := range s.Styles {
		if st.ID == id {
			return st, true
		}
	}
	return NamedStyle{}, false
}

// AssetByID looks up an asset.
func (s *Scene) AssetByID(id string) (Asset, bool) {
	for _, a := range s.Assets {
		if a.ID == id {
			return a, true
		}
	}
	return Asset{}, false
}

// NewEmptyScene creates an empty scene for a new project.
func NewEmptyScene() *Scene {
	return &Scene{
		Objects:    []SceneObject{},
		Relations:  []Relation{},
		Generators: []Generator{},
		Operators:  []Operator{},
		Assets:     []Asset{},
		Styles:     []NamedStyle{},
		RenderConfig: RenderConfig{
			Width:      1280,
			Height:     720,
			Background: "#1a1a2e",
		},
		Timeline: Timeline{
			Duration: 2,
			FPS:      24,
			Loop:     true,
		},
	}
}
