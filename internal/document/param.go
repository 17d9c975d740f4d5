package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParamKind tags the form of a Param.
type ParamKind string

const (
	ParamConstant  ParamKind = "constant"
	ParamKeyframes ParamKind = "keyframes"
	ParamExpr      ParamKind = "expr"
)

// Interpolation selects how values between two keyframes are blended.
type Interpolation string

const (
	InterpolationStep   Interpolation = "step"
	InterpolationLinear Interpolation = "linear"
	InterpolationSmooth Interpolation = "smooth"
)

// Extrapolation selects the behavior outside the keyframe range.
type Extrapolation string

const (
	ExtrapolationClamp  Extrapolation = "clamp"
	ExtrapolationRepeat Extrapolation = "repeat"
)

// Keyframe is a (time, value) pair.
type Keyframe struct {
	T     float64
	Value Value
}

// Param is a value that may vary with time: a constant, a keyframe
// sequence ordered by ascending T, or a restricted expression over t.
type Param struct {
	Kind          ParamKind
	Value         Value
	Keys          []Keyframe
	Interpolation Interpolation
	Extrapolation Extrapolation
	Expr          string
}

// Const wraps a literal or reference as a constant param.
func Const(v Value) Param { return Param{Kind: ParamConstant, Value: v} }

// Number is a constant scalar param.
func Number(f float64) Param { return Const(Scalar(f)) }

// Vector is a constant Vec2 param.
func Vector(x, y float64) Param { return Const(Vec2{x, y}) }

// Ref is a constant reference param.
func Ref(targetID, targetProp string) Param {
	return Const(Reference{TargetID: targetID, TargetProp: targetProp})
}

// Keys builds a keyframe param.
func Keys(interp Interpolation, extrap Extrapolation, keys ...Keyframe) Param {
	return Param{Kind: ParamKeyframes, Keys: keys, Interpolation: interp, Extrapolation: extrap}
}

// Expression builds an expression param.
func Expression(src string) Param { return Param{Kind: ParamExpr, Expr: src} }

// References returns every reference held by the param.
func (p Param) References() []Reference {
	var refs []Reference
	if r, ok := p.Value.(Reference); ok {
		refs = append(refs, r)
	}
	for _, k := range p.Keys {
		if r, ok := k.Value.(Reference); ok {
			refs = append(refs, r)
		}
	}
	return refs
}

// Clone returns a copy that shares no slices with p.
func (p Param) Clone() Param {
	out := p
	if p.Keys != nil {
		out.Keys = make([]Keyframe, len(p.Keys))
		copy(out.Keys, p.Keys)
	}
	return out
}

// CloneParam copies an optional param.
func CloneParam(p *Param) *Param {
	if p == nil {
		return nil
	}
	c := p.Clone()
	return &c
}

type keyframeJSON struct {
	T     float64         `json:"t"`
	Value json.RawMessage `json:"value"`
}

type paramJSON struct {
	Kind          ParamKind       `json:"kind"`
	Value         json.RawMessage `json:"value,omitempty"`
	Keys          []keyframeJSON  `json:"keys,omitempty"`
	Interpolation Interpolation   `json:"interpolation,omitempty"`
	Extrapolation Extrapolation   `json:"extrapolation,omitempty"`
	Expr          string          `json:"expr,omitempty"`
}

// UnmarshalJSON accepts a bare literal (constant shorthand) or the
// structured {"kind": ...} form. An unrecognized kind is kept as-is and
// rejected at evaluation time.
func (p *Param) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var probe struct {
			Kind *ParamKind `json:"kind"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			return err
		}
		if probe.Kind != nil {
			return p.decodeStructured(data)
		}
	}

	v, err := DecodeValue(data)
	if err != nil {
		return fmt.Errorf("param: %w", err)
	}
	*p = Const(v)
	return nil
}

func (p *Param) decodeStructured(data []byte) error {
	var pj paramJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return fmt.Errorf("param: %w", err)
	}

	out := Param{
		Kind:          pj.Kind,
		Interpolation: pj.Interpolation,
		Extrapolation: pj.Extrapolation,
		Expr:          pj.Expr,
	}
	if len(pj.Value) > 0 {
		v, err := DecodeValue(pj.Value)
		if err != nil {
			return fmt.Errorf("param value: %w", err)
		}
		out.Value = v
	}
	if pj.Keys != nil {
		out.Keys = make([]Keyframe, 0, len(pj.Keys))
		for i, k := range pj.Keys {
			v, err := DecodeValue(k.Value)
			if err != nil {
				return fmt.Errorf("param key %d: %w", i, err)
			}
			out.Keys = append(out.Keys, Keyframe{T: k.T, Value: v})
		}
	}
	*p = out
	return nil
}

// MarshalJSON writes constants as bare literals and everything else in
// the structured form.
func (p Param) MarshalJSON() ([]byte, error) {
	if p.Kind == ParamConstant {
		return EncodeValue(p.Value)
	}

	pj := paramJSON{
		Kind:          p.Kind,
		Interpolation: p.Interpolation,
		Extrapolation: p.Extrapolation,
		Expr:          p.Expr,
	}
	if p.Value != nil {
		raw, err := EncodeValue(p.Value)
		if err != nil {
			return nil, err
		}
		pj.Value = raw
	}
	for _, k := range p.Keys {
		raw, err := EncodeValue(k.Value)
		if err != nil {
			return nil, err
		}
		pj.Keys = append(pj.Keys, keyframeJSON{T: k.T, Value: raw})
	}
	return json.Marshal(pj)
}

// TransformSpec holds the optional parts of an object transform. They
// compose as translate, rotate, scale, shear, matrix.
type TransformSpec struct {
	Translate *Param `json:"translate,omitempty"`
	Rotate    *Param `json:"rotate,omitempty"`
	Scale     *Param `json:"scale,omitempty"`
	Shear     *Param `json:"shear,omitempty"`
	Matrix    *Param `json:"matrix,omitempty"`
}

// MatrixTransform collapses a transform to a single constant matrix.
func MatrixTransform(m Matrix) TransformSpec {
	p := Const(m)
	return TransformSpec{Matrix: &p}
}

// Params returns the present parts in composition order.
func (ts TransformSpec) Params() []*Param {
	var out []*Param
	for _, p := range []*Param{ts.Translate, ts.Rotate, ts.Scale, ts.Shear, ts.Matrix} {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Clone deep-copies the transform.
func (ts TransformSpec) Clone() TransformSpec {
	return TransformSpec{
		Translate: CloneParam(ts.Translate),
		Rotate:    CloneParam(ts.Rotate),
		Scale:     CloneParam(ts.Scale),
		Shear:     CloneParam(ts.Shear),
		Matrix:    CloneParam(ts.Matrix),
	}
}
