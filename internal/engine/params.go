package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/expr"
)

// ErrInvalidParam is returned for params that cannot be evaluated at all:
// unknown kind, empty keyframe list, bad expression, wrong value shape.
var ErrInvalidParam = errors.New("invalid param")

// EvaluateParam resolves p at time t. References must have been replaced
// by literals before this is called.
func EvaluateParam(p document.Param, t float64) (document.Value, error) {
	switch p.Kind {
	case document.ParamConstant:
		if p.Value == nil {
			return nil, fmt.Errorf("%w: constant without value", ErrInvalidParam)
		}
		if ref, ok := p.Value.(document.Reference); ok {
			return nil, fmt.Errorf("%w: unresolved reference %s", ErrInvalidParam, ref)
		}
		return p.Value, nil

	case document.ParamKeyframes:
		return evaluateKeyframes(p, t)

	case document.ParamExpr:
		e, err := expr.Parse(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParam, err)
		}
		return document.Scalar(e.Eval(t)), nil

	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidParam, p.Kind)
	}
}

func evaluateKeyframes(p document.Param, t float64) (document.Value, error) {
	keys := p.Keys
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: empty keyframe list", ErrInvalidParam)
	}
	first, last := keys[0], keys[len(keys)-1]

	// Repeat wraps into [first.T, last.T), so last.T itself reads the
	// first key and f(t + period) == f(t) holds on key boundaries too.
	if p.Extrapolation == document.ExtrapolationRepeat && (t < first.T || t >= last.T) {
		if period := last.T - first.T; period > 0 {
			t = first.T + positiveMod(t-first.T, period)
		}
	}

	if t <= first.T {
		return literal(first.Value)
	}
	if t >= last.T {
		return literal(last.Value)
	}

	// First key strictly after t; the segment is [i-1, i].
	i := sort.Search(len(keys), func(i int) bool { return keys[i].T > t })
	k0, k1 := keys[i-1], keys[i]

	u := 0.0
	if d := k1.T - k0.T; d > 0 {
		u = (t - k0.T) / d
	}

	switch p.Interpolation {
	case document.InterpolationStep:
		return literal(k0.Value)
	case document.InterpolationSmooth:
		u = u * u * (3 - 2*u)
	}
	return lerpValue(k0.Value, k1.Value, u)
}

func positiveMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

func literal(v document.Value) (document.Value, error) {
	switch v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: keyframe without value", ErrInvalidParam)
	case document.Reference:
		return nil, fmt.Errorf("%w: unresolved reference %s", ErrInvalidParam, v)
	}
	return v, nil
}

func lerp(a, b, u float64) float64 { return a + (b-a)*u }

// lerpValue blends scalars and vectors component-wise. Any other pair
// falls back to the nearer key.
func lerpValue(a, b document.Value, u float64) (document.Value, error) {
	if _, err := literal(a); err != nil {
		return nil, err
	}
	if _, err := literal(b); err != nil {
		return nil, err
	}

	switch av := a.(type) {
	case document.Scalar:
		if bv, ok := b.(document.Scalar); ok {
			return document.Scalar(lerp(float64(av), float64(bv), u)), nil
		}
	case document.Vec2:
		if bv, ok := b.(document.Vec2); ok {
			return document.Vec2{X: lerp(av.X, bv.X, u), Y: lerp(av.Y, bv.Y, u)}, nil
		}
	}
	if u < 0.5 {
		return a, nil
	}
	return b, nil
}

// AsScalar coerces a value to a number.
func AsScalar(v document.Value) (float64, bool) {
	s, ok := v.(document.Scalar)
	return float64(s), ok
}

// AsVec2 coerces a value to a vector. A scalar s becomes (s, s).
func AsVec2(v document.Value) (document.Vec2, bool) {
	switch val := v.(type) {
	case document.Vec2:
		return val, true
	case document.Scalar:
		return document.Vec2{X: float64(val), Y: float64(val)}, true
	}
	return document.Vec2{}, false
}

// scalarAt evaluates an optional numeric param, returning def when absent.
func scalarAt(p *document.Param, t, def float64) (float64, error) {
	if p == nil {
		return def, nil
	}
	v, err := EvaluateParam(*p, t)
	if err != nil {
		return 0, err
	}
	f, ok := AsScalar(v)
	if !ok {
		return 0, fmt.Errorf("%w: want number, got %T", ErrInvalidParam, v)
	}
	return f, nil
}

// vecAt evaluates an optional vector param, returning def when absent.
func vecAt(p *document.Param, t float64, def document.Vec2) (document.Vec2, error) {
	if p == nil {
		return def, nil
	}
	v, err := EvaluateParam(*p, t)
	if err != nil {
		return document.Vec2{}, err
	}
	vec, ok := AsVec2(v)
	if !ok {
		return document.Vec2{}, fmt.Errorf("%w: want vector, got %T", ErrInvalidParam, v)
	}
	return vec, nil
}
