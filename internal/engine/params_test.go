package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/genscene/internal/document"
)

func scalarKeys(interp document.Interpolation, extrap document.Extrapolation) document.Param {
	return document.Keys(interp, extrap,
		document.Keyframe{T: 0, Value: document.Scalar(1)},
		document.Keyframe{T: 1, Value: document.Scalar(5)},
		document.Keyframe{T: 3, Value: document.Scalar(-2)},
	)
}

func evalScalar(t *testing.T, p document.Param, tv float64) float64 {
	t.Helper()
	v, err := EvaluateParam(p, tv)
	require.NoError(t, err)
	f, ok := AsScalar(v)
	require.True(t, ok, "want scalar, got %T", v)
	return f
}

func TestEvaluateParamConstant(t *testing.T) {
	v, err := EvaluateParam(document.Vector(3, 4), 99)
	require.NoError(t, err)
	assert.Equal(t, document.Vec2{X: 3, Y: 4}, v)
}

func TestKeyframesExactTimes(t *testing.T) {
	interps := []document.Interpolation{
		document.InterpolationStep,
		document.InterpolationLinear,
		document.InterpolationSmooth,
	}
	for _, interp := range interps {
		p := scalarKeys(interp, document.ExtrapolationClamp)
		for _, k := range p.Keys {
			assert.Equal(t, float64(k.Value.(document.Scalar)), evalScalar(t, p, k.T), "%s at %v", interp, k.T)
		}

		// Under repeat the last key time starts the next cycle.
		p = scalarKeys(interp, document.ExtrapolationRepeat)
		for _, k := range p.Keys[:len(p.Keys)-1] {
			assert.Equal(t, float64(k.Value.(document.Scalar)), evalScalar(t, p, k.T), "%s/repeat at %v", interp, k.T)
		}
		assert.Equal(t, 1.0, evalScalar(t, p, 3), "%s/repeat at last key", interp)
	}
}

func TestKeyframesInterpolation(t *testing.T) {
	tests := []struct {
		name   string
		interp document.Interpolation
		t      float64
		want   float64
	}{
		{"step holds lower", document.InterpolationStep, 0.9, 1},
		{"linear midpoint", document.InterpolationLinear, 0.5, 3},
		{"linear second segment", document.InterpolationLinear, 2, 1.5},
		{"smooth midpoint", document.InterpolationSmooth, 0.5, 3},
		{"smooth quarter", document.InterpolationSmooth, 0.25, 1 + 4*0.15625},
		{"default is linear", "", 0.25, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := scalarKeys(tt.interp, document.ExtrapolationClamp)
			assert.InDelta(t, tt.want, evalScalar(t, p, tt.t), 1e-12)
		})
	}
}

func TestKeyframesClamp(t *testing.T) {
	p := scalarKeys(document.InterpolationLinear, document.ExtrapolationClamp)
	assert.Equal(t, 1.0, evalScalar(t, p, -10))
	assert.Equal(t, -2.0, evalScalar(t, p, 42))
}

func TestKeyframesRepeatIsPeriodic(t *testing.T) {
	p := scalarKeys(document.InterpolationSmooth, document.ExtrapolationRepeat)
	const period = 3.0
	for _, tv := range []float64{0, 1, 3, 6, -3, 0.25, 0.5, 1.7, 2.9, -0.4, -5.5, 7.1} {
		assert.InDelta(t, evalScalar(t, p, tv), evalScalar(t, p, tv+period), 1e-9, "t=%v", tv)
	}
}

func TestKeyframesRepeatKeyBoundary(t *testing.T) {
	p := document.Keys(document.InterpolationLinear, document.ExtrapolationRepeat,
		document.Keyframe{T: 0, Value: document.Scalar(0)},
		document.Keyframe{T: 1, Value: document.Scalar(10)},
	)
	for _, tv := range []float64{-2, -1, 0, 1, 2, 3} {
		assert.Equal(t, 0.0, evalScalar(t, p, tv), "t=%v", tv)
	}
	assert.InDelta(t, 5.0, evalScalar(t, p, 1.5), 1e-12)
	assert.InDelta(t, 9.0, evalScalar(t, p, 0.9), 1e-12)
}

func TestKeyframesRepeatZeroPeriodFallsBackToClamp(t *testing.T) {
	p := document.Keys(document.InterpolationLinear, document.ExtrapolationRepeat,
		document.Keyframe{T: 2, Value: document.Scalar(7)},
	)
	assert.Equal(t, 7.0, evalScalar(t, p, -3))
	assert.Equal(t, 7.0, evalScalar(t, p, 30))
}

func TestKeyframesVectorAndFallback(t *testing.T) {
	vec := document.Keys(document.InterpolationLinear, document.ExtrapolationClamp,
		document.Keyframe{T: 0, Value: document.Vec2{X: 0, Y: 10}},
		document.Keyframe{T: 2, Value: document.Vec2{X: 4, Y: 0}},
	)
	v, err := EvaluateParam(vec, 1)
	require.NoError(t, err)
	assert.Equal(t, document.Vec2{X: 2, Y: 5}, v)

	text := document.Keys(document.InterpolationLinear, document.ExtrapolationClamp,
		document.Keyframe{T: 0, Value: document.Text("a")},
		document.Keyframe{T: 1, Value: document.Text("b")},
	)
	v, err = EvaluateParam(text, 0.4)
	require.NoError(t, err)
	assert.Equal(t, document.Text("a"), v)
	v, err = EvaluateParam(text, 0.6)
	require.NoError(t, err)
	assert.Equal(t, document.Text("b"), v)
}

func TestEvaluateParamExpression(t *testing.T) {
	assert.InDelta(t, 3.0, evalScalar(t, document.Expression("t * 2"), 1.5), 1e-12)
	assert.InDelta(t, 1.0, evalScalar(t, document.Expression("sin(PI / 2)"), 0), 1e-12)
}

func TestEvaluateParamInvalid(t *testing.T) {
	tests := []struct {
		name  string
		param document.Param
	}{
		{"unknown kind", document.Param{Kind: "spline"}},
		{"missing kind", document.Param{}},
		{"empty keyframes", document.Keys(document.InterpolationLinear, document.ExtrapolationClamp)},
		{"bad expression", document.Expression("alert(1)")},
		{"constant without value", document.Param{Kind: document.ParamConstant}},
		{"unresolved reference", document.Ref("a", "x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvaluateParam(tt.param, 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidParam), "got %v", err)
		})
	}
}

func TestEvaluateTransformOrder(t *testing.T) {
	tr := document.Vector(10, 0)
	rot := document.Number(math.Pi / 2)
	m, err := EvaluateTransform(document.TransformSpec{Translate: &tr, Rotate: &rot}, 0)
	require.NoError(t, err)

	// Rotation applies first, then translation.
	x, y := m.TransformPoint(1, 0)
	assert.InDelta(t, 10, x, 1e-12)
	assert.InDelta(t, 1, y, 1e-12)
}

func TestEvaluateTransformParts(t *testing.T) {
	t.Run("scalar scale is uniform", func(t *testing.T) {
		s := document.Number(3)
		m, err := EvaluateTransform(document.TransformSpec{Scale: &s}, 0)
		require.NoError(t, err)
		assert.Equal(t, Scale(3, 3), m)
	})

	t.Run("shear", func(t *testing.T) {
		sh := document.Vector(0.5, 0)
		m, err := EvaluateTransform(document.TransformSpec{Shear: &sh}, 0)
		require.NoError(t, err)
		x, y := m.TransformPoint(0, 2)
		assert.Equal(t, 1.0, x)
		assert.Equal(t, 2.0, y)
	})

	t.Run("matrix is applied last", func(t *testing.T) {
		tr := document.Vector(5, 5)
		ts := document.MatrixTransform(document.Matrix{2, 0, 0, 2, 1, 1})
		ts.Translate = &tr
		m, err := EvaluateTransform(ts, 0)
		require.NoError(t, err)
		x, y := m.TransformPoint(1, 1)
		assert.Equal(t, 8.0, x)
		assert.Equal(t, 8.0, y)
	})

	t.Run("empty spec is identity", func(t *testing.T) {
		m, err := EvaluateTransform(document.TransformSpec{}, 0)
		require.NoError(t, err)
		assert.True(t, m.IsIdentity())
	})

	t.Run("wrong value shape", func(t *testing.T) {
		r := document.Vector(1, 2)
		_, err := EvaluateTransform(document.TransformSpec{Rotate: &r}, 0)
		assert.ErrorIs(t, err, ErrInvalidParam)
	})
}

func TestMatrixHelpers(t *testing.T) {
	m := Translate(3, 4).Multiply(Rotate(0.7)).Multiply(Scale(2, 5))
	assert.InDelta(t, 0.7, m.RotationAngle(), 1e-12)
	sx, sy := m.ColumnScales()
	assert.InDelta(t, 2, sx, 1e-12)
	assert.InDelta(t, 5, sy, 1e-12)

	x, y := m.Multiply(m.Invert()).TransformPoint(9, -2)
	assert.InDelta(t, 9, x, 1e-9)
	assert.InDelta(t, -2, y, 1e-9)

	_, ok := BoundsOf(nil)
	assert.False(t, ok)
	b, ok := BoundsOf([]Point{{X: 1, Y: 5}, {X: -2, Y: 3}})
	require.True(t, ok)
	assert.Equal(t, Rect{X: -2, Y: 3, Width: 3, Height: 2}, b)
}
