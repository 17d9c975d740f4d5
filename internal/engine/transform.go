package engine

import (
	"fmt"

	"github.com/inamate/genscene/internal/document"
)

// EvaluateTransform composes the present parts of ts at time t as
// translate * rotate * scale * shear * matrix. Rotation is in radians.
func EvaluateTransform(ts document.TransformSpec, t float64) (Matrix2D, error) {
	m := Identity()

	if ts.Translate != nil {
		v, err := vecAt(ts.Translate, t, document.Vec2{})
		if err != nil {
			return m, fmt.Errorf("translate: %w", err)
		}
		m = m.Multiply(Translate(v.X, v.Y))
	}
	if ts.Rotate != nil {
		r, err := scalarAt(ts.Rotate, t, 0)
		if err != nil {
			return m, fmt.Errorf("rotate: %w", err)
		}
		m = m.Multiply(Rotate(r))
	}
	if ts.Scale != nil {
		s, err := vecAt(ts.Scale, t, document.Vec2{X: 1, Y: 1})
		if err != nil {
			return m, fmt.Errorf("scale: %w", err)
		}
		m = m.Multiply(Scale(s.X, s.Y))
	}
	if ts.Shear != nil {
		sh, err := vecAt(ts.Shear, t, document.Vec2{})
		if err != nil {
			return m, fmt.Errorf("shear: %w", err)
		}
		m = m.Multiply(Shear(sh.X, sh.Y))
	}
	if ts.Matrix != nil {
		v, err := EvaluateParam(*ts.Matrix, t)
		if err != nil {
			return m, fmt.Errorf("matrix: %w", err)
		}
		mv, ok := v.(document.Matrix)
		if !ok {
			return m, fmt.Errorf("matrix: %w: want matrix, got %T", ErrInvalidParam, v)
		}
		m = m.Multiply(Matrix2D(mv))
	}

	return m, nil
}
