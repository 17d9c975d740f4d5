package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inamate/genscene/internal/document"
)

// Test helper functions shared across engine tests.

type objectOption func(*document.SceneObject)

func at(x, y float64) objectOption {
	return func(o *document.SceneObject) {
		p := document.Vector(x, y)
		o.Transform.Translate = &p
	}
}

func rotated(r float64) objectOption {
	return func(o *document.SceneObject) {
		p := document.Number(r)
		o.Transform.Rotate = &p
	}
}

func hidden() objectOption {
	return func(o *document.SceneObject) { o.Visible = false }
}

func kind(k document.ObjectKind) objectOption {
	return func(o *document.SceneObject) { o.Kind = k }
}

func object(id string, geo document.Geometry, opts ...objectOption) document.SceneObject {
	o := document.SceneObject{
		ID:       id,
		Kind:     document.KindPrimitive,
		Geometry: geo,
		Style:    document.InlineStyle(document.Style{}),
		Visible:  true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func rect(w, h float64) document.RectGeometry {
	return document.RectGeometry{Width: document.Number(w), Height: document.Number(h)}
}

func circleGeo(r float64) document.CircleGeometry {
	return document.CircleGeometry{Radius: document.Number(r)}
}

func newScene(objs ...document.SceneObject) *document.Scene {
	s := document.NewEmptyScene()
	s.Objects = objs
	return s
}

func evaluate(t *testing.T, s *document.Scene, tv float64) *RenderResult {
	t.Helper()
	res, err := Evaluate(s, tv, nil)
	require.NoError(t, err)
	return res
}

func mustObject(t *testing.T, res *RenderResult, id string) *EvaluatedObject {
	t.Helper()
	o, ok := res.Object(id)
	require.True(t, ok, "object %q not emitted", id)
	return o
}

func translation(t *testing.T, o *EvaluatedObject) (float64, float64) {
	t.Helper()
	require.NotNil(t, o.Transform, "object %q has no transform", o.ObjectID)
	return o.Transform.Translation()
}

func generatedBy(res *RenderResult, ruleID string) []EvaluatedObject {
	var out []EvaluatedObject
	for _, o := range res.Objects {
		if o.GeneratedBy == ruleID {
			out = append(out, o)
		}
	}
	return out
}
