package engine

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/graph"
)

func countContaining(warnings []string, sub string) int {
	n := 0
	for _, w := range warnings {
		if strings.Contains(w, sub) {
			n++
		}
	}
	return n
}

func TestEvaluateNilScene(t *testing.T) {
	_, err := Evaluate(nil, 0, nil)
	assert.ErrorIs(t, err, ErrNilScene)
}

func TestEvaluateFollowPathMidpoint(t *testing.T) {
	s := newScene(
		object("box", rect(100, 100)),
		object("path", document.PolylineGeometry{Points: []document.Vec2{{X: 0, Y: 0}, {X: 100, Y: 0}}}),
	)
	s.Relations = []document.Relation{
		document.FollowPathRelation{
			RelationMeta: document.RelationMeta{ID: "follow", Enabled: true},
			Object:       "box",
			Path:         "path",
			U:            document.Number(0.5),
		},
	}

	res := evaluate(t, s, 0)
	x, y := translation(t, mustObject(t, res, "box"))
	assert.InDelta(t, 50, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)
	assert.Empty(t, res.Warnings)
}

func TestEvaluateFollowPathTangent(t *testing.T) {
	s := newScene(
		object("box", rect(10, 10), rotated(1)),
		object("path", document.PolygonGeometry{Points: []document.Vec2{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}}}),
	)
	s.Relations = []document.Relation{
		document.FollowPathRelation{
			RelationMeta: document.RelationMeta{ID: "follow", Enabled: true},
			Object:       "box",
			Path:         "path",
			U:            document.Number(0.25),
			TangentAlign: true,
		},
	}

	res := evaluate(t, s, 0)
	box := mustObject(t, res, "box")
	x, y := translation(t, box)
	// Closed polygon has three segments; u=0.25 is 3/4 along the first.
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, 7.5, y, 1e-9)
	// Tangent rotation composes with the object's own rotation.
	assert.InDelta(t, math.Pi/2+1, box.Transform.RotationAngle(), 1e-9)
}

func TestEvaluateGridGenerator(t *testing.T) {
	s := newScene(object("p", document.PointGeometry{}))
	s.Generators = []document.Generator{
		document.GridGenerator{
			GeneratorMeta: document.GeneratorMeta{ID: "g", Source: "p"},
			A:             document.Vector(10, 0),
			B:             document.Vector(0, 10),
			I:             document.IntRange{0, 1},
			J:             document.IntRange{0, 1},
		},
	}

	res := evaluate(t, s, 0)
	clones := generatedBy(res, "g")
	require.Len(t, clones, 4)

	want := []Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}}
	for k, c := range clones {
		assert.Equal(t, CloneID("p", "g", k), c.ObjectID)
		require.NotNil(t, c.Geometry)
		require.Len(t, c.Geometry.Points, 1)
		assert.InDelta(t, want[k].X, c.Geometry.Points[0].X, 1e-9)
		assert.InDelta(t, want[k].Y, c.Geometry.Points[0].Y, 1e-9)
	}
}

func TestEvaluateGridEmptyRange(t *testing.T) {
	s := newScene(object("p", document.PointGeometry{}))
	s.Generators = []document.Generator{
		document.GridGenerator{
			GeneratorMeta: document.GeneratorMeta{ID: "g", Source: "p"},
			A:             document.Vector(1, 0),
			B:             document.Vector(0, 1),
			I:             document.IntRange{3, 1},
			J:             document.IntRange{0, 0},
		},
	}

	res := evaluate(t, s, 0)
	assert.Empty(t, generatedBy(res, "g"))
	assert.Equal(t, 1, countContaining(res.Warnings, "[g]"))
}

func TestEvaluateInstanceGenerator(t *testing.T) {
	s := newScene(object("src", rect(2, 2), at(10, 0)))
	s.Generators = []document.Generator{
		document.InstanceGenerator{
			GeneratorMeta: document.GeneratorMeta{ID: "inst", Source: "src"},
			Transforms: []document.TransformSpec{
				{Translate: ptr(document.Vector(0, 5))},
				{Rotate: ptr(document.Number(math.Pi))},
			},
		},
	}

	res := evaluate(t, s, 0)
	clones := generatedBy(res, "inst")
	require.Len(t, clones, 2)

	x, y := clones[0].Transform.Translation()
	assert.InDelta(t, 10, x, 1e-9)
	assert.InDelta(t, 5, y, 1e-9)
	assert.InDelta(t, math.Pi, clones[1].Transform.RotationAngle(), 1e-9)
}

func TestEvaluateRadialGenerator(t *testing.T) {
	s := newScene(object("petal", rect(2, 2)))
	s.Generators = []document.Generator{
		document.RadialGenerator{
			GeneratorMeta: document.GeneratorMeta{ID: "ring", Source: "petal"},
			Count:         4,
			Radius:        document.Number(10),
		},
	}

	res := evaluate(t, s, 0)
	clones := generatedBy(res, "ring")
	require.Len(t, clones, 4)

	want := []Point{{X: 10, Y: 0}, {X: 0, Y: 10}, {X: -10, Y: 0}, {X: 0, Y: -10}}
	for k, c := range clones {
		x, y := c.Transform.Translation()
		assert.InDelta(t, want[k].X, x, 1e-9, "clone %d", k)
		assert.InDelta(t, want[k].Y, y, 1e-9, "clone %d", k)
	}
}

func TestEvaluateGeneratorWarnings(t *testing.T) {
	s := newScene(object("p", document.PointGeometry{}))
	s.Generators = []document.Generator{
		document.GridGenerator{GeneratorMeta: document.GeneratorMeta{ID: "lost", Source: "nobody"}},
		document.UnknownGenerator{GeneratorMeta: document.GeneratorMeta{ID: "fancy", Source: "p"}, Type: "voronoi"},
	}

	res := evaluate(t, s, 0)
	assert.Equal(t, 1, countContaining(res.Warnings, "nobody"))
	assert.Equal(t, 1, countContaining(res.Warnings, "voronoi"))
	assert.Len(t, res.Objects, 1)
}

func TestEvaluateAttach(t *testing.T) {
	s := newScene(
		object("parent", rect(10, 10), at(100, 0), rotated(math.Pi/2)),
		object("child", rect(2, 2), at(999, 999)),
	)
	offset := document.Vector(10, 0)
	s.Relations = []document.Relation{
		document.AttachRelation{
			RelationMeta:    document.RelationMeta{ID: "pin", Enabled: true},
			Parent:          "parent",
			Child:           "child",
			Offset:          &offset,
			InheritRotation: true,
		},
	}

	res := evaluate(t, s, 0)
	x, y := translation(t, mustObject(t, res, "child"))
	assert.InDelta(t, 100, x, 1e-9)
	assert.InDelta(t, 10, y, 1e-9)
}

func TestEvaluateDisabledRelationIsSkipped(t *testing.T) {
	s := newScene(
		object("parent", rect(10, 10), at(100, 0)),
		object("child", rect(2, 2), at(5, 5)),
	)
	s.Relations = []document.Relation{
		document.AttachRelation{
			RelationMeta: document.RelationMeta{ID: "pin", Enabled: false},
			Parent:       "parent",
			Child:        "child",
		},
	}

	res := evaluate(t, s, 0)
	x, y := translation(t, mustObject(t, res, "child"))
	assert.Equal(t, 5.0, x)
	assert.Equal(t, 5.0, y)
}

func TestComposeInheritance(t *testing.T) {
	parent := Translate(3, 4).Multiply(Rotate(0.5)).Multiply(Scale(2, 3))

	tests := []struct {
		name      string
		rot, scl  bool
		wantAngle float64
		wantScale [2]float64
	}{
		{"translation only", false, false, 0, [2]float64{1, 1}},
		{"rotation", true, false, 0.5, [2]float64{1, 1}},
		{"scale", false, true, 0, [2]float64{2, 3}},
		{"full", true, true, 0.5, [2]float64{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := composeInheritance(parent, tt.rot, tt.scl)
			x, y := m.Translation()
			assert.InDelta(t, 3, x, 1e-12)
			assert.InDelta(t, 4, y, 1e-12)
			assert.InDelta(t, tt.wantAngle, m.RotationAngle(), 1e-12)
			sx, sy := m.ColumnScales()
			assert.InDelta(t, tt.wantScale[0], sx, 1e-12)
			assert.InDelta(t, tt.wantScale[1], sy, 1e-12)
		})
	}
}

func TestEvaluateAlign(t *testing.T) {
	tests := []struct {
		name   string
		anchor document.Anchor
		wantX  float64
		wantY  float64
		warns  int
	}{
		{"center", document.AnchorCenter, 50, 50, 0},
		{"top left", document.AnchorTopLeft, 45, 45, 0},
		{"unknown anchor falls back to center", "baseline", 50, 50, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScene(
				object("a", rect(10, 10)),
				object("b", rect(20, 20), at(50, 50)),
			)
			s.Relations = []document.Relation{
				document.AlignRelation{
					RelationMeta: document.RelationMeta{ID: "snap", Enabled: true},
					A:            "a",
					B:            "b",
					Anchor:       tt.anchor,
				},
			}

			res := evaluate(t, s, 0)
			a := mustObject(t, res, "a")
			x, y := translation(t, a)
			assert.InDelta(t, tt.wantX, x, 1e-9)
			assert.InDelta(t, tt.wantY, y, 1e-9)
			assert.Len(t, res.Warnings, tt.warns)
		})
	}
}

func TestEvaluateRepeat(t *testing.T) {
	s := newScene(object("step", rect(4, 4), at(10, 10)))
	s.Relations = []document.Relation{
		document.RepeatRelation{
			RelationMeta: document.RelationMeta{ID: "stairs", Enabled: true},
			Object:       "step",
			Count:        4,
			Delta:        document.TransformSpec{Translate: ptr(document.Vector(5, -2))},
		},
	}

	res := evaluate(t, s, 0)
	clones := generatedBy(res, "stairs")
	require.Len(t, clones, 3)
	for i, c := range clones {
		k := i + 1
		assert.Equal(t, CloneID("step", "stairs", k), c.ObjectID)
		x, y := c.Transform.Translation()
		assert.InDelta(t, 10+5*float64(k), x, 1e-9)
		assert.InDelta(t, 10-2*float64(k), y, 1e-9)
	}
}

func TestEvaluateRelationWarnings(t *testing.T) {
	s := newScene(object("a", rect(1, 1)))
	s.Relations = []document.Relation{
		document.AttachRelation{
			RelationMeta: document.RelationMeta{ID: "dangling", Enabled: true},
			Parent:       "ghost",
			Child:        "a",
		},
		document.UnknownRelation{
			RelationMeta: document.RelationMeta{ID: "wobble", Enabled: true},
			Type:         "spring",
		},
	}

	res := evaluate(t, s, 0)
	assert.Equal(t, 1, countContaining(res.Warnings, "[dangling]"))
	assert.Equal(t, 1, countContaining(res.Warnings, "spring"))
}

func TestEvaluateMissingReference(t *testing.T) {
	s := newScene(object("r", document.RectGeometry{Width: document.Ref("ghost", "x"), Height: document.Number(1)}))

	res := evaluate(t, s, 0)
	r := mustObject(t, res, "r")
	assert.Equal(t, 0.0, r.Geometry.Width)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "ghost")
	assert.Equal(t, res.Warnings, r.Warnings)
}

func TestEvaluateReferences(t *testing.T) {
	s := newScene(
		// Listed before its target; ranking evaluates "a" first.
		object("b", document.RectGeometry{
			Width:  document.Ref("a", "x"),
			Height: document.Ref("a", "geometry.height"),
		}),
		object("a", rect(4, 6), at(7, 3)),
		object("clock", document.RectGeometry{
			Width:  document.Ref(TimeObjectID, "t"),
			Height: document.Ref(TimeObjectID, ""),
		}),
	)

	res := evaluate(t, s, 2)
	b := mustObject(t, res, "b")
	assert.Equal(t, 7.0, b.Geometry.Width)
	assert.Equal(t, 6.0, b.Geometry.Height)

	clock := mustObject(t, res, "clock")
	assert.Equal(t, 2.0, clock.Geometry.Width)
	assert.Equal(t, 2.0, clock.Geometry.Height)
	assert.Empty(t, res.Warnings)

	// Emission keeps the working-list order.
	ids := make([]string, len(res.Objects))
	for i, o := range res.Objects {
		ids[i] = o.ObjectID
	}
	assert.Equal(t, []string{"b", "a", "clock"}, ids)
}

func TestResolveReference(t *testing.T) {
	m := Translate(3, 4)
	evaluated := map[string]*EvaluatedObject{
		"a": {ObjectID: "a", Transform: &m, Geometry: &EvaluatedGeometry{Radius: 9}},
	}

	tests := []struct {
		name string
		ref  document.Reference
		want document.Value
		err  bool
	}{
		{"top level", document.Reference{TargetID: "a", TargetProp: "y"}, document.Scalar(4), false},
		{"vector", document.Reference{TargetID: "a", TargetProp: "position"}, document.Vec2{X: 3, Y: 4}, false},
		{"geometry fallback", document.Reference{TargetID: "a", TargetProp: "radius"}, document.Scalar(9), false},
		{"nested path", document.Reference{TargetID: "a", TargetProp: "geometry.radius"}, document.Scalar(9), false},
		{"time", document.Reference{TargetID: TimeObjectID, TargetProp: "t"}, document.Scalar(1.5), false},
		{"missing target", document.Reference{TargetID: "zz", TargetProp: "x"}, nil, true},
		{"missing prop", document.Reference{TargetID: "a", TargetProp: "nope"}, nil, true},
		{"non-value prop", document.Reference{TargetID: "a", TargetProp: "geometry"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ResolveReference(tt.ref, 1.5, evaluated)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestEvaluateHiddenObjectsAreReferenceable(t *testing.T) {
	s := newScene(
		object("h", rect(1, 1), at(5, 5), hidden()),
		object("v", document.RectGeometry{Width: document.Ref("h", "x"), Height: document.Number(1)}),
	)

	res := evaluate(t, s, 0)
	_, ok := res.Object("h")
	assert.False(t, ok)
	assert.Equal(t, 5.0, mustObject(t, res, "v").Geometry.Width)
}

func TestEvaluateCycleIsTolerated(t *testing.T) {
	s := newScene(
		object("a", document.RectGeometry{Width: document.Ref("b", "width"), Height: document.Number(1)}),
		object("b", document.RectGeometry{Width: document.Ref("a", "width"), Height: document.Number(1)}),
	)

	ranking, _, err := RankScene(s, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, graph.Inf, ranking.Rank("a"))
	assert.Equal(t, graph.Inf, ranking.Rank("b"))

	res := evaluate(t, s, 0)
	assert.Len(t, res.Objects, 2)
	assert.GreaterOrEqual(t, countContaining(res.Warnings, "cycle"), 1)
}

func TestRankSceneGeneratorOutputs(t *testing.T) {
	s := newScene(
		object("base", rect(1, 1)),
		object("free", rect(1, 1)),
		object("src", document.RectGeometry{Width: document.Ref("base", "width"), Height: document.Number(1)}),
	)
	s.Generators = []document.Generator{
		document.InstanceGenerator{
			GeneratorMeta: document.GeneratorMeta{ID: "copy", Source: "src"},
			Transforms:    []document.TransformSpec{{}},
		},
	}

	ranking, warnings, err := RankScene(s, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 0.0, ranking.Rank("base"))
	assert.Equal(t, 0.0, ranking.Rank("free"))
	assert.Equal(t, 1.0, ranking.Rank("src"))
	assert.Equal(t, 2.0, ranking.Rank(CloneID("src", "copy", 0)))
}

func TestEvaluateOperatorMissingInput(t *testing.T) {
	s := newScene(object("c", circleGeo(10)))
	s.Operators = []document.Operator{
		document.RasterizeOperator{
			OperatorIO: document.OperatorIO{ID: "op-missing", InputRefs: []string{"nope"}, OutputRef: "out"},
		},
	}

	res := evaluate(t, s, 0)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "op-missing")
	_, ok := res.Object("out")
	assert.False(t, ok)
}

func TestEvaluateRasterPipeline(t *testing.T) {
	s := newScene(object("c", circleGeo(10)))
	s.Operators = []document.Operator{
		document.RasterizeOperator{
			OperatorIO: document.OperatorIO{ID: "rast", InputRefs: []string{"c"}, OutputRef: "mask"},
			Resolution: document.Resolution{Width: 8, Height: 8},
		},
		document.ThresholdOperator{
			OperatorIO: document.OperatorIO{ID: "thr", InputRefs: []string{"mask"}, OutputRef: "solid"},
			Level:      128,
		},
		document.MorphologyOperator{
			OperatorIO: document.OperatorIO{ID: "ero", InputRefs: []string{"solid"}, OutputRef: "core"},
			Mode:       document.OperatorErode,
			Radius:     1,
		},
	}

	res := evaluate(t, s, 0)
	assert.Empty(t, res.Warnings)

	solid := mustObject(t, res, "solid").Raster
	core := mustObject(t, res, "core").Raster
	require.NotNil(t, solid)
	require.NotNil(t, core)
	assert.Equal(t, 8, solid.Width)
	assert.Equal(t, 8, solid.Height)
	assert.Positive(t, solid.Foreground())
	assert.LessOrEqual(t, core.Foreground(), solid.Foreground())
	for i := range core.Pix {
		assert.LessOrEqual(t, core.Pix[i], solid.Pix[i], "pixel %d", i)
	}
}

func TestEvaluateOperatorMerge(t *testing.T) {
	s := newScene(object("c", circleGeo(10)), object("line", document.LineGeometry{
		Points: [2]document.Vec2{{X: 0, Y: 0}, {X: 10, Y: 0}},
	}))
	s.Operators = []document.Operator{
		document.RasterizeOperator{
			OperatorIO: document.OperatorIO{ID: "rast", InputRefs: []string{"c"}, OutputRef: "c"},
		},
		document.AffineOperator{
			OperatorIO: document.OperatorIO{ID: "shift", InputRefs: []string{"line"}, OutputRef: "line"},
			Transform:  document.TransformSpec{Translate: ptr(document.Vector(0, 5))},
		},
		document.AffineOperator{
			OperatorIO: document.OperatorIO{ID: "copy", InputRefs: []string{"line"}},
		},
	}
	s.RenderConfig.RasterWidth = 16

	res := evaluate(t, s, 0)
	c := mustObject(t, res, "c")
	require.NotNil(t, c.Geometry, "rasterizing keeps the source geometry")
	require.NotNil(t, c.Raster)
	assert.Equal(t, 16, c.Raster.Width)
	assert.Equal(t, 64, c.Raster.Height)

	line := mustObject(t, res, "line")
	assert.Equal(t, 5.0, line.Geometry.Points[0].Y)

	// Empty outputRef falls back to the operator id. Inputs see the prior
	// output, so the copy is shifted too.
	cp := mustObject(t, res, "copy")
	assert.Equal(t, 5.0, cp.Geometry.Points[1].Y)
	assert.Len(t, res.Objects, 3)
}

func TestEvaluateOperatorFallbacks(t *testing.T) {
	s := newScene(object("c", circleGeo(10)))
	s.Operators = []document.Operator{
		document.RasterizeOperator{
			OperatorIO: document.OperatorIO{ID: "rast", InputRefs: []string{"c"}, OutputRef: "m"},
		},
		document.ThresholdOperator{
			OperatorIO: document.OperatorIO{ID: "thr", InputRefs: []string{"m"}, OutputRef: "m"},
			Level:      10,
			Mode:       "otsu",
		},
		document.MorphologyOperator{
			OperatorIO: document.OperatorIO{ID: "dil", InputRefs: []string{"m"}, OutputRef: "m"},
			Mode:       document.OperatorDilate,
			Radius:     1,
			Kernel:     "hexagon",
		},
		document.ThresholdOperator{
			OperatorIO: document.OperatorIO{ID: "bad-input", InputRefs: []string{"c"}, OutputRef: "x"},
		},
		document.UnknownOperator{
			OperatorIO: document.OperatorIO{ID: "blur", InputRefs: []string{"m"}},
			Type:       "gaussian",
		},
	}

	res := evaluate(t, s, 0)
	assert.Equal(t, 1, countContaining(res.Warnings, "otsu"))
	assert.Equal(t, 1, countContaining(res.Warnings, "hexagon"))
	assert.Equal(t, 1, countContaining(res.Warnings, "[bad-input]"))
	assert.Equal(t, 1, countContaining(res.Warnings, "gaussian"))
	assert.NotNil(t, mustObject(t, res, "m").Raster)
	_, ok := res.Object("x")
	assert.False(t, ok)
}

func TestEvaluateOverrides(t *testing.T) {
	s := newScene(object("a", rect(1, 1)))
	res, err := Evaluate(s, 0, &Options{Override: map[string]any{
		"width":      "800",
		"background": "#000000",
		"bogus":      1,
	}})
	require.NoError(t, err)

	assert.Equal(t, 800, res.Config.Width)
	assert.Equal(t, 720, res.Config.Height)
	assert.Equal(t, "#000000", res.Config.Background)
	assert.Equal(t, 1, countContaining(res.Warnings, `[renderConfig] unknown override key "bogus"`))
	assert.Equal(t, 1280, s.RenderConfig.Width)
}

func TestEvaluateStyles(t *testing.T) {
	res := evaluate(t, document.NewSampleScene(), 0)

	sun := mustObject(t, res, "sun")
	require.NotNil(t, sun.Style.Fill)
	assert.Equal(t, "#e94560", *sun.Style.Fill)

	moon := mustObject(t, res, "moon")
	assert.Equal(t, "#0f3460", *moon.Style.Fill)
	assert.Equal(t, 1.0, *moon.Style.Opacity)

	s := newScene(object("a", rect(1, 1)))
	s.Objects[0].Style = document.StyleRefTo("missing", nil)
	res = evaluate(t, s, 0)
	assert.Equal(t, 1, countContaining(res.Warnings, `style "missing" not found`))
	assert.Equal(t, document.Style{}, *mustObject(t, res, "a").Style)
}

func TestEvaluateMathNode(t *testing.T) {
	res := evaluate(t, document.NewSampleScene(), 0.5)

	osc := mustObject(t, res, "osc")
	require.NotNil(t, osc.Geometry)
	assert.Equal(t, document.GeometryMath, osc.Geometry.Type)
	assert.InDelta(t, 0.5, *osc.Geometry.Value, 1e-12)

	bob := mustObject(t, res, "bob")
	assert.InDelta(t, 0.5, bob.Transform.RotationAngle(), 1e-12)
	assert.Equal(t, 40.0, bob.Geometry.Height)
}

func TestEvaluateFonts(t *testing.T) {
	notReady := &Options{AssetReady: func(string) bool { return false }}
	res, err := Evaluate(document.NewSampleScene(), 0, notReady)
	require.NoError(t, err)
	assert.Equal(t, 1, countContaining(res.Warnings, "not ready"))
	title := mustObject(t, res, "title")
	assert.Equal(t, "genscene", title.Geometry.Text)

	s := newScene(object("label", document.TextGeometry{FontAsset: "nope", Text: "x", Size: document.Number(12)},
		kind(document.KindText)))
	res = evaluate(t, s, 0)
	assert.Equal(t, 1, countContaining(res.Warnings, `font asset "nope" not found`))
}

func TestEvaluateSchemaErrors(t *testing.T) {
	t.Run("invalid param", func(t *testing.T) {
		bad := document.Param{Kind: "bogus"}
		s := newScene(object("a", rect(1, 1)))
		s.Objects[0].Transform.Translate = &bad
		_, err := Evaluate(s, 0, nil)
		assert.ErrorIs(t, err, ErrInvalidParam)
	})

	t.Run("wrong literal shape", func(t *testing.T) {
		s := newScene(object("a", rect(1, 1)))
		bad := document.Vector(1, 2)
		s.Objects[0].Transform.Rotate = &bad
		_, err := Evaluate(s, 0, nil)
		assert.ErrorIs(t, err, ErrInvalidParam)
	})

	t.Run("pattern without geometry", func(t *testing.T) {
		s := newScene(object("a", nil, kind(document.KindPattern)))
		res := evaluate(t, s, 0)
		assert.Nil(t, mustObject(t, res, "a").Geometry)
	})
}

func TestEvaluateDuplicateIDs(t *testing.T) {
	s := newScene(object("a", rect(1, 1), at(1, 0)), object("a", rect(1, 1), at(2, 0)))
	res := evaluate(t, s, 0)
	require.Len(t, res.Objects, 1)
	x, _ := translation(t, &res.Objects[0])
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 1, countContaining(res.Warnings, "duplicate"))
}

func TestEvaluateSampleScene(t *testing.T) {
	scene := document.NewSampleScene()
	before, err := json.Marshal(scene)
	require.NoError(t, err)

	res := evaluate(t, scene, 0)
	assert.Empty(t, res.Warnings)

	after, err := json.Marshal(scene)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after), "evaluation must not modify the scene")

	t.Run("attach", func(t *testing.T) {
		x, y := translation(t, mustObject(t, res, "moon"))
		assert.InDelta(t, 730, x, 1e-9)
		assert.InDelta(t, 360, y, 1e-9)
	})

	t.Run("generators", func(t *testing.T) {
		assert.Len(t, generatedBy(res, "dots"), 12)
		assert.Len(t, generatedBy(res, "echoes"), 2)

		petals := generatedBy(res, "petals")
		require.Len(t, petals, 8)
		x, y := petals[0].Transform.Translation()
		assert.InDelta(t, 780, x, 1e-9)
		assert.InDelta(t, 360, y, 1e-9)
		x, y = petals[2].Transform.Translation()
		assert.InDelta(t, 640, x, 1e-9)
		assert.InDelta(t, 500, y, 1e-9)
	})

	t.Run("align", func(t *testing.T) {
		x, y := translation(t, mustObject(t, res, "badge"))
		assert.InDelta(t, 640, x, 1e-9)
		assert.InDelta(t, 360, y, 1e-9)
	})

	t.Run("repeat", func(t *testing.T) {
		steps := generatedBy(res, "stairs")
		require.Len(t, steps, 4)
		x, y := steps[0].Transform.Translation()
		assert.InDelta(t, 140, x, 1e-9)
		assert.InDelta(t, 188, y, 1e-9)

		c, s := math.Cos(0.1), math.Sin(0.1)
		x, y = steps[1].Transform.Translation()
		assert.InDelta(t, 140+20*c+12*s, x, 1e-9)
		assert.InDelta(t, 188+20*s-12*c, y, 1e-9)
	})

	t.Run("operators", func(t *testing.T) {
		mask := mustObject(t, res, "sun-mask").Raster
		core := mustObject(t, res, "sun-core").Raster
		require.NotNil(t, mask)
		require.NotNil(t, core)
		assert.LessOrEqual(t, core.Foreground(), mask.Foreground())
		assert.NotNil(t, mustObject(t, res, "track-shadow").Geometry)
	})

	_, err = res.ToJSON()
	assert.NoError(t, err)
}

func TestEvaluateDeterministic(t *testing.T) {
	a, err := evaluate(t, document.NewSampleScene(), 1.25).ToJSON()
	require.NoError(t, err)
	b, err := evaluate(t, document.NewSampleScene(), 1.25).ToJSON()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEvaluateGeneratorSourceReference(t *testing.T) {
	src := object("src", document.PointGeometry{})
	anchorX := document.Ref("anchor", "x")
	src.Transform.Translate = &anchorX
	s := newScene(src, object("anchor", rect(1, 1), at(50, 7)))
	s.Generators = []document.Generator{
		document.GridGenerator{
			GeneratorMeta: document.GeneratorMeta{ID: "g", Source: "src"},
			A:             document.Vector(10, 0),
			B:             document.Vector(0, 10),
			I:             document.IntRange{0, 1},
			J:             document.IntRange{0, 0},
		},
	}

	res := evaluate(t, s, 0)
	assert.Empty(t, res.Warnings)

	x, y := translation(t, mustObject(t, res, "src"))
	assert.Equal(t, []float64{50, 50}, []float64{x, y})

	clones := generatedBy(res, "g")
	require.Len(t, clones, 2)
	for k, c := range clones {
		x, y := translation(t, &c)
		assert.InDelta(t, 50+10*float64(k), x, 1e-9)
		assert.InDelta(t, 50, y, 1e-9)
	}
}

func TestEvaluateGeneratorParamReference(t *testing.T) {
	s := newScene(
		object("p", document.PointGeometry{}),
		object("ring", rect(30, 1)),
	)
	s.Generators = []document.Generator{
		document.RadialGenerator{
			GeneratorMeta: document.GeneratorMeta{ID: "r", Source: "p"},
			Count:         4,
			Radius:        document.Ref("ring", "width"),
		},
	}

	res := evaluate(t, s, 0)
	assert.Empty(t, res.Warnings)
	clones := generatedBy(res, "r")
	require.Len(t, clones, 4)
	x, y := translation(t, &clones[0])
	assert.InDelta(t, 30, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)
}

func TestEvaluateFollowPathDrivenByMathNode(t *testing.T) {
	s := newScene(
		object("box", rect(10, 10)),
		object("path", document.PolylineGeometry{Points: []document.Vec2{{X: 0, Y: 0}, {X: 100, Y: 0}}}),
		// sin(t)
		object("osc", document.MathGeometry{}, kind(document.KindMath)),
	)
	s.Relations = []document.Relation{
		document.FollowPathRelation{
			RelationMeta: document.RelationMeta{ID: "follow", Enabled: true},
			Object:       "box",
			Path:         "path",
			U:            document.Ref("osc", "value"),
		},
	}

	for _, tt := range []struct{ t, wantX float64 }{
		{math.Pi / 6, 50},
		{math.Pi / 2, 100},
		{0, 0},
	} {
		res := evaluate(t, s, tt.t)
		assert.Empty(t, res.Warnings)
		x, _ := translation(t, mustObject(t, res, "box"))
		assert.InDelta(t, tt.wantX, x, 1e-9, "t=%v", tt.t)
	}
}

func TestEvaluateAttachToReferencedParent(t *testing.T) {
	parent := object("parent", rect(1, 1))
	pos := document.Ref("anchor", "position")
	parent.Transform.Translate = &pos
	s := newScene(
		object("child", rect(1, 1)),
		parent,
		object("anchor", rect(1, 1), at(20, 30)),
	)
	s.Relations = []document.Relation{
		document.AttachRelation{
			RelationMeta: document.RelationMeta{ID: "pin", Enabled: true},
			Parent:       "parent",
			Child:        "child",
		},
	}

	res := evaluate(t, s, 0)
	assert.Empty(t, res.Warnings)
	x, y := translation(t, mustObject(t, res, "child"))
	assert.InDelta(t, 20, x, 1e-9)
	assert.InDelta(t, 30, y, 1e-9)
}

func TestEvaluateReferenceShapeMismatch(t *testing.T) {
	b := object("b", rect(1, 1))
	rot := document.Ref("a", "position")
	mat := document.Ref("a", "x")
	b.Transform.Rotate = &rot
	b.Transform.Matrix = &mat
	c := object("c", document.RectGeometry{Width: document.Ref("a", "position"), Height: document.Number(2)})
	s := newScene(object("a", rect(1, 1), at(3, 4)), b, c, object("p", document.PointGeometry{}))
	s.Generators = []document.Generator{
		document.RadialGenerator{
			GeneratorMeta: document.GeneratorMeta{ID: "r", Source: "p"},
			Count:         2,
			Radius:        document.Ref("a", "position"),
		},
	}

	res, err := Evaluate(s, 0, nil)
	require.NoError(t, err)

	got := mustObject(t, res, "b")
	assert.Equal(t, Identity(), *got.Transform)
	assert.Equal(t, 1, countContaining(res.Warnings, "[b] reference @a.position is not a number"))
	assert.Equal(t, 1, countContaining(res.Warnings, "[b] reference @a.x is not a matrix"))

	assert.Equal(t, 0.0, mustObject(t, res, "c").Geometry.Width)
	assert.Equal(t, 1, countContaining(res.Warnings, "[c] reference @a.position is not a number"))

	clones := generatedBy(res, "r")
	require.Len(t, clones, 2)
	x, y := translation(t, &clones[0])
	assert.Equal(t, []float64{0, 0}, []float64{x, y})
	assert.Equal(t, 1, countContaining(res.Warnings, "[r] reference @a.position is not a number"))
}

func TestEvaluateCloneLimits(t *testing.T) {
	s := newScene(object("p", document.PointGeometry{}))
	s.Generators = []document.Generator{
		document.GridGenerator{
			GeneratorMeta: document.GeneratorMeta{ID: "huge", Source: "p"},
			A:             document.Vector(1, 0),
			B:             document.Vector(0, 1),
			I:             document.IntRange{0, 1_000_000_000},
			J:             document.IntRange{0, 0},
		},
		document.GridGenerator{
			GeneratorMeta: document.GeneratorMeta{ID: "square", Source: "p"},
			A:             document.Vector(1, 0),
			B:             document.Vector(0, 1),
			I:             document.IntRange{0, 999},
			J:             document.IntRange{0, 999},
		},
		document.RadialGenerator{
			GeneratorMeta: document.GeneratorMeta{ID: "wheel", Source: "p"},
			Count:         MaxClones + 1,
			Radius:        document.Number(1),
		},
	}
	s.Relations = []document.Relation{
		document.RepeatRelation{
			RelationMeta: document.RelationMeta{ID: "rep", Enabled: true},
			Object:       "p",
			Count:        MaxClones * 2,
		},
	}

	res := evaluate(t, s, 0)
	assert.Len(t, res.Objects, 1)
	for _, id := range []string{"huge", "square", "wheel", "rep"} {
		assert.Equal(t, 1, countContaining(res.Warnings, "["+id+"]"), id)
		assert.Empty(t, generatedBy(res, id), id)
	}
}

func TestEvaluateMissingGeometryIsData(t *testing.T) {
	s := newScene(
		object("bare", nil),
		object("label", nil, kind(document.KindText)),
		object("ok", rect(2, 2)),
	)

	res := evaluate(t, s, 0)
	require.Len(t, res.Objects, 3)
	assert.Nil(t, mustObject(t, res, "bare").Geometry)
	assert.Nil(t, mustObject(t, res, "label").Geometry)
	assert.Equal(t, 1, countContaining(res.Warnings, "[bare] primitive object has no geometry"))
	assert.Equal(t, 1, countContaining(res.Warnings, "[label] text object has no geometry"))
	assert.Equal(t, "ok", HitTest(res.Objects, 0, 0))
}
