package document

import "math"

func ptr[T any](v T) *T { return &v }

// NewSampleScene builds the demo scene shown in the playground. It uses
// every generator, relation, and operator type.
func NewSampleScene() *Scene {
	accent := Style{Fill: ptr("#e94560"), Stroke: ptr("#ffffff"), StrokeWidth: ptr(2.0), Opacity: ptr(1.0)}
	muted := Style{Fill: ptr("#0f3460"), Opacity: ptr(0.8)}

	spin := Keys(InterpolationSmooth, ExtrapolationRepeat,
		Keyframe{T: 0, Value: Scalar(0)},
		Keyframe{T: 2, Value: Scalar(2 * math.Pi)},
	)
	sunPos := Vector(640, 360)
	moonOffset := Vector(90, 0)

	scene := NewEmptyScene()
	scene.Styles = []NamedStyle{
		{ID: "accent", Name: "Accent", Style: accent},
		{ID: "muted", Name: "Muted", Style: muted},
	}
	scene.Assets = []Asset{
		{ID: "font-inter", Type: "font", Name: "Inter", URL: "/assets/inter.woff2"},
	}

	scene.Objects = []SceneObject{
		{
			ID:        "sun",
			Kind:      KindPrimitive,
			Transform: TransformSpec{Translate: &sunPos, Rotate: &spin},
			Geometry:  CircleGeometry{Radius: Number(40)},
			Style:     StyleRefTo("accent", nil),
			Visible:   true,
		},
		{
			ID:       "moon",
			Kind:     KindPrimitive,
			Geometry: CircleGeometry{Radius: Number(12)},
			Style:    StyleRefTo("muted", &Style{Opacity: ptr(1.0)}),
			Visible:  true,
		},
		{
			ID:        "dot",
			Kind:      KindPrimitive,
			Transform: TransformSpec{Translate: ptr(Vector(80, 80))},
			Geometry:  PointGeometry{},
			Style:     InlineStyle(Style{Fill: ptr("#ffffff")}),
			Visible:   true,
		},
		{
			ID:        "petal",
			Kind:      KindPrimitive,
			Transform: TransformSpec{Translate: ptr(Vector(640, 360))},
			Geometry:  RectGeometry{Width: Number(10), Height: Number(30)},
			Style:     StyleRefTo("accent", &Style{Fill: ptr("#f5a623")}),
			Visible:   true,
		},
		{
			ID:   "track",
			Kind: KindPrimitive,
			Geometry: PolylineGeometry{Points: []Vec2{
				{100, 600}, {400, 520}, {700, 640}, {1100, 560},
			}},
			Style:   InlineStyle(Style{Stroke: ptr("#16c79a"), StrokeWidth: ptr(3.0)}),
			Visible: true,
		},
		{
			ID:       "runner",
			Kind:     KindPrimitive,
			Geometry: RectGeometry{Width: Number(24), Height: Number(12)},
			Style:    StyleRefTo("accent", nil),
			Visible:  true,
		},
		{
			ID:        "osc",
			Kind:      KindMath,
			Geometry:  MathGeometry{Amp: ptr(Number(0.5)), Freq: ptr(Number(math.Pi))},
			Visible:   true,
			Transform: TransformSpec{},
		},
		{
			ID:        "bob",
			Kind:      KindPrimitive,
			Transform: TransformSpec{Translate: ptr(Vector(1100, 200)), Rotate: ptr(Ref("osc", "value"))},
			Geometry:  RectGeometry{Width: Number(60), Height: Ref("sun", "geometry.radius")},
			Style:     StyleRefTo("muted", nil),
			Visible:   true,
		},
		{
			ID:        "badge",
			Kind:      KindPrimitive,
			Transform: TransformSpec{Translate: ptr(Vector(0, 0))},
			Geometry:  RectGeometry{Width: Number(20), Height: Number(20)},
			Style:     InlineStyle(Style{Stroke: ptr("#ffffff"), StrokeWidth: ptr(1.0)}),
			Visible:   true,
		},
		{
			ID:        "step",
			Kind:      KindPrimitive,
			Transform: TransformSpec{Translate: ptr(Vector(120, 200))},
			Geometry:  RectGeometry{Width: Number(16), Height: Number(16)},
			Style:     StyleRefTo("muted", nil),
			Visible:   true,
		},
		{
			ID:        "title",
			Kind:      KindText,
			Transform: TransformSpec{Translate: ptr(Vector(640, 60))},
			Geometry:  TextGeometry{FontAsset: "font-inter", Text: "genscene", Size: Number(32)},
			Style:     InlineStyle(Style{Fill: ptr("#ffffff")}),
			Visible:   true,
		},
	}

	scene.Generators = []Generator{
		GridGenerator{
			GeneratorMeta: GeneratorMeta{ID: "dots", Source: "dot"},
			A:             Vector(30, 0),
			B:             Vector(0, 30),
			I:             IntRange{0, 3},
			J:             IntRange{0, 2},
		},
		RadialGenerator{
			GeneratorMeta: GeneratorMeta{ID: "petals", Source: "petal"},
			Count:         8,
			Radius:        Number(140),
		},
		InstanceGenerator{
			GeneratorMeta: GeneratorMeta{ID: "echoes", Source: "badge"},
			Transforms: []TransformSpec{
				{Translate: ptr(Vector(40, 0))},
				{Translate: ptr(Vector(80, 0)), Scale: ptr(Number(0.5))},
			},
		},
	}

	scene.Relations = []Relation{
		AttachRelation{
			RelationMeta:    RelationMeta{ID: "moon-orbit", Enabled: true},
			Parent:          "sun",
			Child:           "moon",
			Offset:          &moonOffset,
			InheritRotation: true,
		},
		FollowPathRelation{
			RelationMeta: RelationMeta{ID: "run", Enabled: true},
			Object:       "runner",
			Path:         "track",
			U:            Expression("abs(sin(t * PI / 4))"),
			TangentAlign: true,
		},
		AlignRelation{
			RelationMeta: RelationMeta{ID: "badge-on-sun", Enabled: true},
			A:            "badge",
			B:            "sun",
			Anchor:       AnchorCenter,
		},
		RepeatRelation{
			RelationMeta: RelationMeta{ID: "stairs", Enabled: true},
			Object:       "step",
			Count:        5,
			Delta:        TransformSpec{Translate: ptr(Vector(20, -12)), Rotate: ptr(Number(0.1))},
		},
	}

	scene.Operators = []Operator{
		RasterizeOperator{
			OperatorIO: OperatorIO{ID: "sun-raster", InputRefs: []string{"sun"}, OutputRef: "sun-mask", StageName: "mask"},
			Resolution: Resolution{Width: 64, Height: 64},
		},
		ThresholdOperator{
			OperatorIO: OperatorIO{ID: "sun-threshold", InputRefs: []string{"sun-mask"}, OutputRef: "sun-mask"},
			Level:      128,
		},
		MorphologyOperator{
			OperatorIO: OperatorIO{ID: "sun-erode", InputRefs: []string{"sun-mask"}, OutputRef: "sun-core"},
			Mode:       OperatorErode,
			Radius:     2,
			Iterations: 1,
		},
		AffineOperator{
			OperatorIO: OperatorIO{ID: "track-shadow", InputRefs: []string{"track"}, OutputRef: "track-shadow"},
			Transform:  TransformSpec{Translate: ptr(Vector(6, 6))},
		},
	}

	return scene
}
