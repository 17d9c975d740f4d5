package engine

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mitchellh/mapstructure"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/graph"
)

// ErrNilScene is returned when Evaluate is called without a scene.
var ErrNilScene = errors.New("nil scene")

// Options tune one evaluation pass. The zero value is usable.
type Options struct {
	// Override is merged onto the scene's render config. Keys use the
	// render config's JSON names.
	Override map[string]any

	// AssetReady reports whether an asset has finished loading. Nil means
	// every known asset is ready.
	AssetReady func(assetID string) bool

	Logger *slog.Logger
}

func (o *Options) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Evaluate computes the scene at time t. It expands generators, resolves
// relations, evaluates objects in dependency order, runs operators, and
// merges their outputs. Data problems become warnings; only schema
// problems (invalid params, unsupported geometry) return an error.
// The scene is not modified.
func Evaluate(scene *document.Scene, t float64, opts *Options) (*RenderResult, error) {
	if scene == nil {
		return nil, ErrNilScene
	}
	if opts == nil {
		opts = &Options{}
	}
	c := newEvalContext(scene, t, opts)

	cfg, err := c.applyOverrides(scene.RenderConfig, opts.Override)
	if err != nil {
		return nil, err
	}
	c.config = cfg

	ws, ranking, err := c.expand()
	if err != nil {
		return nil, err
	}

	order := rankOrder(ws.objects, ranking)
	for _, obj := range order {
		ev, err := c.evaluateObject(obj)
		if err != nil {
			return nil, err
		}
		c.evaluated[obj.ID] = ev
	}

	objects := make([]EvaluatedObject, 0, len(ws.objects))
	for _, obj := range ws.objects {
		if !obj.Visible {
			continue
		}
		objects = append(objects, *c.evaluated[obj.ID])
	}

	outs, err := c.runOperators()
	if err != nil {
		return nil, err
	}
	objects = mergeOutputs(objects, outs)
	for i := range objects {
		objects[i].Warnings = c.byEntity[objects[i].ObjectID]
	}

	c.logger.Debug("scene evaluated",
		"t", t,
		"objects", len(objects),
		"warnings", len(c.warnings),
	)

	return &RenderResult{Objects: objects, Warnings: c.warnings, Config: cfg}, nil
}

// RankScene expands the scene at t and ranks the resulting objects,
// derived clones included.
func RankScene(scene *document.Scene, t float64, opts *Options) (graph.Ranking, []string, error) {
	if scene == nil {
		return graph.Ranking{}, nil, ErrNilScene
	}
	c := newEvalContext(scene, t, opts)
	_, ranking, err := c.expand()
	if err != nil {
		return graph.Ranking{}, nil, err
	}
	return ranking, c.warnings, nil
}

// expand builds the working set: a deep copy of the scene objects plus
// generator and relation clones, ranked by dependency.
func (c *evalContext) expand() (*workingSet, graph.Ranking, error) {
	objs := c.scene.CloneObjects()
	seen := make(map[string]bool, len(objs))
	unique := objs[:0]
	for _, obj := range objs {
		if seen[obj.ID] {
			c.warn(obj.ID, "duplicate object id, later copy ignored")
			continue
		}
		seen[obj.ID] = true
		unique = append(unique, obj)
	}
	ws := newWorkingSet(unique)

	c.pending = ws
	defer func() {
		c.pending = nil
		c.evaluated = make(map[string]*EvaluatedObject)
	}()

	if err := c.expandGenerators(ws); err != nil {
		return nil, graph.Ranking{}, err
	}
	if err := c.resolveRelations(ws); err != nil {
		return nil, graph.Ranking{}, err
	}

	ranking := graph.Ranks(ws.objects, objectAccessors(c.scene.Relations))
	c.warnings = append(c.warnings, ranking.Warnings...)
	return ws, ranking, nil
}

// rankOrder sorts objects by rank, keeping list order among equals.
func rankOrder(objs []document.SceneObject, ranking graph.Ranking) []document.SceneObject {
	ordered := slices.Clone(objs)
	slices.SortStableFunc(ordered, func(a, b document.SceneObject) int {
		return cmp.Compare(ranking.Rank(a.ID), ranking.Rank(b.ID))
	})
	return ordered
}

func (c *evalContext) applyOverrides(base document.RenderConfig, override map[string]any) (document.RenderConfig, error) {
	cfg := base
	if len(override) == 0 {
		return cfg, nil
	}

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		Metadata:         &md,
	})
	if err != nil {
		return base, fmt.Errorf("override config: %w", err)
	}
	if err := dec.Decode(override); err != nil {
		return base, fmt.Errorf("override config: %w", err)
	}
	for _, key := range md.Unused {
		c.warn("renderConfig", "unknown override key %q", key)
	}
	return cfg, nil
}

func (c *evalContext) evaluateObject(obj document.SceneObject) (*EvaluatedObject, error) {
	resolved := c.resolveObject(obj)
	m, err := EvaluateTransform(resolved.Transform, c.t)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", obj.ID, err)
	}

	ev := &EvaluatedObject{
		ObjectID:    obj.ID,
		Kind:        obj.Kind,
		Transform:   &m,
		Style:       c.resolveStyle(obj),
		Visible:     obj.Visible,
		GeneratedBy: obj.GeneratedBy,
	}

	var geo *EvaluatedGeometry
	switch g := resolved.Geometry.(type) {
	case nil:
		if obj.Kind != document.KindPattern && obj.Kind != document.KindComposite {
			c.warn(obj.ID, "%s object has no geometry", obj.Kind)
		}
		return ev, nil
	case document.MathGeometry:
		geo, err = evaluateMath(g, c.t)
	case document.TextGeometry:
		c.checkFont(obj.ID, g.FontAsset)
		geo, err = evaluateGeometryWith(g, m, c.t)
	default:
		geo, err = evaluateGeometryWith(g, m, c.t)
	}
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", obj.ID, err)
	}
	ev.Geometry = geo
	return ev, nil
}

// checkFont warns when a text run's font is unknown or still loading. The
// run still evaluates with placeholder metrics.
func (c *evalContext) checkFont(objectID, assetID string) {
	if assetID == "" {
		return
	}
	if _, ok := c.scene.AssetByID(assetID); !ok {
		c.warn(objectID, "font asset %q not found", assetID)
		return
	}
	if c.opts.AssetReady != nil && !c.opts.AssetReady(assetID) {
		c.warn(objectID, "font asset %q not ready", assetID)
	}
}

// resolveStyle returns the object's effective style. Referenced styles get
// the object's overrides shallow-merged on top.
func (c *evalContext) resolveStyle(obj document.SceneObject) *document.Style {
	var s document.Style
	switch obj.Style.Mode {
	case document.StyleRef:
		named, ok := c.scene.StyleByID(obj.Style.RefID)
		if !ok {
			c.warn(obj.ID, "style %q not found", obj.Style.RefID)
		}
		s = named.Style.Clone()
		if obj.Style.Overrides != nil {
			s = s.Merge(obj.Style.Overrides.Clone())
		}
	default:
		s = obj.Style.Inline.Clone()
	}
	return &s
}
