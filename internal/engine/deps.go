package engine

import (
	"slices"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/graph"
)

// relationDependencies maps a constrained object to the objects its
// enabled relations read: attach children read parents, followers read
// paths, align sources read targets.
func relationDependencies(relations []document.Relation) map[string][]string {
	deps := make(map[string][]string)
	for _, rel := range relations {
		if !rel.Meta().Enabled {
			continue
		}
		switch r := rel.(type) {
		case document.AttachRelation:
			deps[r.Child] = append(deps[r.Child], r.Parent)
		case document.FollowPathRelation:
			deps[r.Object] = append(deps[r.Object], r.Path)
		case document.AlignRelation:
			deps[r.A] = append(deps[r.A], r.B)
		}
	}
	return deps
}

// objectDependencies lists the ids obj depends on: its clone source, the
// targets of its references, and relation inputs.
func objectDependencies(obj document.SceneObject, relDeps map[string][]string) []string {
	var deps []string
	if obj.SourceID != "" {
		deps = append(deps, obj.SourceID)
	}
	for _, ref := range obj.References() {
		if ref.TargetID != TimeObjectID && !slices.Contains(deps, ref.TargetID) {
			deps = append(deps, ref.TargetID)
		}
	}
	for _, id := range relDeps[obj.ID] {
		if !slices.Contains(deps, id) {
			deps = append(deps, id)
		}
	}
	return deps
}

func objectAccessors(relations []document.Relation) graph.Accessors[document.SceneObject] {
	relDeps := relationDependencies(relations)
	return graph.Accessors[document.SceneObject]{
		ID:   func(o document.SceneObject) string { return o.ID },
		Deps: func(o document.SceneObject) []string { return objectDependencies(o, relDeps) },
	}
}

// DependencyMap returns, for every authored object, the ids it depends on.
func DependencyMap(scene *document.Scene) map[string][]string {
	relDeps := relationDependencies(scene.Relations)
	out := make(map[string][]string, len(scene.Objects))
	for _, obj := range scene.Objects {
		out[obj.ID] = objectDependencies(obj, relDeps)
	}
	return out
}

// CanConnect reports whether making depender depend on dependee keeps the
// scene acyclic.
func CanConnect(scene *document.Scene, depender, dependee string) bool {
	deps := DependencyMap(scene)
	return !graph.WouldCreateCycle(depender, dependee, func(id string) []string { return deps[id] })
}
