// Package graph ranks nodes of an arbitrary dependency graph. Nodes are
// described by two accessors, an id and the ids they depend on. Cycles
// are tolerated: nodes on a cycle get an infinite rank and a warning
// instead of an error.
package graph

import (
	"fmt"
	"math"
	"slices"
)

// Inf is the rank assigned to nodes that sit on, or depend on, a cycle.
var Inf = math.Inf(1)

// Accessors describe how to read a node.
type Accessors[N any] struct {
	ID   func(N) string
	Deps func(N) []string
}

// Ranking is the result of one ranking pass.
type Ranking struct {
	Ranks    map[string]float64
	Warnings []string
}

// Rank returns the rank of id. Ids outside the node set are rank 0.
func (r Ranking) Rank(id string) float64 {
	return r.Ranks[id]
}

// walk holds the per-call traversal state. It is never shared between
// calls, so ranking is reentrant.
type walk[N any] struct {
	acc      Accessors[N]
	byID     map[string]N
	memo     map[string]float64
	visiting map[string]bool
	warnings []string
}

// Ranks assigns a rank to every node: 0 for nodes without dependencies,
// otherwise one more than the highest-ranked dependency. Dependency ids
// not present in nodes are external leaves of rank 0.
func Ranks[N any](nodes []N, acc Accessors[N]) Ranking {
	w := &walk[N]{
		acc:      acc,
		byID:     make(map[string]N, len(nodes)),
		memo:     make(map[string]float64, len(nodes)),
		visiting: make(map[string]bool),
	}
	for _, n := range nodes {
		w.byID[acc.ID(n)] = n
	}
	for _, n := range nodes {
		w.rank(acc.ID(n))
	}
	return Ranking{Ranks: w.memo, Warnings: w.warnings}
}

func (w *walk[N]) rank(id string) float64 {
	if r, ok := w.memo[id]; ok {
		return r
	}
	node, ok := w.byID[id]
	if !ok {
		return 0
	}
	if w.visiting[id] {
		w.warnings = append(w.warnings, fmt.Sprintf("[%s] dependency cycle detected", id))
		return Inf
	}

	w.visiting[id] = true
	r := 0.0
	for _, dep := range w.acc.Deps(node) {
		r = math.Max(r, w.rank(dep)+1)
	}
	delete(w.visiting, id)

	w.memo[id] = r
	return r
}

// TopologicalOrder returns nodes sorted by ascending rank. Nodes of equal
// rank keep their input order; cyclic nodes come last.
func TopologicalOrder[N any](nodes []N, acc Accessors[N]) ([]N, Ranking) {
	ranking := Ranks(nodes, acc)
	ordered := slices.Clone(nodes)
	slices.SortStableFunc(ordered, func(a, b N) int {
		ra, rb := ranking.Rank(acc.ID(a)), ranking.Rank(acc.ID(b))
		switch {
		case ra < rb:
			return -1
		case ra > rb:
			return 1
		default:
			return 0
		}
	})
	return ordered, ranking
}

// WouldCreateCycle reports whether making depender depend on dependee
// would close a cycle, i.e. whether dependee already reaches depender by
// following parentsOf (the "depends-on" edges).
func WouldCreateCycle(depender, dependee string, parentsOf func(string) []string) bool {
	if depender == dependee {
		return true
	}
	visited := map[string]bool{dependee: true}
	queue := []string{dependee}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, parent := range parentsOf(cur) {
			if parent == depender {
				return true
			}
			if !visited[parent] {
				visited[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return false
}
