package route

import (
	"math"

	"github.com/orneryd/skyline/pkg/storage"
)

// FilterParallelEdges returns the edges a label may be expanded along.
//
// Edges rejected by the type filter are dropped. Among the remaining edges
// that share an end node, an edge is dropped when another candidate is no
// worse on every criterion; a missing criterion counts as +Inf here. Of
// several identical edges the first one is kept. Order is preserved.
func FilterParallelEdges(c *Criteria, edges []*storage.Edge) []*storage.Edge {
	byEnd := make(map[storage.NodeID][]int)
	costs := make([][]float64, len(edges))
	for i, e := range edges {
		if !c.AllowsType(e.Type) {
			continue
		}
		costs[i] = parallelCosts(c, e)
		byEnd[e.EndNode] = append(byEnd[e.EndNode], i)
	}

	kept := make([]*storage.Edge, 0, len(edges))
	for i, e := range edges {
		if costs[i] == nil {
			continue
		}
		if !parallelDominated(i, byEnd[e.EndNode], costs) {
			kept = append(kept, e)
		}
	}
	return kept
}

func parallelCosts(c *Criteria, e *storage.Edge) []float64 {
	out := make([]float64, len(c.keys))
	for i, key := range c.keys {
		v, ok := PropertyValue(e, key)
		if !ok {
			v = math.Inf(1)
		}
		out[i] = v
	}
	return out
}

func parallelDominated(i int, group []int, costs [][]float64) bool {
	for _, j := range group {
		if j == i {
			continue
		}
		noWorse, equal := compare(costs[j], costs[i])
		if !noWorse {
			continue
		}
		// Identical edges: only the earliest survives.
		if !equal || j < i {
			return true
		}
	}
	return false
}

// compare reports whether a <= b element-wise and whether a == b.
func compare(a, b []float64) (noWorse, equal bool) {
	noWorse, equal = true, true
	for k := range a {
		if a[k] > b[k] {
			return false, false
		}
		if a[k] != b[k] {
			equal = false
		}
	}
	return noWorse, equal
}
