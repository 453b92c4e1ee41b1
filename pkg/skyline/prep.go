package skyline

import (
	"container/heap"
	"context"
	"math"

	"github.com/viterin/vek"

	"github.com/orneryd/skyline/pkg/route"
	"github.com/orneryd/skyline/pkg/storage"
)

// Estimate is the outcome of a Pareto-Prep run.
type Estimate struct {
	// Bound holds, per criterion, the best value any known start->destination
	// path reaches. +Inf marks an unreachable destination.
	Bound []float64
	// Paths is the Pareto-minimal set of greedy paths found along the way.
	Paths []*route.Label
	// Relaxations counts incoming-edge relaxations.
	Relaxations int
}

// Reachable reports whether some path from start to destination exists.
func (e *Estimate) Reachable() bool {
	for _, v := range e.Bound {
		if math.IsInf(v, 1) {
			return false
		}
	}
	return true
}

// ParetoPrep computes the global lower bound used by Pruning Criterion I.
//
// It runs a backward label-correcting relaxation from the destination over
// incoming edges, keeping one bound per node and criterion. The open list is
// ordered by the sum of a node's bounds. Whenever the start node's bound
// improves for a criterion, the greedy path along the recorded successor
// edges for that criterion is materialized and merged into a Pareto set S.
// A popped node is not relaxed when a member of S already dominates its
// bound vector: no path through it can improve any criterion minimum.
//
// Edges are filtered by type like the forward search, but resource caps are
// ignored, so the bound never exceeds what a feasible route can reach.
type ParetoPrep struct {
	graph    Graph
	criteria *route.Criteria
}

// NewParetoPrep creates an estimator over graph.
func NewParetoPrep(graph Graph, criteria *route.Criteria) *ParetoPrep {
	return &ParetoPrep{graph: graph, criteria: criteria}
}

type prepItem struct {
	node     storage.NodeID
	priority float64
	version  int
}

type prepQueue []prepItem

func (q prepQueue) Len() int { return len(q) }
func (q prepQueue) Less(i, j int) bool {
	return q[i].priority < q[j].priority
}
func (q prepQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *prepQueue) Push(x any)   { *q = append(*q, x.(prepItem)) }
func (q *prepQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// prepState is the per-run bookkeeping of an estimate.
type prepState struct {
	k       int
	lb      map[storage.NodeID][]float64
	succ    map[storage.NodeID][]*storage.Edge
	version map[storage.NodeID]int
	paths   []*route.Label
}

func (s *prepState) bound(n storage.NodeID) []float64 {
	b, ok := s.lb[n]
	if !ok {
		b = make([]float64, s.k)
		for i := range b {
			b[i] = math.Inf(1)
		}
		s.lb[n] = b
		s.succ[n] = make([]*storage.Edge, s.k)
	}
	return b
}

// Estimate runs the relaxation for one start/destination pair.
func (p *ParetoPrep) Estimate(ctx context.Context, start, destination storage.NodeID) (*Estimate, error) {
	k := p.criteria.Len()
	if start == destination {
		return &Estimate{Bound: make([]float64, k)}, nil
	}

	st := &prepState{
		k:       k,
		lb:      make(map[storage.NodeID][]float64),
		succ:    make(map[storage.NodeID][]*storage.Edge),
		version: make(map[storage.NodeID]int),
	}
	dst := st.bound(destination)
	for i := range dst {
		dst[i] = 0
	}

	open := &prepQueue{{node: destination}}
	relaxations := 0

	for open.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := heap.Pop(open).(prepItem)
		if item.version != st.version[item.node] {
			continue
		}
		n := item.node
		lbN := st.lb[n]

		if dominatedByAny(st.paths, lbN) {
			continue
		}

		incoming, err := p.graph.GetIncomingEdges(n)
		if err != nil {
			return nil, err
		}
		for _, e := range incoming {
			if !p.criteria.AllowsType(e.Type) {
				continue
			}
			w, err := route.EdgeCosts(p.criteria, e)
			if err != nil {
				return nil, err
			}
			relaxations++

			m := e.StartNode
			lbM := st.bound(m)
			var improved []int
			for i := 0; i < k; i++ {
				if c := lbN[i] + w[i]; c < lbM[i] {
					lbM[i] = c
					st.succ[m][i] = e
					improved = append(improved, i)
				}
			}
			if len(improved) == 0 {
				continue
			}

			if m != start {
				st.version[m]++
				heap.Push(open, prepItem{node: m, priority: vek.Sum(lbM), version: st.version[m]})
				continue
			}
			for _, i := range improved {
				path, err := p.greedyPath(st, start, destination, i)
				if err != nil {
					return nil, err
				}
				if path != nil {
					st.paths = mergePareto(st.paths, path)
				}
			}
		}
	}

	bound := make([]float64, k)
	for i := range bound {
		bound[i] = math.Inf(1)
	}
	for _, path := range st.paths {
		vek.Minimum_Inplace(bound, path.Cost())
	}
	return &Estimate{Bound: bound, Paths: st.paths, Relaxations: relaxations}, nil
}

// greedyPath follows the successor edges recorded for criterion i from start
// to destination and returns the resulting full-route label.
func (p *ParetoPrep) greedyPath(st *prepState, start, destination storage.NodeID, i int) (*route.Label, error) {
	label := route.NewLabel(p.criteria, start, destination)
	visited := make(map[storage.NodeID]struct{})
	for cur := start; cur != destination; {
		if _, seen := visited[cur]; seen {
			return nil, nil
		}
		visited[cur] = struct{}{}

		next := st.succ[cur]
		if next == nil || next[i] == nil {
			return nil, nil
		}
		var err error
		if label, err = label.Expand(next[i]); err != nil {
			return nil, err
		}
		cur = next[i].EndNode
	}
	return label, nil
}

func dominatedByAny(paths []*route.Label, v []float64) bool {
	for _, p := range paths {
		if p.Dominates(v) {
			return true
		}
	}
	return false
}

// mergePareto inserts label into a Pareto-minimal set, dropping members it
// dominates. A dominated or duplicate label leaves the set unchanged.
func mergePareto(set []*route.Label, label *route.Label) []*route.Label {
	for _, m := range set {
		if m.Equal(label) || label.DominatedBy(m) {
			return set
		}
	}
	out := set[:0]
	for _, m := range set {
		if !m.DominatedBy(label) {
			out = append(out, m)
		}
	}
	return append(out, label)
}
