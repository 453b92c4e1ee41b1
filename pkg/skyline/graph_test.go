package skyline

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/orneryd/skyline/pkg/route"
	"github.com/orneryd/skyline/pkg/storage"
)

// testEdge is an undirected fixture edge expanded into both directions.
type testEdge struct {
	from, to     string
	typ          string
	length, cost float64
}

func buildGraph(t *testing.T, edges []testEdge, bidirectional bool) *storage.MemoryEngine {
	t.Helper()
	engine := storage.NewMemoryEngine()
	t.Cleanup(func() { engine.Close() })

	seen := map[string]bool{}
	var nodes []*storage.Node
	var out []*storage.Edge
	add := func(id, from, to string, e testEdge) {
		for _, n := range []string{from, to} {
			if !seen[n] {
				seen[n] = true
				nodes = append(nodes, &storage.Node{ID: storage.NodeID(n)})
			}
		}
		out = append(out, &storage.Edge{
			ID:         storage.EdgeID(id),
			StartNode:  storage.NodeID(from),
			EndNode:    storage.NodeID(to),
			Type:       e.typ,
			Properties: map[string]any{"length": e.length, "cost": e.cost},
		})
	}
	for i, e := range edges {
		add(fmt.Sprintf("e%03d", i), e.from, e.to, e)
		if bidirectional {
			add(fmt.Sprintf("e%03d-rev", i), e.to, e.from, e)
		}
	}
	require.NoError(t, engine.BulkCreateNodes(nodes))
	require.NoError(t, engine.BulkCreateEdges(out))
	return engine
}

// brscEdges is the six-node reference graph: three trade-off routes lead
// from n0 to n5.
var brscEdges = []testEdge{
	{"n0", "n1", "GOES_TO", 7, 7},
	{"n0", "n3", "GOES_TO", 3, 6},
	{"n0", "n2", "GOES_TO", 4, 4},
	{"n3", "n1", "GOES_TO", 2, 2},
	{"n3", "n2", "GOES_TO", 3, 3},
	{"n3", "n5", "GOES_TO", 3, 6},
	{"n3", "n4", "GOES_TO", 5, 4},
	{"n2", "n4", "GOES_TO", 5, 5},
	{"n4", "n5", "GOES_TO", 1, 1},
	{"n5", "n1", "GOES_TO", 7, 7},
}

// multiEdges adds HIGHWAY edges parallel to some STREET edges of brscEdges.
var multiEdges = []testEdge{
	{"n0", "n1", "STREET", 7, 7},
	{"n0", "n1", "HIGHWAY", 2, 8},
	{"n0", "n3", "STREET", 3, 6},
	{"n0", "n2", "STREET", 4, 4},
	{"n3", "n1", "STREET", 2, 2},
	{"n3", "n1", "HIGHWAY", 6, 8},
	{"n3", "n2", "STREET", 3, 3},
	{"n3", "n5", "STREET", 3, 6},
	{"n3", "n4", "STREET", 5, 4},
	{"n3", "n4", "HIGHWAY", 3, 2},
	{"n2", "n4", "STREET", 5, 5},
	{"n4", "n5", "STREET", 1, 1},
	{"n4", "n5", "HIGHWAY", 1, 6},
	{"n5", "n1", "STREET", 7, 7},
	{"n5", "n1", "HIGHWAY", 7, 4},
}

// diamondEdges is a directed s..t graph with two skyline routes.
var diamondEdges = []testEdge{
	{"s", "a", "STREET", 2, 2},
	{"s", "c", "STREET", 3, 6},
	{"s", "b", "STREET", 3, 5},
	{"a", "c", "STREET", 2, 2},
	{"b", "d", "STREET", 4, 5},
	{"c", "d", "STREET", 3, 4},
	{"c", "t", "STREET", 5, 8},
	{"d", "t", "STREET", 4, 7},
}

// randomEdges builds a reproducible directed graph on n nodes without self
// loops. Weights are small integers so many routes tie or trade off.
func randomEdges(seed int64, n, m int) []testEdge {
	rng := rand.New(rand.NewSource(seed))
	edges := make([]testEdge, 0, m)
	types := []string{"STREET", "HIGHWAY"}
	for len(edges) < m {
		a, b := rng.Intn(n), rng.Intn(n)
		if a == b {
			continue
		}
		edges = append(edges, testEdge{
			from:   fmt.Sprintf("v%d", a),
			to:     fmt.Sprintf("v%d", b),
			typ:    types[rng.Intn(len(types))],
			length: float64(1 + rng.Intn(9)),
			cost:   float64(rng.Intn(9)),
		})
	}
	return edges
}

// bruteForceSkyline enumerates every simple path, applying the same edge
// admissibility rules as the planner, and returns the distinct
// non-dominated cost vectors sorted lexicographically.
func bruteForceSkyline(t *testing.T, g Graph, c *route.Criteria, start, dest storage.NodeID) [][]float64 {
	t.Helper()
	var found []*route.Label
	visited := map[storage.NodeID]bool{start: true}

	var walk func(l *route.Label)
	walk = func(l *route.Label) {
		if l.Node() == dest {
			found = append(found, l)
			return
		}
		edges, err := g.GetOutgoingEdges(l.Node())
		require.NoError(t, err)
		for _, e := range route.FilterParallelEdges(c, edges) {
			if visited[e.EndNode] {
				continue
			}
			next, err := l.Expand(e)
			require.NoError(t, err)
			if !next.Feasible() {
				continue
			}
			visited[e.EndNode] = true
			walk(next)
			visited[e.EndNode] = false
		}
	}
	walk(route.NewLabel(c, start, dest))

	var sky []*route.Label
	for _, l := range found {
		sky = mergePareto(sky, l)
	}
	return sortedCosts(sky)
}

func sortedCosts(labels []*route.Label) [][]float64 {
	out := make([][]float64, len(labels))
	for i, l := range labels {
		out[i] = l.Cost()
	}
	sort.Slice(out, func(i, j int) bool {
		for k := range out[i] {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}

// dijkstraOracle returns, per criterion, the single-criterion shortest
// distance from start to dest over type-admissible edges, computed by gonum.
func dijkstraOracle(t *testing.T, edges []testEdge, bidirectional bool, c *route.Criteria, start, dest string) []float64 {
	t.Helper()
	ids := map[string]int64{}
	id := func(name string) int64 {
		if v, ok := ids[name]; ok {
			return v
		}
		ids[name] = int64(len(ids))
		return ids[name]
	}
	id(start)
	id(dest)

	out := make([]float64, c.Len())
	for i, key := range c.Keys() {
		g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
		g.AddNode(simple.Node(ids[start]))
		if dest != start {
			g.AddNode(simple.Node(ids[dest]))
		}
		set := func(from, to string, e testEdge) {
			w := e.length
			if key == "cost" {
				w = e.cost
			}
			u, v := id(from), id(to)
			if old, ok := g.Weight(u, v); ok && old <= w {
				return
			}
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(u), simple.Node(v), w))
		}
		for _, e := range edges {
			if !c.AllowsType(e.typ) {
				continue
			}
			set(e.from, e.to, e)
			if bidirectional {
				set(e.to, e.from, e)
			}
		}
		out[i] = path.DijkstraFrom(simple.Node(ids[start]), g).WeightTo(ids[dest])
	}
	return out
}

func mustCriteria(t *testing.T, constraints map[string]float64, types ...string) *route.Criteria {
	t.Helper()
	c, err := route.NewCriteria([]string{"length", "cost"}, constraints, types)
	require.NoError(t, err)
	return c
}
