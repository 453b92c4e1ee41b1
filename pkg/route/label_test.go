package route

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/skyline/pkg/storage"
)

func testCriteria(t *testing.T, constraints map[string]float64, types ...string) *Criteria {
	t.Helper()
	c, err := NewCriteria([]string{"length", "cost"}, constraints, types)
	require.NoError(t, err)
	return c
}

func edge(id, from, to, typ string, props map[string]any) *storage.Edge {
	return &storage.Edge{
		ID:         storage.EdgeID(id),
		StartNode:  storage.NodeID(from),
		EndNode:    storage.NodeID(to),
		Type:       typ,
		Properties: props,
	}
}

// labelAt builds a label at node with the given costs by expanding a start
// label along one synthetic edge.
func labelAt(t *testing.T, c *Criteria, node string, length, cost float64) *Label {
	t.Helper()
	l, err := NewLabel(c, "start", "dest").Expand(edge("x", "start", node, "ROAD",
		map[string]any{"length": length, "cost": cost}))
	require.NoError(t, err)
	return l
}

func TestNewCriteria(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c, err := NewCriteria([]string{"length", "cost"}, map[string]float64{"toll": 3}, []string{"Highway", " street "})
		require.NoError(t, err)
		assert.Equal(t, []string{"length", "cost"}, c.Keys())
		assert.Equal(t, 2, c.Len())
		i, ok := c.Index("cost")
		assert.True(t, ok)
		assert.Equal(t, 1, i)
		assert.True(t, c.AllowsType("HIGHWAY"))
		assert.True(t, c.AllowsType("Street"))
		assert.False(t, c.AllowsType("rail"))
	})

	t.Run("empty type list allows everything", func(t *testing.T) {
		c, err := NewCriteria([]string{"length"}, nil, nil)
		require.NoError(t, err)
		assert.True(t, c.AllowsType("anything"))
	})

	invalid := map[string]struct {
		keys        []string
		constraints map[string]float64
	}{
		"no keys":             {keys: nil},
		"empty key":           {keys: []string{"length", ""}},
		"duplicate key":       {keys: []string{"length", "length"}},
		"negative constraint": {keys: []string{"length"}, constraints: map[string]float64{"toll": -1}},
		"nan constraint":      {keys: []string{"length"}, constraints: map[string]float64{"toll": math.NaN()}},
	}
	for name, tc := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := NewCriteria(tc.keys, tc.constraints, nil)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestLabel_Expand(t *testing.T) {
	c := testCriteria(t, map[string]float64{"toll": 5})
	start := NewLabel(c, "a", "z")
	assert.Equal(t, []float64{0, 0}, start.Cost())
	assert.True(t, start.Feasible())

	t.Run("accumulates costs and usage", func(t *testing.T) {
		ab, err := start.Expand(edge("ab", "a", "b", "ROAD", map[string]any{"length": 2, "cost": "3.5", "toll": int64(2)}))
		require.NoError(t, err)
		bc, err := ab.Expand(edge("bc", "b", "c", "ROAD", map[string]any{"length": 1.5, "cost": float32(1), "toll": 3}))
		require.NoError(t, err)

		assert.Equal(t, storage.NodeID("c"), bc.Node())
		assert.Equal(t, storage.NodeID("z"), bc.Destination())
		assert.Equal(t, []float64{3.5, 4.5}, bc.Cost())
		assert.Equal(t, 5.0, bc.Usage("toll"))
		assert.True(t, bc.Feasible())
		assert.Equal(t, 8.0, bc.Preference())

		// The parent is untouched.
		assert.Equal(t, []float64{2, 3.5}, ab.Cost())
		assert.Equal(t, 2.0, ab.Usage("toll"))
	})

	t.Run("cap exceeded", func(t *testing.T) {
		l, err := start.Expand(edge("ab", "a", "b", "ROAD", map[string]any{"length": 1, "cost": 1, "toll": 6}))
		require.NoError(t, err)
		assert.False(t, l.Feasible())
	})

	t.Run("missing resource is infinite", func(t *testing.T) {
		l, err := start.Expand(edge("ab", "a", "b", "ROAD", map[string]any{"length": 1, "cost": 1}))
		require.NoError(t, err)
		assert.True(t, math.IsInf(l.Usage("toll"), 1))
		assert.False(t, l.Feasible())
	})

	t.Run("missing cost is fatal", func(t *testing.T) {
		_, err := start.Expand(edge("ab", "a", "b", "ROAD", map[string]any{"length": 1}))
		assert.ErrorIs(t, err, ErrMissingProperty)
		var perr *PropertyError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "cost", perr.Key)
		assert.Equal(t, storage.EdgeID("ab"), perr.Edge)
	})

	t.Run("non-numeric cost is fatal", func(t *testing.T) {
		_, err := start.Expand(edge("ab", "a", "b", "ROAD", map[string]any{"length": 1, "cost": "cheap"}))
		assert.ErrorIs(t, err, ErrMissingProperty)
	})

	t.Run("negative cost is fatal", func(t *testing.T) {
		_, err := start.Expand(edge("ab", "a", "b", "ROAD", map[string]any{"length": -1, "cost": 1}))
		assert.ErrorIs(t, err, ErrNegativeWeight)
	})

	t.Run("non-finite cost is fatal", func(t *testing.T) {
		for _, v := range []any{math.NaN(), math.Inf(1), math.Inf(-1), "NaN", "+Inf"} {
			_, err := start.Expand(edge("ab", "a", "b", "ROAD", map[string]any{"length": 1, "cost": v}))
			assert.ErrorIs(t, err, ErrInvalidArgument, "cost %v", v)
			assert.NotErrorIs(t, err, ErrNegativeWeight, "cost %v", v)
		}
	})
}

func TestLabel_AllowsEdge(t *testing.T) {
	c := testCriteria(t, nil, "highway")
	l := NewLabel(c, "a", "b")
	assert.True(t, l.AllowsEdge(edge("e", "a", "b", "HIGHWAY", nil)))
	assert.False(t, l.AllowsEdge(edge("e", "a", "b", "STREET", nil)))
}

func TestLabel_Dominance(t *testing.T) {
	c := testCriteria(t, nil)

	a := labelAt(t, c, "n", 5, 5)
	same := labelAt(t, c, "n", 5, 5)
	better := labelAt(t, c, "n", 4, 5)
	tradeoff := labelAt(t, c, "n", 3, 8)
	elsewhere := labelAt(t, c, "m", 5, 5)

	t.Run("equality ignores usage and requires same node", func(t *testing.T) {
		assert.True(t, a.Equal(same))
		assert.False(t, a.Equal(elsewhere))
		assert.False(t, a.Equal(better))
		assert.Equal(t, a.Key(), same.Key())
		assert.NotEqual(t, a.Key(), elsewhere.Key())
	})

	t.Run("equal labels do not dominate each other", func(t *testing.T) {
		assert.False(t, a.DominatedBy(same))
		assert.False(t, same.DominatedBy(a))
	})

	t.Run("weak improvement dominates", func(t *testing.T) {
		assert.True(t, a.DominatedBy(better))
		assert.False(t, better.DominatedBy(a))
	})

	t.Run("trade-offs are incomparable", func(t *testing.T) {
		assert.False(t, a.DominatedBy(tradeoff))
		assert.False(t, tradeoff.DominatedBy(a))
	})

	t.Run("same cost at another node dominates", func(t *testing.T) {
		assert.True(t, a.DominatedBy(elsewhere))
	})

	t.Run("antisymmetry", func(t *testing.T) {
		all := []*Label{a, same, better, tradeoff, labelAt(t, c, "n", 9, 1), labelAt(t, c, "n", 4, 4)}
		for _, x := range all {
			for _, y := range all {
				if x.DominatedBy(y) {
					assert.False(t, y.DominatedBy(x), "%s vs %s", x, y)
				}
			}
		}
	})

	t.Run("dominated in list", func(t *testing.T) {
		assert.True(t, a.DominatedIn([]*Label{tradeoff, better}))
		assert.False(t, a.DominatedIn([]*Label{tradeoff, same}))
		assert.False(t, a.DominatedIn(nil))
	})

	t.Run("dominates vector", func(t *testing.T) {
		assert.True(t, a.Dominates([]float64{5, 5}))
		assert.True(t, a.Dominates([]float64{6, math.Inf(1)}))
		assert.False(t, a.Dominates([]float64{4, 9}))
		assert.False(t, a.Dominates([]float64{5}))
	})
}

func TestLabel_String(t *testing.T) {
	c := testCriteria(t, nil)
	assert.Equal(t, "length=6 cost=12.5", labelAt(t, c, "n", 6, 12.5).String())
}
