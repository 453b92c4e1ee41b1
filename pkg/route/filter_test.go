package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/skyline/pkg/storage"
)

func ids(edges []*storage.Edge) []storage.EdgeID {
	out := make([]storage.EdgeID, len(edges))
	for i, e := range edges {
		out[i] = e.ID
	}
	return out
}

func TestFilterParallelEdges(t *testing.T) {
	t.Run("dominated parallel edge is dropped", func(t *testing.T) {
		c := testCriteria(t, nil)
		edges := []*storage.Edge{
			edge("street", "a", "b", "STREET", map[string]any{"length": 7, "cost": 7}),
			edge("highway", "a", "b", "HIGHWAY", map[string]any{"length": 2, "cost": 8}),
			edge("slow", "a", "b", "STREET", map[string]any{"length": 8, "cost": 9}),
			edge("other", "a", "c", "STREET", map[string]any{"length": 100, "cost": 100}),
		}
		assert.Equal(t, []storage.EdgeID{"street", "highway", "other"}, ids(FilterParallelEdges(c, edges)))
	})

	t.Run("type filter applies before comparison", func(t *testing.T) {
		c := testCriteria(t, nil, "street")
		edges := []*storage.Edge{
			edge("street", "a", "b", "STREET", map[string]any{"length": 7, "cost": 7}),
			edge("highway", "a", "b", "HIGHWAY", map[string]any{"length": 1, "cost": 1}),
		}
		assert.Equal(t, []storage.EdgeID{"street"}, ids(FilterParallelEdges(c, edges)))
	})

	t.Run("identical edges keep the first", func(t *testing.T) {
		c := testCriteria(t, nil)
		edges := []*storage.Edge{
			edge("e1", "a", "b", "ROAD", map[string]any{"length": 1, "cost": 1}),
			edge("e2", "a", "b", "ROAD", map[string]any{"length": 1, "cost": 1}),
		}
		assert.Equal(t, []storage.EdgeID{"e1"}, ids(FilterParallelEdges(c, edges)))
	})

	t.Run("missing property loses", func(t *testing.T) {
		c := testCriteria(t, nil)
		edges := []*storage.Edge{
			edge("partial", "a", "b", "ROAD", map[string]any{"length": 1}),
			edge("full", "a", "b", "ROAD", map[string]any{"length": 1, "cost": 50}),
		}
		kept := FilterParallelEdges(c, edges)
		require.Len(t, kept, 1)
		assert.Equal(t, storage.EdgeID("full"), kept[0].ID)
	})
}
