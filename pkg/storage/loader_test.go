package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	t.Run("bidirectional edges and implicit nodes", func(t *testing.T) {
		engine := NewMemoryEngine()
		defer engine.Close()

		stats, err := LoadYAML(engine, strings.NewReader(`
nodes:
  - id: n0
    labels: [City]
edges:
  - id: e01
    from: n0
    to: n1
    type: GOES_TO
    bidirectional: true
    properties: {length: 7, cost: 7.5}
`))
		require.NoError(t, err)
		assert.Equal(t, LoadStats{Nodes: 2, Edges: 2}, stats)

		rev, err := engine.GetEdge("e01-rev")
		require.NoError(t, err)
		assert.Equal(t, NodeID("n1"), rev.StartNode)
		assert.Equal(t, NodeID("n0"), rev.EndNode)
		assert.Equal(t, 7, rev.Properties["length"])
		assert.Equal(t, 7.5, rev.Properties["cost"])
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "graph.yaml")
		require.NoError(t, os.WriteFile(path, []byte("edges:\n  - {id: x, from: a, to: b, type: ROAD}\n"), 0644))

		engine := NewMemoryEngine()
		defer engine.Close()
		stats, err := LoadYAMLFile(engine, path)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Edges)
	})

	t.Run("malformed", func(t *testing.T) {
		engine := NewMemoryEngine()
		defer engine.Close()
		_, err := LoadYAML(engine, strings.NewReader("edges: {not: [a list"))
		assert.Error(t, err)
	})
}

func TestLoadCSV(t *testing.T) {
	engine, err := NewBadgerEngineInMemory()
	require.NoError(t, err)
	defer engine.Close()

	nodes := "id,labels,name\ns,Depot;Hub,Start\nt,,\n"
	edges := "id,start,end,type,length,toll,note\n" +
		"st,s,t,ROAD,3,1.5,fast\n" +
		"ts,t,s,ROAD,3,,\n" +
		"su,s,u,RAIL,10,0,\n"

	stats, err := LoadCSV(engine, strings.NewReader(nodes), strings.NewReader(edges))
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Nodes: 3, Edges: 3}, stats)

	s, err := engine.GetNode("s")
	require.NoError(t, err)
	assert.Equal(t, []string{"Depot", "Hub"}, s.Labels)
	assert.Equal(t, "Start", s.Properties["name"])

	st, err := engine.GetEdge("st")
	require.NoError(t, err)
	assert.Equal(t, 3.0, st.Properties["length"])
	assert.Equal(t, 1.5, st.Properties["toll"])
	assert.Equal(t, "fast", st.Properties["note"])

	ts, err := engine.GetEdge("ts")
	require.NoError(t, err)
	_, hasToll := ts.Properties["toll"]
	assert.False(t, hasToll)

	t.Run("missing column", func(t *testing.T) {
		_, err := LoadCSV(NewMemoryEngine(), nil, strings.NewReader("id,start,end\na,b,c\n"))
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("second import reuses nodes", func(t *testing.T) {
		stats, err := LoadCSV(engine, nil, strings.NewReader("id,start,end,type,length\nut,u,t,ROAD,1\n"))
		require.NoError(t, err)
		assert.Equal(t, LoadStats{Nodes: 0, Edges: 1}, stats)
	})
}
