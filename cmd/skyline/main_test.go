package main

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/skyline/pkg/logging"
	"github.com/orneryd/skyline/pkg/metrics"
)

const graphYAML = `
edges:
  - {id: e1, from: n0, to: n1, type: GOES_TO, bidirectional: true, properties: {length: 7, cost: 7}}
  - {id: e2, from: n0, to: n3, type: GOES_TO, bidirectional: true, properties: {length: 3, cost: 6}}
  - {id: e3, from: n0, to: n2, type: GOES_TO, bidirectional: true, properties: {length: 4, cost: 4}}
  - {id: e4, from: n3, to: n1, type: GOES_TO, bidirectional: true, properties: {length: 2, cost: 2}}
  - {id: e5, from: n3, to: n2, type: GOES_TO, bidirectional: true, properties: {length: 3, cost: 3}}
  - {id: e6, from: n3, to: n5, type: GOES_TO, bidirectional: true, properties: {length: 3, cost: 6}}
  - {id: e7, from: n3, to: n4, type: GOES_TO, bidirectional: true, properties: {length: 5, cost: 4}}
  - {id: e8, from: n2, to: n4, type: GOES_TO, bidirectional: true, properties: {length: 5, cost: 5}}
  - {id: e9, from: n4, to: n5, type: GOES_TO, bidirectional: true, properties: {length: 1, cost: 1}}
  - {id: e10, from: n5, to: n1, type: GOES_TO, bidirectional: true, properties: {length: 7, cost: 7}}
`

// run executes the CLI with an isolated config and environment.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"SKYLINE_CONFIG", "SKYLINE_DATA_DIR", "SKYLINE_CACHE_POLICY", "SKYLINE_MAX_LABELS", "SKYLINE_MEMORY_LIMIT", "SKYLINE_SPILL_BACKEND", "SKYLINE_SPILL_DIR", "SKYLINE_CRITERIA", "SKYLINE_CONSTRAINTS", "SKYLINE_TYPES"} {
		t.Setenv(key, "")
	}
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "skyline v"+version)
}

func TestRoute_FromYAML(t *testing.T) {
	graph := writeFile(t, "graph.yaml", graphYAML)

	out, err := run(t, "route", "--yaml", graph, "--from", "n0", "--to", "n5")
	require.NoError(t, err)
	assert.Contains(t, out, "n0 -> n5: 3 route(s)")
	assert.Contains(t, out, "length=6 cost=12")
	assert.Contains(t, out, "length=9 cost=11")
	assert.Contains(t, out, "length=10 cost=10")

	out, err = run(t, "route", "--yaml", graph, "--from", "n0", "--to", "n5",
		"--constraint", "cost=11", "--policy", "lfu", "--max-labels", "2", "--spill-backend", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "2 route(s)")
	assert.NotContains(t, out, "cost=12")
}

func TestRoute_Errors(t *testing.T) {
	graph := writeFile(t, "graph.yaml", graphYAML)

	_, err := run(t, "route", "--yaml", graph, "--from", "n0")
	assert.Error(t, err)

	_, err = run(t, "route", "--yaml", graph, "--from", "n0", "--to", "n5", "--policy", "clock")
	assert.ErrorContains(t, err, "invalid configuration")

	_, err = run(t, "route", "--from", "n0", "--to", "n5")
	assert.ErrorContains(t, err, "no graph")

	_, err = run(t, "route", "--yaml", graph, "--from", "n0", "--to", "n5", "--criteria", "toll")
	assert.ErrorContains(t, err, "toll")
}

func TestLoadThenRoute(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "graph")
	nodes := writeFile(t, "nodes.csv", "id,labels,name\na,City;Port,Alpha\nb,City,Beta\nc,City,\n")
	edges := writeFile(t, "edges.csv", "id,start,end,type,length,cost\nab,a,b,ROAD,1,5\nbc,b,c,ROAD,1,5\nac,a,c,ROAD,4,1\n")

	out, err := run(t, "load", "--nodes", nodes, "--edges", edges, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 3 nodes, 3 edges")

	out, err = run(t, "route", "--data-dir", dataDir, "--from", "a", "--to", "c")
	require.NoError(t, err)
	assert.Contains(t, out, "2 route(s)")
	assert.Contains(t, out, "length=2 cost=10")
	assert.Contains(t, out, "length=4 cost=1")
}

func TestBatch(t *testing.T) {
	graph := writeFile(t, "graph.yaml", graphYAML)
	queries := writeFile(t, "queries.yaml", `
queries:
  - {id: forward, start: n0, destination: n5}
  - {id: capped, start: n0, destination: n5, constraints: {cost: 11}}
  - {id: cost-first, start: n0, destination: n5, criteria: [cost, length]}
`)

	out, err := run(t, "batch", "--yaml", graph, "--queries", queries, "--parallel", "2",
		"--policy", "lfuda", "--memory-limit", "32B")
	require.NoError(t, err)
	assert.Contains(t, out, "forward: 3 route(s)")
	assert.Contains(t, out, "capped: 2 route(s)")
	assert.Contains(t, out, "cost-first: 3 route(s)")
	assert.Contains(t, out, "cost=10 length=10")

	_, err = run(t, "batch", "--yaml", graph, "--queries", writeFile(t, "empty.yaml", "queries: []\n"))
	assert.ErrorContains(t, err, "no queries")
}

func TestServeMetrics(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.ObserveFailure()

	addr, stop, err := serveMetrics("127.0.0.1:0", rec, logging.Discard())
	require.NoError(t, err)
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `skyline_searches_total{outcome="error"} 1`)
}
