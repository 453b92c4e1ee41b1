package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// GraphFile is the YAML graph fixture format.
//
//	nodes:
//	  - id: n0
//	    labels: [City]
//	edges:
//	  - id: e01
//	    from: n0
//	    to: n1
//	    type: GOES_TO
//	    bidirectional: true
//	    properties: {length: 7, cost: 7}
//
// Nodes referenced only by edges are created implicitly.
type GraphFile struct {
	Nodes []GraphFileNode `yaml:"nodes"`
	Edges []GraphFileEdge `yaml:"edges"`
}

// GraphFileNode is one node entry of a GraphFile.
type GraphFileNode struct {
	ID         string         `yaml:"id"`
	Labels     []string       `yaml:"labels"`
	Properties map[string]any `yaml:"properties"`
}

// GraphFileEdge is one edge entry of a GraphFile. Bidirectional edges also
// create the reverse edge with ID suffix "-rev".
type GraphFileEdge struct {
	ID            string         `yaml:"id"`
	From          string         `yaml:"from"`
	To            string         `yaml:"to"`
	Type          string         `yaml:"type"`
	Bidirectional bool           `yaml:"bidirectional"`
	Properties    map[string]any `yaml:"properties"`
}

// LoadStats reports what a loader created.
type LoadStats struct {
	Nodes int
	Edges int
}

// LoadYAMLFile loads a GraphFile from disk into engine.
func LoadYAMLFile(engine Engine, path string) (LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadStats{}, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer f.Close()
	return LoadYAML(engine, f)
}

// LoadYAML decodes a GraphFile and writes it into engine.
func LoadYAML(engine Engine, r io.Reader) (LoadStats, error) {
	var file GraphFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return LoadStats{}, fmt.Errorf("failed to parse graph file: %w", err)
	}

	b := newGraphBuilder(engine)
	for _, n := range file.Nodes {
		b.addNode(&Node{ID: NodeID(n.ID), Labels: n.Labels, Properties: n.Properties})
	}
	for i, e := range file.Edges {
		id := e.ID
		if id == "" {
			id = fmt.Sprintf("e%d", i)
		}
		b.addEdge(&Edge{
			ID:         EdgeID(id),
			StartNode:  NodeID(e.From),
			EndNode:    NodeID(e.To),
			Type:       e.Type,
			Properties: e.Properties,
		})
		if e.Bidirectional {
			b.addEdge(&Edge{
				ID:         EdgeID(id + "-rev"),
				StartNode:  NodeID(e.To),
				EndNode:    NodeID(e.From),
				Type:       e.Type,
				Properties: e.Properties,
			})
		}
	}
	return b.flush()
}

// LoadCSV imports nodes and edges from CSV. nodes may be nil.
//
// The nodes file needs an "id" column and may carry "labels" (separated by
// ';'); every other column becomes a property. The edges file needs "id",
// "start", "end" and "type" columns; every other column becomes an edge
// property. Numeric cells are stored as float64, empty cells are skipped.
func LoadCSV(engine Engine, nodes, edges io.Reader) (LoadStats, error) {
	b := newGraphBuilder(engine)

	if nodes != nil {
		err := readCSV(nodes, []string{"id"}, func(row map[string]string, props map[string]any) error {
			n := &Node{ID: NodeID(row["id"]), Properties: props}
			if labels := row["labels"]; labels != "" {
				n.Labels = strings.Split(labels, ";")
			}
			delete(props, "labels")
			b.addNode(n)
			return nil
		})
		if err != nil {
			return LoadStats{}, fmt.Errorf("nodes csv: %w", err)
		}
	}

	err := readCSV(edges, []string{"id", "start", "end", "type"}, func(row map[string]string, props map[string]any) error {
		b.addEdge(&Edge{
			ID:         EdgeID(row["id"]),
			StartNode:  NodeID(row["start"]),
			EndNode:    NodeID(row["end"]),
			Type:       row["type"],
			Properties: props,
		})
		return nil
	})
	if err != nil {
		return LoadStats{}, fmt.Errorf("edges csv: %w", err)
	}
	return b.flush()
}

func readCSV(r io.Reader, required []string, fn func(row map[string]string, props map[string]any) error) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	reserved := make(map[string]bool, len(required))
	for _, col := range required {
		reserved[col] = true
		if !containsString(header, col) {
			return fmt.Errorf("missing column %q: %w", col, ErrInvalidData)
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		row := make(map[string]string, len(header))
		props := make(map[string]any)
		for i, col := range header {
			cell := strings.TrimSpace(record[i])
			row[col] = cell
			if reserved[col] || cell == "" {
				continue
			}
			if f, err := strconv.ParseFloat(cell, 64); err == nil {
				props[col] = f
			} else {
				props[col] = cell
			}
		}
		if err := fn(row, props); err != nil {
			return err
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// graphBuilder buffers nodes and edges so they can be bulk-created, filling
// in endpoint nodes that were never declared.
type graphBuilder struct {
	engine Engine
	nodes  []*Node
	known  map[NodeID]bool
	edges  []*Edge
}

func newGraphBuilder(engine Engine) *graphBuilder {
	return &graphBuilder{engine: engine, known: make(map[NodeID]bool)}
}

func (b *graphBuilder) addNode(n *Node) {
	if b.known[n.ID] {
		return
	}
	b.known[n.ID] = true
	b.nodes = append(b.nodes, n)
}

func (b *graphBuilder) addEdge(e *Edge) {
	b.edges = append(b.edges, e)
	for _, id := range []NodeID{e.StartNode, e.EndNode} {
		if id != "" {
			b.addNode(&Node{ID: id})
		}
	}
}

func (b *graphBuilder) flush() (LoadStats, error) {
	// Skip nodes that already exist so repeated imports can add edges to an
	// existing graph.
	fresh := make([]*Node, 0, len(b.nodes))
	for _, n := range b.nodes {
		_, err := b.engine.GetNode(n.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return LoadStats{}, err
		}
		fresh = append(fresh, n)
	}

	if err := b.engine.BulkCreateNodes(fresh); err != nil {
		return LoadStats{}, fmt.Errorf("failed to create nodes: %w", err)
	}
	if err := b.engine.BulkCreateEdges(b.edges); err != nil {
		return LoadStats{}, fmt.Errorf("failed to create edges: %w", err)
	}
	return LoadStats{Nodes: len(fresh), Edges: len(b.edges)}, nil
}
