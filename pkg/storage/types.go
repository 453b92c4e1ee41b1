// Package storage provides the graph store consumed by the route skyline engine.
//
// Two engines implement Engine:
//   - MemoryEngine: maps and adjacency indexes, for tests and graphs that fit in RAM
//   - BadgerEngine: persistent BadgerDB storage with a read-through adjacency cache
//
// The search core only needs outgoing and incoming edge enumeration plus edge
// properties; everything else here exists to build and import graphs.
package storage

// NodeID uniquely identifies a node.
type NodeID string

// EdgeID uniquely identifies an edge.
type EdgeID string

// Node is a graph vertex with optional labels and properties.
type Node struct {
	ID         NodeID
	Labels     []string
	Properties map[string]any
}

// Edge is a directed, typed relationship. Cost criteria and resource weights
// live in Properties, keyed by criterion name.
type Edge struct {
	ID         EdgeID
	StartNode  NodeID
	EndNode    NodeID
	Type       string
	Properties map[string]any
}

// Engine is the storage contract shared by MemoryEngine and BadgerEngine.
type Engine interface {
	CreateNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	CreateEdge(edge *Edge) error
	GetEdge(id EdgeID) (*Edge, error)

	// GetOutgoingEdges returns edges whose StartNode is nodeID, ordered by edge ID.
	GetOutgoingEdges(nodeID NodeID) ([]*Edge, error)
	// GetIncomingEdges returns edges whose EndNode is nodeID, ordered by edge ID.
	GetIncomingEdges(nodeID NodeID) ([]*Edge, error)

	BulkCreateNodes(nodes []*Node) error
	BulkCreateEdges(edges []*Edge) error

	NodeCount() (int64, error)
	EdgeCount() (int64, error)
	Close() error
}

func copyProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func copyNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		ID:         n.ID,
		Properties: copyProperties(n.Properties),
	}
	if n.Labels != nil {
		out.Labels = append([]string(nil), n.Labels...)
	}
	return out
}

func copyEdge(e *Edge) *Edge {
	if e == nil {
		return nil
	}
	return &Edge{
		ID:         e.ID,
		StartNode:  e.StartNode,
		EndNode:    e.EndNode,
		Type:       e.Type,
		Properties: copyProperties(e.Properties),
	}
}
