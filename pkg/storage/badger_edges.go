package storage

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// ============================================================================
// Node Operations
// ============================================================================

// CreateNode creates a new node in persistent storage.
func (b *BadgerEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	err := b.withUpdate(func(txn *badger.Txn) error {
		return putNode(txn, node)
	})
	if err == nil {
		b.nodeCount.Add(1)
	}
	return err
}

func putNode(txn *badger.Txn, node *Node) error {
	key := nodeKey(node.ID)
	found, err := exists(txn, key)
	if err != nil {
		return err
	}
	if found {
		return ErrAlreadyExists
	}

	data, err := encodeNode(node)
	if err != nil {
		return fmt.Errorf("failed to encode node: %w", err)
	}
	return txn.Set(key, data)
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	var node *Node
	err := b.withView(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decodeErr error
			node, decodeErr = decodeNode(val)
			return decodeErr
		})
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// BulkCreateNodes creates multiple nodes in one transaction.
func (b *BadgerEngine) BulkCreateNodes(nodes []*Node) error {
	for _, node := range nodes {
		if node == nil {
			return ErrInvalidData
		}
		if node.ID == "" {
			return ErrInvalidID
		}
	}

	err := b.withUpdate(func(txn *badger.Txn) error {
		for _, node := range nodes {
			if err := putNode(txn, node); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		b.nodeCount.Add(int64(len(nodes)))
	}
	return err
}

// ============================================================================
// Edge Operations
// ============================================================================

// CreateEdge creates a new edge between two existing nodes.
func (b *BadgerEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}

	err := b.withUpdate(func(txn *badger.Txn) error {
		return putEdge(txn, edge)
	})
	if err == nil {
		b.edgeCount.Add(1)
		b.cacheOnEdgeCreated(edge)
	}
	return err
}

func putEdge(txn *badger.Txn, edge *Edge) error {
	key := edgeKey(edge.ID)
	found, err := exists(txn, key)
	if err != nil {
		return err
	}
	if found {
		return ErrAlreadyExists
	}

	for _, endpoint := range []NodeID{edge.StartNode, edge.EndNode} {
		found, err := exists(txn, nodeKey(endpoint))
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
	}

	data, err := encodeEdge(edge)
	if err != nil {
		return fmt.Errorf("failed to encode edge: %w", err)
	}
	if err := txn.Set(key, data); err != nil {
		return err
	}
	if err := txn.Set(adjacencyKey(prefixOutgoingIndex, edge.StartNode, edge.ID), []byte{}); err != nil {
		return err
	}
	return txn.Set(adjacencyKey(prefixIncomingIndex, edge.EndNode, edge.ID), []byte{})
}

// GetEdge retrieves an edge by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	var edge *Edge
	err := b.withView(func(txn *badger.Txn) error {
		var err error
		edge, err = getEdgeInTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

func getEdgeInTxn(txn *badger.Txn, id EdgeID) (*Edge, error) {
	item, err := txn.Get(edgeKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var edge *Edge
	err = item.Value(func(val []byte) error {
		var decodeErr error
		edge, decodeErr = decodeEdge(val)
		return decodeErr
	})
	return edge, err
}

// BulkCreateEdges creates multiple edges in one transaction.
func (b *BadgerEngine) BulkCreateEdges(edges []*Edge) error {
	for _, edge := range edges {
		if edge == nil {
			return ErrInvalidData
		}
		if edge.ID == "" {
			return ErrInvalidID
		}
	}

	err := b.withUpdate(func(txn *badger.Txn) error {
		for _, edge := range edges {
			if err := putEdge(txn, edge); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		b.edgeCount.Add(int64(len(edges)))
		for _, edge := range edges {
			b.cacheOnEdgeCreated(edge)
		}
	}
	return err
}

// GetOutgoingEdges returns all edges where the given node is the source.
func (b *BadgerEngine) GetOutgoingEdges(nodeID NodeID) ([]*Edge, error) {
	return b.adjacentEdges(prefixOutgoingIndex, nodeID)
}

// GetIncomingEdges returns all edges where the given node is the target.
func (b *BadgerEngine) GetIncomingEdges(nodeID NodeID) ([]*Edge, error) {
	return b.adjacentEdges(prefixIncomingIndex, nodeID)
}

func (b *BadgerEngine) adjacentEdges(prefix byte, nodeID NodeID) ([]*Edge, error) {
	if nodeID == "" {
		return nil, ErrInvalidID
	}
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}

	if cached, ok := b.cacheGetAdjacency(prefix, nodeID); ok {
		return cached, nil
	}

	var edges []*Edge
	err := b.withView(func(txn *badger.Txn) error {
		// Index keys sort by edge ID, so the result is already ordered.
		ids := edgeIDsWithPrefix(txn, adjacencyPrefix(prefix, nodeID))
		edges = make([]*Edge, 0, len(ids))
		for _, id := range ids {
			edge, err := getEdgeInTxn(txn, id)
			if err != nil {
				return fmt.Errorf("adjacency index of %s references edge %s: %w", nodeID, id, err)
			}
			edges = append(edges, edge)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.cacheStoreAdjacency(prefix, nodeID, edges)
	return edges, nil
}
