package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/ristretto"
)

// Key prefixes for BadgerDB storage organization
const (
	prefixNode          = byte(0x01) // nodes:nodeID -> Node
	prefixEdge          = byte(0x02) // edges:edgeID -> Edge
	prefixOutgoingIndex = byte(0x04) // outgoing:nodeID:edgeID -> []byte{}
	prefixIncomingIndex = byte(0x05) // incoming:nodeID:edgeID -> []byte{}
)

// BadgerEngine stores the graph in BadgerDB.
//
// Outgoing and incoming edge lists are the hot path of a skyline search
// (every label expansion enumerates them), so they are served through a
// ristretto cache that is invalidated whenever an edge touching the node is
// written.
type BadgerEngine struct {
	db       *badger.DB
	mu       sync.RWMutex
	closed   bool
	inMemory bool

	adjacency *ristretto.Cache

	nodeCount atomic.Int64
	edgeCount atomic.Int64
}

// BadgerOptions configures a BadgerEngine.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool

	// Logger for BadgerDB internal logging. Nil silences Badger.
	Logger badger.Logger

	// LowMemory shrinks memtables and block caches.
	LowMemory bool

	// AdjacencyCacheEdges bounds the adjacency cache by the total number of
	// cached edges. Zero uses a default of one million; negative disables it.
	AdjacencyCacheEdges int64
}

// NewBadgerEngine opens (or creates) a persistent engine in dataDir.
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("./data/graph")
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB for testing.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{InMemory: true})
}

// NewBadgerEngineWithOptions creates a BadgerEngine with custom configuration.
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	// Nil logger keeps Badger quiet unless the caller asks otherwise.
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	if opts.LowMemory {
		badgerOpts = badgerOpts.
			WithMemTableSize(8 << 20).
			WithValueLogFileSize(32 << 20).
			WithNumMemtables(1).
			WithNumLevelZeroTables(1).
			WithNumLevelZeroTablesStall(2).
			WithBlockCacheSize(8 << 20).
			WithIndexCacheSize(4 << 20)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	engine := &BadgerEngine{
		db:       db,
		inMemory: opts.InMemory,
	}

	if opts.AdjacencyCacheEdges >= 0 {
		maxCost := opts.AdjacencyCacheEdges
		if maxCost == 0 {
			maxCost = 1 << 20
		}
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters:        maxCost * 10,
			MaxCost:            maxCost,
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create adjacency cache: %w", err)
		}
		engine.adjacency = cache
	}

	if err := engine.initializeCounts(); err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to initialize counts: %w", err)
	}

	return engine, nil
}

// IsInMemory reports whether the engine was opened without a data directory.
func (b *BadgerEngine) IsInMemory() bool {
	return b.inMemory
}

// initializeCounts scans the node and edge prefixes once so NodeCount and
// EdgeCount stay O(1) afterwards.
func (b *BadgerEngine) initializeCounts() error {
	var nodes, edges int64
	err := b.withView(func(txn *badger.Txn) error {
		var err error
		if nodes, err = countPrefix(txn, []byte{prefixNode}); err != nil {
			return err
		}
		edges, err = countPrefix(txn, []byte{prefixEdge})
		return err
	})
	if err != nil {
		return err
	}
	b.nodeCount.Store(nodes)
	b.edgeCount.Store(edges)
	return nil
}

// NodeCount returns the number of stored nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	return b.nodeCount.Load(), nil
}

// EdgeCount returns the number of stored edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	return b.edgeCount.Load(), nil
}

// Close closes the engine. Closing twice is a no-op.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.adjacency != nil {
		b.adjacency.Close()
	}
	return b.db.Close()
}

// ============================================================================
// Key encoding helpers
// ============================================================================

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

// Format: prefix + nodeID + 0x00 + edgeID
func adjacencyKey(prefix byte, nodeID NodeID, edgeID EdgeID) []byte {
	key := make([]byte, 0, 2+len(nodeID)+len(edgeID))
	key = append(key, prefix)
	key = append(key, nodeID...)
	key = append(key, 0x00)
	return append(key, edgeID...)
}

// Format: prefix + nodeID + 0x00
func adjacencyPrefix(prefix byte, nodeID NodeID) []byte {
	key := make([]byte, 0, 2+len(nodeID))
	key = append(key, prefix)
	key = append(key, nodeID...)
	return append(key, 0x00)
}

// extractEdgeIDFromIndexKey extracts the edgeID from an adjacency key.
func extractEdgeIDFromIndexKey(key []byte) EdgeID {
	if i := bytes.IndexByte(key[1:], 0x00); i >= 0 {
		return EdgeID(key[i+2:])
	}
	return ""
}

// ============================================================================
// Serialization helpers
// ============================================================================

// gob preserves the Go types of property values (int64 stays int64).
func encodeNode(n *Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeNode(data []byte) (*Node, error) {
	var node Node
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&node); err != nil {
		return nil, err
	}
	return &node, nil
}

func encodeEdge(e *Edge) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEdge(data []byte) (*Edge, error) {
	var edge Edge
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&edge); err != nil {
		return nil, err
	}
	return &edge, nil
}

// Verify BadgerEngine implements Engine interface
var _ Engine = (*BadgerEngine)(nil)
