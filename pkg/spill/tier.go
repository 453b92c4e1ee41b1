// Package spill provides durable storage for label lists paged out of a
// skyline store.
//
// A Tier is a flat key/value space scoped to one run: every tier instance
// carries its own run namespace, so several searches may share one database
// without seeing each other's records. Values are opaque; the store encodes
// label lists before saving them.
package spill

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTierClosed is returned by operations on a closed tier.
var ErrTierClosed = errors.New("spill tier closed")

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Tier stores whole records keyed by node id.
type Tier interface {
	// Save writes (or replaces) the record for key.
	Save(key string, data []byte) error
	// Load returns the record for key and whether it exists.
	Load(key string) ([]byte, bool, error)
	// Delete removes the record for key; deleting a missing key is not an error.
	Delete(key string) error
	// Close removes every record of this run and releases owned resources.
	Close() error
}

// Open creates a tier for backend. dir is the data directory for badger, or
// the database file for sqlite; an empty dir keeps either backend in memory.
func Open(backend, dir string) (Tier, error) {
	switch strings.ToLower(backend) {
	case "", BackendMemory:
		return NewMemoryTier(), nil
	case BackendBadger:
		return OpenBadgerTier(dir)
	case BackendSQLite:
		return OpenSQLiteTier(dir)
	default:
		return nil, fmt.Errorf("unknown spill backend %q", backend)
	}
}
