// Package cache provides the eviction policies that decide which node's label
// list leaves memory first when a skyline store runs over its budget.
//
// Every policy tracks node identifiers, not labels. The store reports reads
// and writes through OnRead and OnWrite; Peek selects the next victim and
// stops tracking it. Policies are not safe for concurrent use: each search
// owns its store and its policy.
package cache

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPolicy is returned by New for an unrecognized policy name.
var ErrUnknownPolicy = errors.New("unknown eviction policy")

// Policy names accepted by New.
const (
	FIFO  = "fifo"
	LRU   = "lru"
	MRU   = "mru"
	LFU   = "lfu"
	LFUDA = "lfuda"
)

// Policy orders tracked ids for eviction.
type Policy[K comparable] interface {
	// Push records or reinforces the presence of id, per policy semantics.
	Push(id K)
	// OnRead is called by the store for every read of id.
	OnRead(id K)
	// OnWrite is called by the store for every write to id.
	OnWrite(id K)
	// Peek selects the current victim and stops tracking it.
	Peek() (K, bool)
	// Remove stops tracking id without selecting it.
	Remove(id K)
	// Len returns the number of tracked ids.
	Len() int

	RecordHit()
	RecordMiss()
	Hits() uint64
	Misses() uint64
	// HitRatio is hits/(hits+misses), 0 before any event.
	HitRatio() float64

	Name() string
}

// Names lists the supported policies.
func Names() []string {
	return []string{FIFO, LRU, MRU, LFU, LFUDA}
}

// New builds a policy by name (case-insensitive).
func New[K comparable](name string) (Policy[K], error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FIFO:
		return NewFIFO[K](), nil
	case LRU:
		return NewLRU[K](), nil
	case MRU:
		return NewMRU[K](), nil
	case LFU:
		return NewLFU[K](), nil
	case LFUDA:
		return NewLFUDA[K](), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// counters implements the hit/miss half of Policy.
type counters struct {
	hits   uint64
	misses uint64
}

func (c *counters) RecordHit()     { c.hits++ }
func (c *counters) RecordMiss()    { c.misses++ }
func (c *counters) Hits() uint64   { return c.hits }
func (c *counters) Misses() uint64 { return c.misses }

func (c *counters) HitRatio() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}
