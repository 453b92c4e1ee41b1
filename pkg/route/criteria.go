// Package route models partial routes (labels) and Pareto dominance between
// them.
//
// A Label is an immutable partial route ending at a node: the accumulated
// cost per criterion, the accumulated usage of each resource-constrained
// property, and a pointer to the shared Criteria describing what is tracked.
// Costs are minimized. Label B dominates label A when B is not equal to A and
// B is no worse than A on every criterion.
package route

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidArgument reports malformed search configuration or input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMissingProperty reports an edge without a required cost property.
	ErrMissingProperty = errors.New("missing cost property")
	// ErrNegativeWeight reports an edge cost below zero.
	ErrNegativeWeight = errors.New("negative edge weight")
)

// Criteria is the immutable configuration shared by every label of one search.
type Criteria struct {
	keys        []string
	index       map[string]int
	constraints map[string]float64
	types       map[string]struct{}
}

// NewCriteria validates and freezes a search configuration.
//
// keys are the ordered cost criteria, constraints caps accumulated resource
// usage per property, and types restricts traversal to edges of the given
// types (case-insensitive). Empty constraints or types disable that filter.
func NewCriteria(keys []string, constraints map[string]float64, types []string) (*Criteria, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one criterion is required: %w", ErrInvalidArgument)
	}

	c := &Criteria{
		keys:        make([]string, len(keys)),
		index:       make(map[string]int, len(keys)),
		constraints: make(map[string]float64, len(constraints)),
		types:       make(map[string]struct{}, len(types)),
	}
	for i, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("criterion %d is empty: %w", i, ErrInvalidArgument)
		}
		if _, dup := c.index[k]; dup {
			return nil, fmt.Errorf("duplicate criterion %q: %w", k, ErrInvalidArgument)
		}
		c.keys[i] = k
		c.index[k] = i
	}
	for k, limit := range constraints {
		if k == "" || math.IsNaN(limit) || limit < 0 {
			return nil, fmt.Errorf("constraint %q=%v: %w", k, limit, ErrInvalidArgument)
		}
		c.constraints[k] = limit
	}
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			c.types[strings.ToLower(t)] = struct{}{}
		}
	}
	return c, nil
}

// Keys returns a copy of the ordered criterion keys.
func (c *Criteria) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Len returns the number of criteria.
func (c *Criteria) Len() int {
	return len(c.keys)
}

// Index returns the position of key in the cost vector.
func (c *Criteria) Index(key string) (int, bool) {
	i, ok := c.index[key]
	return i, ok
}

// Constraints returns a copy of the resource caps.
func (c *Criteria) Constraints() map[string]float64 {
	out := make(map[string]float64, len(c.constraints))
	for k, v := range c.constraints {
		out[k] = v
	}
	return out
}

// AllowsType reports whether edges of edgeType may be traversed.
func (c *Criteria) AllowsType(edgeType string) bool {
	if len(c.types) == 0 {
		return true
	}
	_, ok := c.types[strings.ToLower(edgeType)]
	return ok
}
