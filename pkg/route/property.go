package route

import (
	"math"
	"strconv"
	"strings"

	"github.com/orneryd/skyline/pkg/storage"
)

// PropertyValue reads a numeric edge property. Any Go numeric kind and numeric
// strings are accepted; anything else reports false.
func PropertyValue(edge *storage.Edge, key string) (float64, bool) {
	if edge == nil || edge.Properties == nil {
		return 0, false
	}
	return toFloat(edge.Properties[key])
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// EdgeCosts reads every criterion of edge in criteria order. A missing,
// negative or non-finite cost is fatal for the search.
func EdgeCosts(c *Criteria, edge *storage.Edge) ([]float64, error) {
	costs := make([]float64, len(c.keys))
	for i, key := range c.keys {
		v, ok := PropertyValue(edge, key)
		if !ok {
			return nil, &PropertyError{Edge: edge.ID, Key: key, Err: ErrMissingProperty}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &PropertyError{Edge: edge.ID, Key: key, Err: ErrInvalidArgument}
		}
		if v < 0 {
			return nil, &PropertyError{Edge: edge.ID, Key: key, Err: ErrNegativeWeight}
		}
		costs[i] = v
	}
	return costs, nil
}

// PropertyError describes a malformed edge property.
type PropertyError struct {
	Edge storage.EdgeID
	Key  string
	Err  error
}

func (e *PropertyError) Error() string {
	return "edge " + string(e.Edge) + " property " + strconv.Quote(e.Key) + ": " + e.Err.Error()
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}
