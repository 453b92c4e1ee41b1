package route

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/orneryd/skyline/pkg/storage"
)

// labelRecord is the serialized form of a Label. Criteria and destination are
// per-search and rebound on decode.
type labelRecord struct {
	Node  string
	Cost  []float64
	Usage map[string]float64
	Done  bool
}

// EncodeLabels serializes an ordered label list.
func EncodeLabels(labels []*Label) ([]byte, error) {
	records := make([]labelRecord, len(labels))
	for i, l := range labels {
		records[i] = labelRecord{Node: string(l.node), Cost: l.cost, Usage: l.usage, Done: l.processed}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(records); err != nil {
		return nil, fmt.Errorf("failed to encode labels: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeLabels restores a list written by EncodeLabels, binding every label to
// c and destination.
func DecodeLabels(c *Criteria, destination storage.NodeID, data []byte) ([]*Label, error) {
	var records []labelRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode labels: %w", err)
	}

	labels := make([]*Label, len(records))
	for i, r := range records {
		if len(r.Cost) != c.Len() {
			return nil, fmt.Errorf("label %d has %d costs, want %d: %w", i, len(r.Cost), c.Len(), ErrInvalidArgument)
		}
		usage := r.Usage
		if usage == nil {
			usage = make(map[string]float64)
		}
		labels[i] = &Label{
			node:      storage.NodeID(r.Node),
			dest:      destination,
			cost:      r.Cost,
			usage:     usage,
			criteria:  c,
			processed: r.Done,
		}
	}
	return labels, nil
}
