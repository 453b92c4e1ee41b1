package route

import (
	"math"
	"strconv"
	"strings"

	"github.com/viterin/vek"

	"github.com/orneryd/skyline/pkg/storage"
)

// Label is a partial route ending at Node. It is never mutated after
// construction; Expand returns a new Label.
type Label struct {
	node      storage.NodeID
	dest      storage.NodeID
	cost      []float64
	usage     map[string]float64
	criteria  *Criteria
	processed bool
}

// NewLabel creates the zero-cost label a search starts from.
func NewLabel(c *Criteria, start, destination storage.NodeID) *Label {
	return &Label{
		node:     start,
		dest:     destination,
		cost:     make([]float64, c.Len()),
		usage:    make(map[string]float64, len(c.constraints)),
		criteria: c,
	}
}

// Node returns the node the partial route ends at.
func (l *Label) Node() storage.NodeID { return l.node }

// Destination returns the search destination.
func (l *Label) Destination() storage.NodeID { return l.dest }

// Criteria returns the shared search configuration.
func (l *Label) Criteria() *Criteria { return l.criteria }

// Processed reports whether the search has already expanded the label.
func (l *Label) Processed() bool { return l.processed }

// AsProcessed returns a copy of l marked as expanded. Equal, Key and
// dominance ignore the mark.
func (l *Label) AsProcessed() *Label {
	out := *l
	out.processed = true
	return &out
}

// Cost returns a copy of the cost vector.
func (l *Label) Cost() []float64 {
	return append([]float64(nil), l.cost...)
}

// CostOf returns the accumulated cost of one criterion.
func (l *Label) CostOf(key string) (float64, bool) {
	i, ok := l.criteria.Index(key)
	if !ok {
		return 0, false
	}
	return l.cost[i], true
}

// Usage returns the accumulated usage of a constrained resource.
func (l *Label) Usage(key string) float64 {
	return l.usage[key]
}

// Expand extends the route along edge. Cost criteria must be present and
// non-negative. A constrained resource missing on the edge counts as +Inf,
// so the result is infeasible rather than an error; check Feasible.
func (l *Label) Expand(edge *storage.Edge) (*Label, error) {
	weights, err := EdgeCosts(l.criteria, edge)
	if err != nil {
		return nil, err
	}

	usage := make(map[string]float64, len(l.usage))
	for key := range l.criteria.constraints {
		w, ok := PropertyValue(edge, key)
		if !ok {
			w = math.Inf(1)
		}
		usage[key] = l.usage[key] + w
	}

	return &Label{
		node:     edge.EndNode,
		dest:     l.dest,
		cost:     vek.Add(l.cost, weights),
		usage:    usage,
		criteria: l.criteria,
	}, nil
}

// Feasible reports whether every accumulated resource stays within its cap.
func (l *Label) Feasible() bool {
	for key, limit := range l.criteria.constraints {
		if l.usage[key] > limit {
			return false
		}
	}
	return true
}

// AllowsEdge reports whether the type filter admits edge.
func (l *Label) AllowsEdge(edge *storage.Edge) bool {
	return l.criteria.AllowsType(edge.Type)
}

// Equal reports whether both labels end at the same node with identical
// costs. Resource usage is not compared.
func (l *Label) Equal(other *Label) bool {
	if other == nil || l.node != other.node || len(l.cost) != len(other.cost) {
		return false
	}
	return vek.All(vek.Eq(l.cost, other.cost))
}

// DominatedBy reports whether other is no worse than l on every criterion
// and is not equal to l.
func (l *Label) DominatedBy(other *Label) bool {
	if other == nil || l.Equal(other) {
		return false
	}
	return vek.All(vek.Lte(other.cost, l.cost))
}

// Dominates reports whether l is no worse than v on every criterion. Applied
// to a lower bound, it means nothing inside the bounded region can beat l.
func (l *Label) Dominates(v []float64) bool {
	if len(v) != len(l.cost) {
		return false
	}
	return vek.All(vek.Lte(l.cost, v))
}

// DominatedIn reports whether any member of list dominates l.
func (l *Label) DominatedIn(list []*Label) bool {
	for _, other := range list {
		if l.DominatedBy(other) {
			return true
		}
	}
	return false
}

// Preference is the sum of all costs, used to order the search frontier.
func (l *Label) Preference() float64 {
	return vek.Sum(l.cost)
}

// Key identifies the label exactly: node plus the bit-exact cost vector.
// Two labels have the same key iff they are Equal.
func (l *Label) Key() string {
	var b strings.Builder
	b.WriteString(string(l.node))
	for _, c := range l.cost {
		b.WriteByte('|')
		b.WriteString(strconv.FormatUint(math.Float64bits(c), 16))
	}
	return b.String()
}

// String renders the cost vector as "length=6 cost=12".
func (l *Label) String() string {
	parts := make([]string, len(l.cost))
	for i, c := range l.cost {
		parts[i] = l.criteria.keys[i] + "=" + strconv.FormatFloat(c, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
