// Package skyline computes route skylines: every start->destination path that
// no other path beats on all cost criteria at once.
//
// The Planner runs the ARSC best-first search. A Pareto-Prep pass first
// derives a global lower-bound vector. The forward search then pops frontier
// nodes, expands every pending label of the node along its admissible edges,
// and prunes with two criteria:
//
//   - Criterion I: a label is dropped once a found route dominates the lower
//     bound, or is no worse than the label itself.
//   - Criterion II: a new label enters a node's sub-route skyline only if no
//     label already there dominates it; labels it dominates are removed.
//
// Sub-route skylines live in a Store that pages whole per-node lists to a
// spill tier when the in-memory label budget is exceeded.
//
// Basic usage:
//
//	criteria, _ := route.NewCriteria([]string{"length", "cost"}, nil, nil)
//	planner := skyline.NewPlanner(engine, criteria, skyline.WithMaxLabels(100000))
//	res, err := planner.Run(ctx, "n0", "n5")
//	for _, r := range res.Routes {
//		fmt.Println(r)
//	}
package skyline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/orneryd/skyline/pkg/cache"
	"github.com/orneryd/skyline/pkg/metrics"
	"github.com/orneryd/skyline/pkg/route"
	"github.com/orneryd/skyline/pkg/spill"
	"github.com/orneryd/skyline/pkg/storage"
)

// Graph is the read-only graph access the search needs. Both storage engines
// satisfy it. Implementations must be safe for concurrent reads when used
// from Batch.
type Graph interface {
	GetOutgoingEdges(nodeID storage.NodeID) ([]*storage.Edge, error)
	GetIncomingEdges(nodeID storage.NodeID) ([]*storage.Edge, error)
}

// TierFactory creates the spill tier for one search.
type TierFactory func() (spill.Tier, error)

type options struct {
	policy    string
	maxLabels int
	tier      TierFactory
	logger    *slog.Logger
	recorder  *metrics.Recorder
}

// Option configures a Planner.
type Option func(*options)

// WithPolicy selects the eviction policy by name (see cache.Names).
func WithPolicy(name string) Option {
	return func(o *options) { o.policy = name }
}

// WithMaxLabels sets the in-memory label budget of each search. Zero means
// unlimited.
func WithMaxLabels(n int) Option {
	return func(o *options) { o.maxLabels = n }
}

// WithTier sets how each search obtains its spill tier.
func WithTier(factory TierFactory) Option {
	return func(o *options) { o.tier = factory }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics reports every search to recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(o *options) { o.recorder = recorder }
}

// Planner runs route skyline searches over one graph and criteria set. Every
// Run builds its own store, policy and spill tier, so one Planner may serve
// concurrent runs.
type Planner struct {
	graph    Graph
	criteria *route.Criteria
	opts     options
}

// NewPlanner creates a planner.
func NewPlanner(graph Graph, criteria *route.Criteria, opts ...Option) *Planner {
	o := options{policy: cache.LRU}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tier == nil {
		o.tier = func() (spill.Tier, error) { return spill.NewMemoryTier(), nil }
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{graph: graph, criteria: criteria, opts: o}
}

// Stats describes the work done by one search.
type Stats struct {
	FrontierPops     int
	Expanded         int
	Generated        int
	PrunedBound      int
	PrunedConstraint int
	PrunedDominated  int
	Relaxations      int
	Store            StoreStats
	PrepTime         time.Duration
	SearchTime       time.Duration
}

// Result is the route skyline of one search.
type Result struct {
	// Routes are mutually non-dominated full routes, sorted by cost vector.
	Routes []*route.Label
	// LowerBound is the Pareto-Prep bound vector.
	LowerBound []float64
	Stats      Stats
}

// Costs returns the cost vectors of all routes.
func (r *Result) Costs() [][]float64 {
	out := make([][]float64, len(r.Routes))
	for i, l := range r.Routes {
		out[i] = l.Cost()
	}
	return out
}

// Run computes the route skyline from start to destination. Any graph or
// spill tier failure aborts the search without a partial result.
func (p *Planner) Run(ctx context.Context, start, destination storage.NodeID) (*Result, error) {
	res, err := p.run(ctx, start, destination)
	if err != nil {
		p.opts.recorder.ObserveFailure()
		p.opts.logger.Error("route skyline search failed", "start", start, "destination", destination, "error", err)
		return nil, err
	}

	st := res.Stats
	p.opts.recorder.ObserveSearch(metrics.SearchReport{
		Duration:         st.PrepTime + st.SearchTime,
		Routes:           len(res.Routes),
		Expanded:         st.Expanded,
		Generated:        st.Generated,
		PrunedBound:      st.PrunedBound,
		PrunedConstraint: st.PrunedConstraint,
		PrunedDominated:  st.PrunedDominated,
		Spills:           st.Store.Spills,
		Faults:           st.Store.Faults,
		HitRatio:         st.Store.HitRatio,
	})
	p.opts.logger.Info("route skyline search finished",
		"start", start,
		"destination", destination,
		"routes", len(res.Routes),
		"expanded", st.Expanded,
		"spills", st.Store.Spills,
		"hit_ratio", st.Store.HitRatio,
		"elapsed", st.PrepTime+st.SearchTime,
	)
	return res, nil
}

func (p *Planner) run(ctx context.Context, start, destination storage.NodeID) (*Result, error) {
	if p.criteria == nil {
		return nil, fmt.Errorf("planner needs criteria: %w", ErrInvalidArgument)
	}
	if start == "" || destination == "" {
		return nil, fmt.Errorf("start and destination are required: %w", ErrInvalidArgument)
	}

	if start == destination {
		return &Result{
			Routes:     []*route.Label{route.NewLabel(p.criteria, start, destination)},
			LowerBound: make([]float64, p.criteria.Len()),
		}, nil
	}

	began := time.Now()
	est, err := NewParetoPrep(p.graph, p.criteria).Estimate(ctx, start, destination)
	if err != nil {
		return nil, fmt.Errorf("lower bound: %w", err)
	}
	res := &Result{LowerBound: est.Bound}
	res.Stats.Relaxations = est.Relaxations
	res.Stats.PrepTime = time.Since(began)
	p.opts.logger.Debug("lower bound computed", "bound", est.Bound, "relaxations", est.Relaxations)

	if !est.Reachable() {
		return res, nil
	}

	policy, err := cache.New[storage.NodeID](p.opts.policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	tier, err := p.opts.tier()
	if err != nil {
		return nil, fmt.Errorf("%w: open tier: %w", ErrStorageFailure, err)
	}
	store, err := NewStore(StoreConfig{
		Criteria:    p.criteria,
		Destination: destination,
		Policy:      policy,
		Tier:        tier,
		MaxLabels:   p.opts.maxLabels,
		Logger:      p.opts.logger,
	})
	if err != nil {
		tier.Close()
		return nil, err
	}
	defer store.Close()

	s := &search{
		graph:    p.graph,
		criteria: p.criteria,
		dest:     destination,
		bound:    est.Bound,
		store:    store,
		frontier: newFrontier(),
		stats:    &res.Stats,
	}

	began = time.Now()
	if err := s.run(ctx, start); err != nil {
		return nil, err
	}
	res.Stats.SearchTime = time.Since(began)
	res.Stats.Store = store.Stats()
	res.Routes = sortRoutes(s.skyline)
	return res, nil
}

// search is the state of one ARSC run.
type search struct {
	graph    Graph
	criteria *route.Criteria
	dest     storage.NodeID
	bound    []float64

	store    *Store
	frontier *frontier
	skyline  []*route.Label

	stats *Stats
}

func (s *search) run(ctx context.Context, start storage.NodeID) error {
	if _, err := s.store.Add(start, route.NewLabel(s.criteria, start, s.dest)); err != nil {
		return err
	}
	s.frontier.push(start, 0)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		node, ok := s.frontier.pop()
		if !ok {
			return nil
		}
		s.stats.FrontierPops++
		if err := s.process(node); err != nil {
			return err
		}
	}
}

// process expands every pending label of node. Expanded labels stay in the
// store marked as processed; the mark pages out with the list, so the search
// keeps no per-label state outside the label budget.
func (s *search) process(node storage.NodeID) error {
	labels, err := s.store.Get(node)
	if err != nil {
		return err
	}

	pending := labels[:0:0]
	for _, l := range labels {
		if !l.Processed() {
			pending = append(pending, l)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	edges, err := s.graph.GetOutgoingEdges(node)
	if err != nil {
		return fmt.Errorf("outgoing edges of %s: %w", node, err)
	}
	edges = route.FilterParallelEdges(s.criteria, edges)

	for _, p := range pending {
		if s.prunedByBound(p) {
			s.stats.PrunedBound++
			if _, err := s.store.RemoveSubRoute(node, p); err != nil {
				return err
			}
			continue
		}
		if _, err := s.store.MarkProcessed(node, p); err != nil {
			return err
		}

		s.stats.Expanded++
		for _, e := range edges {
			next, err := p.Expand(e)
			if err != nil {
				return err
			}
			s.stats.Generated++

			if !next.Feasible() {
				s.stats.PrunedConstraint++
				continue
			}
			if next.Node() == s.dest {
				s.addRoute(next)
				continue
			}
			if err := s.addSubRoute(next); err != nil {
				return err
			}
		}
	}
	return nil
}

// prunedByBound is Pruning Criterion I. Costs only grow along a route, so a
// found route no worse than p also beats every completion of p.
func (s *search) prunedByBound(p *route.Label) bool {
	cost := p.Cost()
	for _, r := range s.skyline {
		if r.Dominates(s.bound) || r.Dominates(cost) {
			return true
		}
	}
	return false
}

// addRoute merges a complete route into the global skyline.
func (s *search) addRoute(r *route.Label) {
	for _, m := range s.skyline {
		if m.Equal(r) || r.DominatedBy(m) {
			s.stats.PrunedDominated++
			return
		}
	}
	kept := s.skyline[:0]
	for _, m := range s.skyline {
		if m.DominatedBy(r) {
			s.stats.PrunedDominated++
			continue
		}
		kept = append(kept, m)
	}
	s.skyline = append(kept, r)
}

// addSubRoute is Pruning Criterion II.
func (s *search) addSubRoute(q *route.Label) error {
	node := q.Node()
	existing, err := s.store.Get(node)
	if err != nil {
		return err
	}
	if q.DominatedIn(existing) {
		s.stats.PrunedDominated++
		return nil
	}

	added, err := s.store.Add(node, q)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	for _, l := range existing {
		if l.DominatedBy(q) {
			s.stats.PrunedDominated++
			if _, err := s.store.RemoveSubRoute(node, l); err != nil {
				return err
			}
		}
	}
	s.frontier.push(node, q.Preference())
	return nil
}

// sortRoutes orders routes lexicographically by cost vector.
func sortRoutes(routes []*route.Label) []*route.Label {
	out := append([]*route.Label(nil), routes...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Cost(), out[j].Cost()
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	return out
}
