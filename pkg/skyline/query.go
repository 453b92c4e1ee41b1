package skyline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/orneryd/skyline/pkg/route"
	"github.com/orneryd/skyline/pkg/storage"
)

// Query is one route skyline request. Empty Constraints or Types disable the
// corresponding filter.
type Query struct {
	ID          string             `yaml:"id"`
	Start       storage.NodeID     `yaml:"start"`
	Destination storage.NodeID     `yaml:"destination"`
	Criteria    []string           `yaml:"criteria"`
	Constraints map[string]float64 `yaml:"constraints"`
	Types       []string           `yaml:"types"`
}

// FindRoutes answers a single query.
func FindRoutes(ctx context.Context, graph Graph, q Query, opts ...Option) (*Result, error) {
	criteria, err := route.NewCriteria(q.Criteria, q.Constraints, q.Types)
	if err != nil {
		return nil, err
	}
	return NewPlanner(graph, criteria, opts...).Run(ctx, q.Start, q.Destination)
}

// BatchResult pairs a query with its answer.
type BatchResult struct {
	Query  Query
	Result *Result
}

// Batch answers queries concurrently, at most parallelism at a time
// (parallelism <= 0 means unbounded). Each query runs its own search with its
// own store, policy and spill tier. The first failure cancels the remaining
// queries and is returned.
func Batch(ctx context.Context, graph Graph, queries []Query, parallelism int, opts ...Option) ([]BatchResult, error) {
	results := make([]BatchResult, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, q := range queries {
		g.Go(func() error {
			res, err := FindRoutes(ctx, graph, q, opts...)
			if err != nil {
				name := q.ID
				if name == "" {
					name = fmt.Sprintf("#%d", i)
				}
				return fmt.Errorf("query %s (%s -> %s): %w", name, q.Start, q.Destination, err)
			}
			results[i] = BatchResult{Query: q, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
