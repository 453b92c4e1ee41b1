// Package metrics exports search performance figures to Prometheus.
//
// Each Recorder owns its registry so tests and embedded uses never collide
// with the global default registry. A nil *Recorder is valid and records
// nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pruning reasons used as the "criterion" label.
const (
	PrunedBound      = "bound"
	PrunedConstraint = "constraint"
	PrunedDominated  = "dominated"
)

// SearchReport summarizes one finished search.
type SearchReport struct {
	Duration         time.Duration
	Routes           int
	Expanded         int
	Generated        int
	PrunedBound      int
	PrunedConstraint int
	PrunedDominated  int
	Spills           uint64
	Faults           uint64
	HitRatio         float64
}

// Recorder holds the search metrics.
type Recorder struct {
	registry *prometheus.Registry

	searches  *prometheus.CounterVec
	expanded  prometheus.Counter
	generated prometheus.Counter
	pruned    *prometheus.CounterVec
	routes    prometheus.Counter
	spills    prometheus.Counter
	faults    prometheus.Counter
	hitRatio  prometheus.Gauge
	duration  prometheus.Histogram
}

// NewRecorder registers the search metrics on a fresh registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		searches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skyline_searches_total",
			Help: "Route skyline searches by outcome",
		}, []string{"outcome"}),
		expanded: factory.NewCounter(prometheus.CounterOpts{
			Name: "skyline_labels_expanded_total",
			Help: "Labels taken from a sub-route skyline and expanded",
		}),
		generated: factory.NewCounter(prometheus.CounterOpts{
			Name: "skyline_labels_generated_total",
			Help: "Labels produced by edge expansion",
		}),
		pruned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skyline_labels_pruned_total",
			Help: "Labels discarded, by pruning criterion",
		}, []string{"criterion"}),
		routes: factory.NewCounter(prometheus.CounterOpts{
			Name: "skyline_routes_found_total",
			Help: "Routes in returned skylines",
		}),
		spills: factory.NewCounter(prometheus.CounterOpts{
			Name: "skyline_spills_total",
			Help: "Sub-route skylines paged out to the spill tier",
		}),
		faults: factory.NewCounter(prometheus.CounterOpts{
			Name: "skyline_faults_total",
			Help: "Sub-route skylines paged back in from the spill tier",
		}),
		hitRatio: factory.NewGauge(prometheus.GaugeOpts{
			Name: "skyline_cache_hit_ratio",
			Help: "In-memory hit ratio of the most recent search",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "skyline_search_duration_seconds",
			Help:    "Wall time of a route skyline search",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
		}),
	}
}

// ObserveSearch records a successful search.
func (r *Recorder) ObserveSearch(rep SearchReport) {
	if r == nil {
		return
	}
	r.searches.WithLabelValues("ok").Inc()
	r.expanded.Add(float64(rep.Expanded))
	r.generated.Add(float64(rep.Generated))
	r.pruned.WithLabelValues(PrunedBound).Add(float64(rep.PrunedBound))
	r.pruned.WithLabelValues(PrunedConstraint).Add(float64(rep.PrunedConstraint))
	r.pruned.WithLabelValues(PrunedDominated).Add(float64(rep.PrunedDominated))
	r.routes.Add(float64(rep.Routes))
	r.spills.Add(float64(rep.Spills))
	r.faults.Add(float64(rep.Faults))
	r.hitRatio.Set(rep.HitRatio)
	r.duration.Observe(rep.Duration.Seconds())
}

// ObserveFailure records a search that returned an error.
func (r *Recorder) ObserveFailure() {
	if r == nil {
		return
	}
	r.searches.WithLabelValues("error").Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
