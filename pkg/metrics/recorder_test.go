package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveSearch(t *testing.T) {
	r := NewRecorder()
	rep := SearchReport{
		Duration:         12 * time.Millisecond,
		Routes:           3,
		Expanded:         10,
		Generated:        25,
		PrunedBound:      1,
		PrunedConstraint: 2,
		PrunedDominated:  7,
		Spills:           4,
		Faults:           2,
		HitRatio:         0.5,
	}
	r.ObserveSearch(rep)
	r.ObserveSearch(rep)
	r.ObserveFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.searches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.searches.WithLabelValues("error")))
	assert.Equal(t, 20.0, testutil.ToFloat64(r.expanded))
	assert.Equal(t, 50.0, testutil.ToFloat64(r.generated))
	assert.Equal(t, 14.0, testutil.ToFloat64(r.pruned.WithLabelValues(PrunedDominated)))
	assert.Equal(t, 6.0, testutil.ToFloat64(r.routes))
	assert.Equal(t, 8.0, testutil.ToFloat64(r.spills))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.faults))
	assert.Equal(t, 0.5, testutil.ToFloat64(r.hitRatio))
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveSearch(SearchReport{Routes: 1})
		r.ObserveFailure()
	})
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveSearch(SearchReport{Routes: 2})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "skyline_routes_found_total 2"), body)
	assert.Contains(t, body, "skyline_search_duration_seconds_bucket")
}
