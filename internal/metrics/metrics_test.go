package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.GeocodeRequest(OutcomeSuccess)
	m.GeocodeRequest(OutcomeSuccess)
	m.GeocodeRequest(OutcomeFailed)
	m.GeocodeCacheHit()
	m.GeocodeRetry()
	m.BatchItem("success")
	m.BatchJobFinished("completed", 3*time.Second)
	m.DispatcherState(2, 5)

	body := scrape(t, m)

	assert.Contains(t, body, `geocode_requests_total{outcome="success"} 2`)
	assert.Contains(t, body, `geocode_requests_total{outcome="failed"} 1`)
	assert.Contains(t, body, "geocode_cache_hits_total 1")
	assert.Contains(t, body, "geocode_retries_total 1")
	assert.Contains(t, body, "dispatcher_active 2")
	assert.Contains(t, body, "dispatcher_queued 5")
	assert.Contains(t, body, `batch_items_total{status="success"} 1`)
	assert.Contains(t, body, `batch_jobs_total{status="completed"} 1`)
	assert.Contains(t, body, "batch_job_duration_seconds_count 1")
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.GeocodeRequest(OutcomeError)
		m.GeocodeCacheHit()
		m.GeocodeRetry()
		m.DispatcherState(1, 1)
		m.BatchItem("failed")
		m.BatchJobFinished("failed", time.Second)
	})
}
