package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome của một lần geocode
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
	OutcomeError   = "error"
)

// Metrics gom các collector Prometheus của service trên một registry riêng.
// Mọi method đều an toàn với receiver nil để component có thể chạy không metrics.
type Metrics struct {
	registry *prometheus.Registry

	geocodeRequests  *prometheus.CounterVec
	geocodeCacheHits prometheus.Counter
	geocodeRetries   prometheus.Counter
	dispatcherActive prometheus.Gauge
	dispatcherQueued prometheus.Gauge
	batchJobs        *prometheus.CounterVec
	batchItems       *prometheus.CounterVec
	batchJobDuration prometheus.Histogram
}

// New tạo mới Metrics và đăng ký toàn bộ collector
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		geocodeRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geocode_requests_total",
				Help: "Total geocode lookups sent to the provider by outcome",
			},
			[]string{"outcome"},
		),
		geocodeCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geocode_cache_hits_total",
			Help: "Total geocode lookups served from cache",
		}),
		geocodeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geocode_retries_total",
			Help: "Total provider retries after transient failures",
		}),
		dispatcherActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatcher_active",
			Help: "Provider calls currently holding a dispatcher slot",
		}),
		dispatcherQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatcher_queued",
			Help: "Callers waiting for a dispatcher slot",
		}),
		batchJobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batch_jobs_total",
				Help: "Batch jobs that reached a terminal status",
			},
			[]string{"status"},
		),
		batchItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batch_items_total",
				Help: "Batch rows processed by status",
			},
			[]string{"status"},
		),
		batchJobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_job_duration_seconds",
			Help:    "Wall-clock duration of batch jobs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),
	}

	m.registry.MustRegister(
		m.geocodeRequests,
		m.geocodeCacheHits,
		m.geocodeRetries,
		m.dispatcherActive,
		m.dispatcherQueued,
		m.batchJobs,
		m.batchItems,
		m.batchJobDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry trả về registry để test hoặc gắn thêm collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler trả về http.Handler phục vụ /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GeocodeRequest đếm một lần gọi provider theo outcome
func (m *Metrics) GeocodeRequest(outcome string) {
	if m == nil {
		return
	}
	m.geocodeRequests.WithLabelValues(outcome).Inc()
}

// GeocodeCacheHit đếm một lần trúng cache
func (m *Metrics) GeocodeCacheHit() {
	if m == nil {
		return
	}
	m.geocodeCacheHits.Inc()
}

// GeocodeRetry đếm một lần retry
func (m *Metrics) GeocodeRetry() {
	if m == nil {
		return
	}
	m.geocodeRetries.Inc()
}

// DispatcherState cập nhật gauge của dispatcher
func (m *Metrics) DispatcherState(active, queued int64) {
	if m == nil {
		return
	}
	m.dispatcherActive.Set(float64(active))
	m.dispatcherQueued.Set(float64(queued))
}

// BatchItem đếm một dòng đã xử lý
func (m *Metrics) BatchItem(status string) {
	if m == nil {
		return
	}
	m.batchItems.WithLabelValues(status).Inc()
}

// BatchJobFinished ghi nhận job kết thúc
func (m *Metrics) BatchJobFinished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batchJobs.WithLabelValues(status).Inc()
	m.batchJobDuration.Observe(elapsed.Seconds())
}
