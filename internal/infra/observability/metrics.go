package observability

import (
	"strings"
	"time"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFF.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cleanearth_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cleanearth_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cleanearth_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cleanearth_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cleanearth_optimistic_mutations_total",
				Help: "Optimistic mutations by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cleanearth_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrMutation counts one optimistic mutation transition.
// kind is "booking" or "withdrawal"; outcome is "submitted",
// "reconciled" or "failed".
func (m *Metrics) IncrMutation(kind, outcome string) {
	m.mutations.WithLabelValues(kind, outcome).Inc()
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// OpsSnapshot returns a snapshot of operational metrics suitable for the
// GET /v1/metrics/ops endpoint. Request and cache counters are summed
// across every label the writers actually use, so the snapshot stays
// correct when new caches or status codes appear.
func (m *Metrics) OpsSnapshot() *domain.OpsSnapshot {
	totalRequests := m.counterTotal("cleanearth_requests_total", nil)
	errorCount := m.counterTotal("cleanearth_requests_total", func(labels map[string]string) bool {
		return strings.HasPrefix(labels["status"], "5")
	})
	cacheHits := m.counterTotal("cleanearth_cache_hits_total", nil)
	cacheMisses := m.counterTotal("cleanearth_cache_misses_total", nil)

	submitted := getCounterValue(m.mutations, "booking", "submitted") +
		getCounterValue(m.mutations, "withdrawal", "submitted")
	reconciled := getCounterValue(m.mutations, "booking", "reconciled") +
		getCounterValue(m.mutations, "withdrawal", "reconciled")
	failed := getCounterValue(m.mutations, "booking", "failed") +
		getCounterValue(m.mutations, "withdrawal", "failed")

	errorRate := float64(0)
	cacheHitRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.OpsSnapshot{
		TotalRequests:       int64(totalRequests),
		ErrorRate:           errorRate,
		CacheHitRate:        cacheHitRate,
		MutationsSubmitted:  int64(submitted),
		MutationsReconciled: int64(reconciled),
		MutationsFailed:     int64(failed),
		Period:              "all_time",
	}
}

// counterTotal sums every series of the named counter family whose
// labels satisfy pred. A nil pred sums the whole family.
func (m *Metrics) counterTotal(name string, pred func(map[string]string) bool) float64 {
	families, err := m.Registry.Gather()
	if err != nil {
		return 0
	}
	var total float64
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if pred != nil {
				labels := make(map[string]string, len(metric.GetLabel()))
				for _, l := range metric.GetLabel() {
					labels[l.GetName()] = l.GetValue()
				}
				if !pred(labels) {
					continue
				}
			}
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
	}
	return total
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
