package prefetch

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle,
// the retry controller, the cache and the hydration store. It is safe for
// concurrent use; a nil collector is a no-op.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   prometheus.Gauge

	deduplicationHits *prometheus.CounterVec

	hydrationKeys prometheus.Gauge

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "prefetch_requests_total",
				Help: "Total number of HTTP requests made",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prefetch_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prefetch_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "prefetch_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "prefetch_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"method", "endpoint"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "prefetch_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"method", "endpoint"},
		),
		cacheSize: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "prefetch_cache_size",
				Help: "Current number of entries in the cache",
			},
		),
		deduplicationHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "prefetch_deduplication_hits_total",
				Help: "Total number of requests coalesced into an in-flight call",
			},
			[]string{"method", "endpoint"},
		),
		hydrationKeys: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "prefetch_hydration_store_keys",
				Help: "Current number of keys in the hydration data store",
			},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "prefetch_errors_total",
				Help: "Total number of errors by category",
			},
			[]string{"type", "method", "endpoint"},
		),
	}
}

// RecordRequestStart marks a request as in flight.
func (m *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if m == nil {
		return
	}
	m.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd marks a request as no longer in flight.
func (m *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if m == nil {
		return
	}
	m.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRequest records a completed request with its final status code.
func (m *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(statusCode)
	m.requestsTotal.WithLabelValues(method, code, endpoint).Inc()
	m.requestDuration.WithLabelValues(method, code, endpoint).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt.
func (m *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordCacheHit records a cache hit.
func (m *MetricsCollector) RecordCacheHit(method, endpoint string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *MetricsCollector) RecordCacheMiss(method, endpoint string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheSize records the current cache entry count.
func (m *MetricsCollector) RecordCacheSize(size int) {
	if m == nil {
		return
	}
	m.cacheSize.Set(float64(size))
}

// RecordDeduplicationHit records a request served by an in-flight call.
func (m *MetricsCollector) RecordDeduplicationHit(method, endpoint string) {
	if m == nil {
		return
	}
	m.deduplicationHits.WithLabelValues(method, endpoint).Inc()
}

// RecordHydrationKeys records the current hydration store key count.
func (m *MetricsCollector) RecordHydrationKeys(count int) {
	if m == nil {
		return
	}
	m.hydrationKeys.Set(float64(count))
}

// RecordError records an error by category.
func (m *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}
