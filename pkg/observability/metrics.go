package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// View cache metrics
	CacheHitsTotal        *prometheus.CounterVec
	CacheMissesTotal      *prometheus.CounterVec
	CacheDroppedOpsTotal  *prometheus.CounterVec
	CacheExpirationsTotal prometheus.Counter
	CacheFlushesTotal     prometheus.Counter
	CacheEntries          prometheus.Gauge

	// Aggregation metrics
	ViewComputeDuration *prometheus.HistogramVec
	DecodeFailuresTotal *prometheus.CounterVec

	// Ingestion metrics
	IngestRecordsTotal prometheus.Counter
	IngestErrorsTotal  *prometheus.CounterVec
	SnapshotsStored    prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laneview_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "laneview_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "laneview_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laneview_cache_hits_total",
				Help: "Total number of view cache hits",
			},
			[]string{"key"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laneview_cache_misses_total",
				Help: "Total number of view cache misses, including expired entries",
			},
			[]string{"key"},
		),
		CacheDroppedOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laneview_cache_dropped_operations_total",
				Help: "Cache mutations skipped because the write lock was not acquired in time",
			},
			[]string{"operation"},
		),
		CacheExpirationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "laneview_cache_expirations_total",
				Help: "Total number of expired entries observed on read",
			},
		),
		CacheFlushesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "laneview_cache_flushes_total",
				Help: "Total number of full cache flushes",
			},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "laneview_cache_entries",
				Help: "Number of entries currently held by the view cache",
			},
		),

		ViewComputeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "laneview_view_compute_duration_seconds",
				Help:    "Time spent recomputing an analytics view on cache miss",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"view"},
		),
		DecodeFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laneview_decode_failures_total",
				Help: "Snapshot fields that failed to decode",
			},
			[]string{"field"},
		),

		IngestRecordsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "laneview_ingest_records_total",
				Help: "Total number of snapshot records ingested",
			},
		),
		IngestErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laneview_ingest_errors_total",
				Help: "Total number of ingestion failures",
			},
			[]string{"stage"},
		),
		SnapshotsStored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "laneview_snapshots_stored",
				Help: "Number of snapshot records in storage after the last ingest",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheDroppedOpsTotal,
		m.CacheExpirationsTotal,
		m.CacheFlushesTotal,
		m.CacheEntries,
		m.ViewComputeDuration,
		m.DecodeFailuresTotal,
		m.IngestRecordsTotal,
		m.IngestErrorsTotal,
		m.SnapshotsStored,
	)

	return m
}

// RecordCacheHit counts a view cache hit
func (m *Metrics) RecordCacheHit(key string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(key).Inc()
}

// RecordCacheMiss counts a view cache miss
func (m *Metrics) RecordCacheMiss(key string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(key).Inc()
}

// RecordCacheDropped counts a put/remove/clear skipped on lock timeout
func (m *Metrics) RecordCacheDropped(operation string) {
	if m == nil {
		return
	}
	m.CacheDroppedOpsTotal.WithLabelValues(operation).Inc()
}

// RecordCacheExpiration counts an expired entry seen on read
func (m *Metrics) RecordCacheExpiration() {
	if m == nil {
		return
	}
	m.CacheExpirationsTotal.Inc()
}

// RecordCacheFlush counts a full flush
func (m *Metrics) RecordCacheFlush() {
	if m == nil {
		return
	}
	m.CacheFlushesTotal.Inc()
}

// SetCacheEntries sets the current entry count
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

// ObserveViewCompute records how long a view recomputation took
func (m *Metrics) ObserveViewCompute(view string, d time.Duration) {
	if m == nil {
		return
	}
	m.ViewComputeDuration.WithLabelValues(view).Observe(d.Seconds())
}

// RecordDecodeFailure counts a malformed snapshot field
func (m *Metrics) RecordDecodeFailure(field string) {
	if m == nil {
		return
	}
	m.DecodeFailuresTotal.WithLabelValues(field).Inc()
}

// RecordIngest counts ingested records and updates the stored gauge
func (m *Metrics) RecordIngest(records int, stored int64) {
	if m == nil {
		return
	}
	m.IngestRecordsTotal.Add(float64(records))
	if stored >= 0 {
		m.SnapshotsStored.Set(float64(stored))
	}
}

// RecordIngestError counts a failed ingestion stage
func (m *Metrics) RecordIngestError(stage string) {
	if m == nil {
		return
	}
	m.IngestErrorsTotal.WithLabelValues(stage).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
