package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	require.NotNil(t, metrics)

	assert.NotNil(t, metrics.HTTPRequestsTotal)
	assert.NotNil(t, metrics.CacheHitsTotal)
	assert.NotNil(t, metrics.ViewComputeDuration)
	assert.NotNil(t, metrics.IngestRecordsTotal)

	assert.Panics(t, func() { NewMetrics(registry) }, "double registration must panic")
}

func TestMetrics_Recorders(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordCacheHit("totalVolume")
	metrics.RecordCacheHit("totalVolume")
	metrics.RecordCacheMiss("bottlenecks")
	metrics.RecordCacheDropped("put")
	metrics.RecordCacheExpiration()
	metrics.RecordCacheFlush()
	metrics.SetCacheEntries(4)
	metrics.ObserveViewCompute("totalVolume", 2*time.Millisecond)
	metrics.RecordDecodeFailure("objects_total")
	metrics.RecordIngest(5, 12)
	metrics.RecordIngestError("decode")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("totalVolume")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("bottlenecks")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheDroppedOpsTotal.WithLabelValues("put")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheExpirationsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheFlushesTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.CacheEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DecodeFailuresTotal.WithLabelValues("objects_total")))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.IngestRecordsTotal))
	assert.Equal(t, 12.0, testutil.ToFloat64(metrics.SnapshotsStored))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IngestErrorsTotal.WithLabelValues("decode")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.RecordCacheHit("k")
		metrics.RecordCacheMiss("k")
		metrics.RecordCacheDropped("put")
		metrics.RecordCacheExpiration()
		metrics.RecordCacheFlush()
		metrics.SetCacheEntries(1)
		metrics.ObserveViewCompute("v", time.Second)
		metrics.RecordDecodeFailure("f")
		metrics.RecordIngest(1, 1)
		metrics.RecordIngestError("read")
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/detections/volume/total", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/detections/volume/total", "418")))

	t.Run("nil metrics passes through", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		wrapped := HTTPMetricsMiddleware(nil)(next)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordCacheFlush()

	server := httptest.NewServer(MetricsHandler(registry))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "laneview_cache_flushes_total 1"))
}
