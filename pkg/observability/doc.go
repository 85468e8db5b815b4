// Package observability provides structured logging, Prometheus metrics, health
// checks, and OpenTelemetry tracing for laneview.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("key", "bottlenecks").Debug("cache hit")
//
// # Prometheus Metrics
//
// A nil *Metrics is accepted everywhere and records nothing, which keeps
// tests and library callers free of registry setup:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordCacheHit("totalVolume")
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("storage", true, store.HealthCheck)
//
// # OpenTelemetry
//
// InitOTel installs global providers when enabled; StartSpan uses whatever
// provider is installed, the no-op one by default.
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
