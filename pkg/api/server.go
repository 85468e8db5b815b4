package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/laneview/pkg/analytics"
	"github.com/platinummonkey/laneview/pkg/cache"
	"github.com/platinummonkey/laneview/pkg/httputil"
	"github.com/platinummonkey/laneview/pkg/middleware"
	"github.com/platinummonkey/laneview/pkg/observability"
	"github.com/platinummonkey/laneview/pkg/snapshot"
)

// Server represents our API server
type Server struct {
	router         *mux.Router
	engine         *analytics.Engine
	cache          *cache.Cache
	source         snapshot.Source
	counter        Counter
	health         *observability.HealthChecker
	registry       *prometheus.Registry
	metrics        *observability.Metrics
	logger         *observability.Logger
	limiter        middleware.Limiter
	corsOrigins    []string
	requestTimeout time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the base logger for request-scoped logging
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics exposes registry on /metrics and instruments requests with metrics
func WithMetrics(registry *prometheus.Registry, metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.registry = registry
		s.metrics = metrics
	}
}

// WithHealthChecker replaces the default health checker
func WithHealthChecker(health *observability.HealthChecker) Option {
	return func(s *Server) { s.health = health }
}

// WithCORSOrigins sets the allowed CORS origins; "*" allows any
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithRequestTimeout bounds each request context; 0 disables the bound
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// WithRateLimiter limits /api/detections requests per client IP
func WithRateLimiter(limiter middleware.Limiter) Option {
	return func(s *Server) { s.limiter = limiter }
}

// NewServer creates a new API server serving engine's views. source backs
// the raw record endpoints; the detection count route is only registered
// when source also implements Counter.
func NewServer(engine *analytics.Engine, source snapshot.Source, opts ...Option) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		engine:      engine,
		cache:       engine.Cache(),
		source:      source,
		logger:      observability.NewNopLogger(),
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = observability.NewHealthChecker("")
	}
	if counter, ok := source.(Counter); ok {
		s.counter = counter
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	detections := s.router.PathPrefix("/api/detections").Subrouter()
	if s.limiter != nil {
		detections.Use(middleware.RateLimitMiddleware(s.limiter, s.logger))
	}
	detections.HandleFunc("", s.allRecords).Methods(http.MethodGet)
	detections.HandleFunc("/volume/total", serveView(s.engine.TotalVolume)).Methods(http.MethodGet)
	detections.HandleFunc("/volume/by-lane", serveView(s.engine.VolumeByLane)).Methods(http.MethodGet)
	detections.HandleFunc("/patterns/hourly", serveView(s.engine.HourlyPatterns)).Methods(http.MethodGet)
	detections.HandleFunc("/lanes/speed", serveView(s.engine.AverageSpeedByLane)).Methods(http.MethodGet)
	detections.HandleFunc("/lanes/bottlenecks", serveView(s.engine.Bottlenecks)).Methods(http.MethodGet)
	detections.HandleFunc("/temporal/evolution", serveView(s.engine.TrafficEvolution)).Methods(http.MethodGet)
	detections.HandleFunc("/temporal/speed", serveView(s.engine.SpeedEvolution)).Methods(http.MethodGet)
	detections.HandleFunc("/vehicle-types/dominance", serveView(s.engine.VehicleTypeDominance)).Methods(http.MethodGet)
	detections.HandleFunc("/analysis/summary", serveView(s.engine.Summary)).Methods(http.MethodGet)
	detections.HandleFunc("/latest", s.latestRecords).Methods(http.MethodGet)

	s.router.HandleFunc("/api/cache/stats", s.cacheStats).Methods(http.MethodGet)
	s.router.HandleFunc("/api/cache/clear", s.clearCache).Methods(http.MethodPost)
	if s.counter != nil {
		s.router.HandleFunc("/api/diagnostic/detection-count", s.detectionCount).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/health", s.health.Readiness).Methods(http.MethodGet)
	s.router.HandleFunc("/health/live", s.health.Liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/health/ready", s.health.Readiness).Methods(http.MethodGet)

	if s.registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.registry)).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "not found")
	})
}

// ServeHTTP implements http.Handler without the middleware chain
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for extra registrations
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the router wrapped in the full middleware chain.
// CORS sits outside the router so preflight requests never hit a 405.
func (s *Server) Handler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(s.corsOrigins),
		observability.HTTPMetricsMiddleware(s.metrics),
		httputil.TimeoutMiddleware(s.requestTimeout),
	)
	return otelhttp.NewHandler(chain(s.router), "laneview",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
