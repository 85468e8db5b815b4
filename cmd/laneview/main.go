package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/laneview/pkg/analytics"
	"github.com/platinummonkey/laneview/pkg/api"
	"github.com/platinummonkey/laneview/pkg/cache"
	"github.com/platinummonkey/laneview/pkg/config"
	"github.com/platinummonkey/laneview/pkg/ingest"
	"github.com/platinummonkey/laneview/pkg/middleware"
	"github.com/platinummonkey/laneview/pkg/observability"
	"github.com/platinummonkey/laneview/pkg/storage"
)

var version = "dev"

func main() {
	// Parse command line flags
	configFile := flag.String("config", "", "YAML configuration file (overrides "+config.ConfigFileEnv+")")
	detections := flag.String("detections", "", "Detections file to load and watch (overrides LANEVIEW_DETECTIONS_FILE)")
	flag.Parse()

	if *configFile != "" {
		os.Setenv(config.ConfigFileEnv, *configFile)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *detections != "" {
		cfg.Ingest.Path = *detections
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).WithField("service", "laneview")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("laneview exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		observability.ShutdownOTel(context.Background(), providers, logger)
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.WithField("type", cfg.Storage.Type).Info("Storage initialized")

	viewCache := cache.New(
		cache.WithDefaultTTL(cfg.Cache.TTL),
		cache.WithLockTimeout(cfg.Cache.LockTimeout),
		cache.WithLogger(logger.WithField("component", "cache")),
		cache.WithMetrics(metrics),
	)
	engine := analytics.NewEngine(store, viewCache,
		analytics.WithLogger(logger.WithField("component", "analytics")),
		analytics.WithMetrics(metrics),
		analytics.WithDecodeMemo(cfg.Cache.DecodeMemoSize),
	)

	health := observability.NewHealthChecker(version)
	health.AddCheck("storage", true, store.HealthCheck)

	apiOpts := []api.Option{
		api.WithLogger(logger),
		api.WithMetrics(registry, metrics),
		api.WithHealthChecker(health),
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
		api.WithRequestTimeout(cfg.Server.RequestTimeout),
	}
	if cfg.RateLimit.Enabled {
		limiter := newRateLimiter(ctx, cfg, store)
		if checker, ok := limiter.(interface{ HealthCheck(context.Context) error }); ok {
			health.AddCheck("rate limiter", false, checker.HealthCheck)
		}
		apiOpts = append(apiOpts, api.WithRateLimiter(limiter))
	}
	server := api.NewServer(engine, store, apiOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Steps run in reverse registration order after the HTTP server stops
	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register("storage", func(context.Context) error { return store.Close() })
	shutdown.Register("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	if cfg.Cache.FlushInterval > 0 {
		flusher, err := cache.NewFlushScheduler(viewCache, cfg.Cache.FlushInterval, logger)
		if err != nil {
			shutdown.Shutdown()
			return err
		}
		flusher.Start()
		shutdown.Register("cache flush scheduler", func(ctx context.Context) error {
			select {
			case <-flusher.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Ingest.Path != "" {
		watcher := newWatcher(cfg, store, viewCache, metrics)
		g.Go(func() error {
			// Ingest problems never take the API down
			if err := watcher.Run(gctx); err != nil {
				logger.WithError(err).Error("Detections watcher stopped; serving stored records only")
			}
			return nil
		})
	} else {
		logger.Info("No detections file configured; serving stored records only")
	}

	g.Go(func() error {
		logger.Infof("Starting laneview %s on %s", version, httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return shutdown.WaitAndShutdown(gctx)
	})

	return g.Wait()
}

// newRateLimiter shares limits through Redis when configured and the store is
// Redis-backed; otherwise limits are per process
func newRateLimiter(ctx context.Context, cfg *config.Config, store storage.Store) middleware.Limiter {
	if rs, ok := store.(*storage.RedisStore); ok && cfg.RateLimit.Distributed {
		return middleware.NewRedisRateLimiter(rs.Client(), cfg.RateLimit.RateLimitConfig, rs.Prefix()+":ratelimit")
	}
	limiter := middleware.NewMemoryRateLimiter(cfg.RateLimit.RateLimitConfig)
	limiter.StartCleanup(ctx)
	return limiter
}

// newWatcher builds the detections file watcher. Ingestion logs through
// logrus at the configured level.
func newWatcher(cfg *config.Config, store storage.Store, viewCache *cache.Cache, metrics *observability.Metrics) *ingest.Watcher {
	ingestLogger := logrus.New()
	ingestLogger.SetOutput(os.Stdout)
	ingestLogger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.Observability.LogLevel); err == nil {
		ingestLogger.SetLevel(level)
	}
	entry := ingestLogger.WithField("component", "ingest")

	opts := []ingest.LoaderOption{
		ingest.WithLogger(entry),
		ingest.WithMetrics(metrics),
	}
	if cfg.Cache.ClearOnIngest {
		opts = append(opts, ingest.WithAfterLoad(func(ctx context.Context, saved int) {
			viewCache.Clear()
			entry.WithField("saved", saved).Info("View cache cleared after ingest")
		}))
	}

	return ingest.NewWatcher(cfg.Ingest.Path, ingest.NewLoader(store, opts...),
		ingest.WithDebounce(cfg.Ingest.Debounce),
		ingest.WithWatcherLogger(entry),
	)
}
