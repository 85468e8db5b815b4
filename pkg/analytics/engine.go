package analytics

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/laneview/pkg/cache"
	"github.com/platinummonkey/laneview/pkg/observability"
	"github.com/platinummonkey/laneview/pkg/snapshot"
)

// DefaultDecodeMemoSize bounds the number of decoded blobs kept between recomputations
const DefaultDecodeMemoSize = 4096

// Engine computes and caches analytics views over a snapshot source
type Engine struct {
	source   snapshot.Source
	cache    *cache.Cache
	logger   *observability.Logger
	metrics  *observability.Metrics
	randIntn func(n int) int
	ttl      time.Duration
	memoSize int
	decoder  *decoder
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the Prometheus metrics; nil disables them
func WithMetrics(metrics *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithRandom replaces the generator used for simulated hourly values.
// fn(n) must return a value in [0, n).
func WithRandom(fn func(n int) int) Option {
	return func(e *Engine) { e.randIntn = fn }
}

// WithDecodeMemo sets the decode memo size; 0 disables memoization
func WithDecodeMemo(size int) Option {
	return func(e *Engine) { e.memoSize = size }
}

// WithTTL overrides the cache TTL for views
func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.ttl = ttl }
}

// NewEngine creates an engine reading from source and caching in c
func NewEngine(source snapshot.Source, c *cache.Cache, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		cache:    c,
		logger:   observability.NewNopLogger(),
		randIntn: rand.IntN,
		ttl:      c.DefaultTTL(),
		memoSize: DefaultDecodeMemoSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.decoder = newDecoder(e.memoSize, e.logger, e.metrics)
	return e
}

// Cache returns the view cache
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// cached returns the view under key, computing and storing it on a miss
func cached[T any](ctx context.Context, e *Engine, key string, compute func(context.Context) (T, error)) (T, error) {
	if v, ok := e.cache.Get(key); ok {
		if view, ok := v.(T); ok {
			e.logger.WithField("key", key).Debug("Serving view from cache")
			return view, nil
		}
		e.logger.WithField("key", key).Warnf("Cached view has unexpected type %T, recomputing", v)
	}

	ctx, span := observability.StartSpan(ctx, "analytics."+key, attribute.String("cache.key", key))
	defer span.End()

	start := time.Now()
	view, err := compute(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var zero T
		return zero, fmt.Errorf("failed to compute %s: %w", key, err)
	}
	elapsed := time.Since(start)
	e.metrics.ObserveViewCompute(key, elapsed)
	observability.UpdateLoggerWithTraceContext(ctx, e.logger).
		WithField("key", key).
		WithField("duration_ms", elapsed.Milliseconds()).
		Debug("Computed view")

	e.cache.Put(key, view, e.ttl)
	return view, nil
}

func (e *Engine) listAll(ctx context.Context) ([]snapshot.Record, error) {
	records, err := e.source.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return records, nil
}

func (e *Engine) listAscending(ctx context.Context) ([]snapshot.Record, error) {
	records, err := e.source.ListOrdered(ctx, snapshot.Ascending)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return records, nil
}

// TotalVolume sums vehicle counts per type across all snapshots
func (e *Engine) TotalVolume(ctx context.Context) (TotalVolume, error) {
	return cached(ctx, e, KeyTotalVolume, func(ctx context.Context) (TotalVolume, error) {
		records, err := e.listAll(ctx)
		if err != nil {
			return TotalVolume{}, err
		}
		return computeTotalVolume(records, e.decoder), nil
	})
}

// VolumeByLane returns the per-lane counts of the most recent snapshot
func (e *Engine) VolumeByLane(ctx context.Context) (VolumeByLane, error) {
	return cached(ctx, e, KeyVolumeByLane, func(ctx context.Context) (VolumeByLane, error) {
		records, err := e.listAll(ctx)
		if err != nil {
			return nil, err
		}
		return computeVolumeByLane(records, e.decoder), nil
	})
}

// HourlyPatterns returns vehicle counts per hour of day, with simulated
// values for hours without data
func (e *Engine) HourlyPatterns(ctx context.Context) (HourlyPatterns, error) {
	return cached(ctx, e, KeyHourlyPatterns, func(ctx context.Context) (HourlyPatterns, error) {
		records, err := e.listAll(ctx)
		if err != nil {
			return nil, err
		}
		return computeHourlyPatterns(records, e.decoder, e.randIntn, e.logger), nil
	})
}

// AverageSpeedByLane returns the mean observed speed per lane
func (e *Engine) AverageSpeedByLane(ctx context.Context) (AverageSpeedByLane, error) {
	return cached(ctx, e, KeyAvgSpeedByLane, func(ctx context.Context) (AverageSpeedByLane, error) {
		records, err := e.listAll(ctx)
		if err != nil {
			return nil, err
		}
		return computeAverageSpeedByLane(records, e.decoder), nil
	})
}

// Bottlenecks returns congested lanes sorted by lane name
func (e *Engine) Bottlenecks(ctx context.Context) ([]Bottleneck, error) {
	return cached(ctx, e, KeyBottlenecks, func(ctx context.Context) ([]Bottleneck, error) {
		speeds, err := e.AverageSpeedByLane(ctx)
		if err != nil {
			return nil, err
		}
		volumes, err := e.VolumeByLane(ctx)
		if err != nil {
			return nil, err
		}
		return computeBottlenecks(speeds, volumes), nil
	})
}

// TrafficEvolution returns car, bus and truck counts per snapshot in time order
func (e *Engine) TrafficEvolution(ctx context.Context) (TrafficEvolution, error) {
	return cached(ctx, e, KeyTrafficEvolution, func(ctx context.Context) (TrafficEvolution, error) {
		records, err := e.listAscending(ctx)
		if err != nil {
			return TrafficEvolution{}, err
		}
		return computeTrafficEvolution(records, e.decoder), nil
	})
}

// SpeedEvolution returns lane_1..lane_3 speeds per snapshot in time order
func (e *Engine) SpeedEvolution(ctx context.Context) (SpeedEvolution, error) {
	return cached(ctx, e, KeySpeedEvolution, func(ctx context.Context) (SpeedEvolution, error) {
		records, err := e.listAscending(ctx)
		if err != nil {
			return SpeedEvolution{}, err
		}
		return computeSpeedEvolution(records, e.decoder), nil
	})
}

// VehicleTypeDominance returns each vehicle type's share of the total in percent
func (e *Engine) VehicleTypeDominance(ctx context.Context) (VehicleTypeDominance, error) {
	return cached(ctx, e, KeyVehicleTypeDominance, func(ctx context.Context) (VehicleTypeDominance, error) {
		volume, err := e.TotalVolume(ctx)
		if err != nil {
			return nil, err
		}
		return computeDominance(volume.Total), nil
	})
}

// Summary returns the mean and max lane speed and the number of bottlenecks
func (e *Engine) Summary(ctx context.Context) (Summary, error) {
	return cached(ctx, e, KeySummary, func(ctx context.Context) (Summary, error) {
		speeds, err := e.AverageSpeedByLane(ctx)
		if err != nil {
			return Summary{}, err
		}
		bottlenecks, err := e.Bottlenecks(ctx)
		if err != nil {
			return Summary{}, err
		}
		return computeSummary(speeds, bottlenecks), nil
	})
}
