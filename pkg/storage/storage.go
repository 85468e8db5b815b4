package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/platinummonkey/laneview/pkg/snapshot"
)

// ErrUnknownBackend is returned by Open for an unsupported Config.Type
var ErrUnknownBackend = errors.New("unknown storage backend")

// Backend names accepted in Config.Type
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeRedis    = "redis"
)

// Store is a snapshot persistence backend
type Store interface {
	snapshot.Source
	snapshot.Sink

	// Count returns the number of stored records
	Count(ctx context.Context) (int64, error)
	// HealthCheck verifies the backend is reachable
	HealthCheck(ctx context.Context) error
	// Close releases backend resources
	Close() error
}

// Config for storage backend
type Config struct {
	Type string `yaml:"type"` // "memory", "sqlite", "postgres", "redis"

	// SQLite config
	SQLitePath string `yaml:"sqlite_path"`

	// PostgreSQL config
	PostgresURL      string        `yaml:"postgres_url"`
	PostgresMaxConns int           `yaml:"postgres_max_conns"`
	PostgresMinConns int           `yaml:"postgres_min_conns"`
	PostgresTimeout  time.Duration `yaml:"postgres_timeout"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`
	RedisKeyPrefix  string `yaml:"redis_key_prefix"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             TypeMemory,
		SQLitePath:       "laneview.db",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  30 * time.Second,
		RedisURL:         "redis://localhost:6379/0",
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		RedisKeyPrefix:   DefaultRedisKeyPrefix,
	}
}

// Open creates the backend selected by cfg.Type
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeMemory, "":
		return NewMemoryStore(), nil
	case TypeSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case TypePostgres:
		return OpenPostgres(ctx, cfg)
	case TypeRedis:
		return OpenRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Type)
	}
}

// compareRecords orders by timestamp, then ID
func compareRecords(a, b snapshot.Record) int {
	switch {
	case a.TimestampMs < b.TimestampMs:
		return -1
	case a.TimestampMs > b.TimestampMs:
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

func sortRecords(records []snapshot.Record, order snapshot.Order) {
	if order == snapshot.Descending {
		slices.SortFunc(records, func(a, b snapshot.Record) int { return compareRecords(b, a) })
		return
	}
	slices.SortFunc(records, compareRecords)
}
