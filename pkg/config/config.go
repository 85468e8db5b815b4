package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/laneview/pkg/analytics"
	"github.com/platinummonkey/laneview/pkg/cache"
	"github.com/platinummonkey/laneview/pkg/ingest"
	"github.com/platinummonkey/laneview/pkg/middleware"
	"github.com/platinummonkey/laneview/pkg/observability"
	"github.com/platinummonkey/laneview/pkg/storage"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML file
const ConfigFileEnv = "LANEVIEW_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// View cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Detections file ingestion
	Ingest IngestConfig `yaml:"ingest"`

	// Per-client request limits on the analytics routes
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// CacheConfig holds view cache settings
type CacheConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	LockTimeout    time.Duration `yaml:"lock_timeout"`
	FlushInterval  time.Duration `yaml:"flush_interval"` // 0 disables the periodic flush
	DecodeMemoSize int           `yaml:"decode_memo_size"`
	ClearOnIngest  bool          `yaml:"clear_on_ingest"`
}

// IngestConfig holds detections file settings
type IngestConfig struct {
	Path     string        `yaml:"path"` // empty disables the watcher
	Debounce time.Duration `yaml:"debounce"`
}

// RateLimitConfig holds API rate limiting settings
type RateLimitConfig struct {
	middleware.RateLimitConfig `yaml:",inline"`

	Enabled bool `yaml:"enabled"`

	// Distributed shares limits through Redis; requires redis storage
	Distributed bool `yaml:"distributed"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Storage: storage.DefaultConfig(),
		Cache: CacheConfig{
			TTL:            cache.DefaultTTL,
			LockTimeout:    cache.DefaultLockTimeout,
			FlushInterval:  cache.DefaultFlushInterval,
			DecodeMemoSize: analytics.DefaultDecodeMemoSize,
		},
		Ingest: IngestConfig{
			Debounce: ingest.DefaultDebounce,
		},
		RateLimit: RateLimitConfig{
			RateLimitConfig: middleware.DefaultRateLimitConfig(),
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "laneview",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig loads configuration from defaults, the optional YAML file
// named by LANEVIEW_CONFIG_FILE, then environment variables, in that order
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path; keys it omits keep their current value
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("LANEVIEW_HOST", s.Host)
	s.Port = getEnv("LANEVIEW_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("LANEVIEW_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("LANEVIEW_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("LANEVIEW_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("LANEVIEW_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.RequestTimeout = getEnvDuration("LANEVIEW_REQUEST_TIMEOUT", s.RequestTimeout)
	if origins := getEnv("LANEVIEW_CORS_ORIGINS", ""); origins != "" {
		s.CORSOrigins = splitList(origins)
	}

	st := &c.Storage
	st.Type = getEnv("LANEVIEW_STORAGE_TYPE", st.Type)
	st.SQLitePath = getEnv("LANEVIEW_SQLITE_PATH", st.SQLitePath)
	st.PostgresURL = getEnv("LANEVIEW_POSTGRES_URL", st.PostgresURL)
	st.PostgresMaxConns = getEnvInt("LANEVIEW_POSTGRES_MAX_CONNS", st.PostgresMaxConns)
	st.PostgresMinConns = getEnvInt("LANEVIEW_POSTGRES_MIN_CONNS", st.PostgresMinConns)
	st.PostgresTimeout = getEnvDuration("LANEVIEW_POSTGRES_TIMEOUT", st.PostgresTimeout)
	st.RedisURL = getEnv("LANEVIEW_REDIS_URL", st.RedisURL)
	st.RedisPassword = getEnv("LANEVIEW_REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = getEnvInt("LANEVIEW_REDIS_DB", st.RedisDB)
	st.RedisMaxRetries = getEnvInt("LANEVIEW_REDIS_MAX_RETRIES", st.RedisMaxRetries)
	st.RedisPoolSize = getEnvInt("LANEVIEW_REDIS_POOL_SIZE", st.RedisPoolSize)
	st.RedisKeyPrefix = getEnv("LANEVIEW_REDIS_KEY_PREFIX", st.RedisKeyPrefix)

	ca := &c.Cache
	ca.TTL = getEnvDuration("LANEVIEW_CACHE_TTL", ca.TTL)
	ca.LockTimeout = getEnvDuration("LANEVIEW_CACHE_LOCK_TIMEOUT", ca.LockTimeout)
	ca.FlushInterval = getEnvDuration("LANEVIEW_CACHE_FLUSH_INTERVAL", ca.FlushInterval)
	ca.DecodeMemoSize = getEnvInt("LANEVIEW_DECODE_MEMO_SIZE", ca.DecodeMemoSize)
	ca.ClearOnIngest = getEnvBool("LANEVIEW_CACHE_CLEAR_ON_INGEST", ca.ClearOnIngest)

	c.Ingest.Path = getEnv("LANEVIEW_DETECTIONS_FILE", c.Ingest.Path)
	c.Ingest.Debounce = getEnvDuration("LANEVIEW_INGEST_DEBOUNCE", c.Ingest.Debounce)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool("LANEVIEW_RATE_LIMIT_ENABLED", rl.Enabled)
	rl.RequestsPerWindow = getEnvInt("LANEVIEW_RATE_LIMIT_REQUESTS", rl.RequestsPerWindow)
	rl.WindowDuration = getEnvDuration("LANEVIEW_RATE_LIMIT_WINDOW", rl.WindowDuration)
	rl.BurstSize = getEnvInt("LANEVIEW_RATE_LIMIT_BURST", rl.BurstSize)
	rl.Distributed = getEnvBool("LANEVIEW_RATE_LIMIT_DISTRIBUTED", rl.Distributed)

	o := &c.Observability
	o.LogLevel = getEnv("LANEVIEW_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("LANEVIEW_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("LANEVIEW_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("LANEVIEW_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("LANEVIEW_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("LANEVIEW_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("LANEVIEW_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("LANEVIEW_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case storage.TypeMemory:
	case storage.TypeSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("sqlite path is required for sqlite storage")
		}
	case storage.TypePostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("postgres URL is required for postgres storage")
		}
	case storage.TypeRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("redis URL is required for redis storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, sqlite, postgres, or redis)", c.Storage.Type)
	}

	if c.Cache.TTL <= 0 {
		return errors.New("cache TTL must be positive")
	}
	if c.Cache.LockTimeout <= 0 {
		return errors.New("cache lock timeout must be positive")
	}
	if c.Cache.FlushInterval < 0 {
		return errors.New("cache flush interval must not be negative")
	}
	if c.Cache.DecodeMemoSize < 0 {
		return errors.New("decode memo size must not be negative")
	}
	if c.Ingest.Debounce < 0 {
		return errors.New("ingest debounce must not be negative")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 || c.RateLimit.BurstSize < 0 {
			return errors.New("rate limit requires positive requests and window and a non-negative burst")
		}
		if c.RateLimit.Distributed && c.Storage.Type != storage.TypeRedis {
			return errors.New("distributed rate limiting requires redis storage")
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return errors.New("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
