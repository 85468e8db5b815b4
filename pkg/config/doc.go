// Package config provides application configuration management from environment variables.
//
// # Overview
//
// Configuration starts from Default(), is overlaid by the YAML file named in
// LANEVIEW_CONFIG_FILE when set, and finally by individual environment
// variables. The result is validated before it is returned.
//
// # Configuration Structure
//
// Server settings:
//
//	LANEVIEW_HOST="0.0.0.0"
//	LANEVIEW_PORT="8080"
//	LANEVIEW_READ_TIMEOUT="15s"
//	LANEVIEW_REQUEST_TIMEOUT="10s"
//	LANEVIEW_CORS_ORIGINS="*"  # comma separated
//
// Storage settings:
//
//	LANEVIEW_STORAGE_TYPE="sqlite"  # memory, sqlite, postgres, redis
//	LANEVIEW_SQLITE_PATH="/var/lib/laneview/laneview.db"
//	LANEVIEW_POSTGRES_URL="postgres://localhost/laneview"
//	LANEVIEW_REDIS_URL="redis://localhost:6379/0"
//
// Cache and ingestion settings:
//
//	LANEVIEW_CACHE_TTL="5m"
//	LANEVIEW_CACHE_LOCK_TIMEOUT="1s"
//	LANEVIEW_CACHE_FLUSH_INTERVAL="10m"  # 0 disables
//	LANEVIEW_CACHE_CLEAR_ON_INGEST="false"
//	LANEVIEW_DETECTIONS_FILE="/data/detections.json"
//	LANEVIEW_INGEST_DEBOUNCE="500ms"
//
// Observability settings:
//
//	LANEVIEW_LOG_LEVEL="info"  # debug, info, warn, error
//	LANEVIEW_METRICS_ENABLED="true"
//	LANEVIEW_OTEL_ENABLED="true"
//	LANEVIEW_OTEL_ENDPOINT="otel-collector:4317"
//
// The YAML file uses the same structure with snake_case keys:
//
//	server:
//	  port: "9000"
//	storage:
//	  type: sqlite
//	  sqlite_path: /var/lib/laneview/laneview.db
//	cache:
//	  ttl: 2m
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Listening on %s, storage %s\n", cfg.Server.Addr(), cfg.Storage.Type)
package config
