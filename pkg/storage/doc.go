// Package storage persists traffic snapshots for laneview.
//
// # Overview
//
// Every backend implements Store, which combines the read side consumed by
// the analytics engine (snapshot.Source) with the write side used by
// ingestion (snapshot.Sink):
//
//	type Store interface {
//		snapshot.Source
//		snapshot.Sink
//		Count(ctx context.Context) (int64, error)
//		HealthCheck(ctx context.Context) error
//		Close() error
//	}
//
// # Backend Implementations
//
// MemoryStore keeps records in a slice. Used for tests and for running the
// service against a detections file without a database.
//
// SQLStore keeps records in a detections table through database/sql. The
// sqlite3 driver serves single-node deployments; postgres serves shared ones.
//
//	store, err := storage.Open(ctx, storage.Config{
//		Type:        "postgres",
//		PostgresURL: "postgres://localhost/laneview?sslmode=disable",
//	})
//
// RedisStore keeps each record as JSON in a hash and indexes it by timestamp
// in a sorted set, so Latest is a range read.
//
// # Ordering
//
// Ordered listings sort by TimestampMs and break ties by ID in the same
// direction, so every backend returns identical sequences for identical data.
package storage
