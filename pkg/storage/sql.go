package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/platinummonkey/laneview/pkg/snapshot"
)

// Driver names understood by SQLStore
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const selectColumns = `SELECT id, timestamp_ms, date, objects_total, objects_by_lane, avg_speed_by_lane FROM detections`

// SQLStore persists snapshots in a detections table
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore wraps an open database. driver selects the SQL dialect.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// OpenSQLite opens (creating if needed) a SQLite database and migrates it.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows one writer; an in-memory database also exists per connection.
	db.SetMaxOpenConns(1)

	store := NewSQLStore(db, DriverSQLite)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// OpenPostgres connects to PostgreSQL, verifies the connection and migrates
func OpenPostgres(ctx context.Context, cfg Config) (*SQLStore, error) {
	if cfg.PostgresURL == "" {
		return nil, fmt.Errorf("postgres URL is required")
	}

	db, err := sql.Open(DriverPostgres, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if cfg.PostgresMaxConns > 0 {
		db.SetMaxOpenConns(cfg.PostgresMaxConns)
	}
	if cfg.PostgresMinConns > 0 {
		db.SetMaxIdleConns(cfg.PostgresMinConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	timeout := cfg.PostgresTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := NewSQLStore(db, DriverPostgres)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// DB returns the underlying database handle
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Migrate creates the detections table and its timestamp index
func (s *SQLStore) Migrate(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS detections (
			` + idColumn + `,
			timestamp_ms BIGINT NOT NULL,
			date TEXT NOT NULL,
			objects_total TEXT NOT NULL,
			objects_by_lane TEXT NOT NULL,
			avg_speed_by_lane TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_timestamp_ms ON detections (timestamp_ms)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate detections table: %w", err)
		}
	}
	return nil
}

// SaveAll inserts records in a single transaction
func (s *SQLStore) SaveAll(ctx context.Context, records []snapshot.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO detections (timestamp_ms, date, objects_total, objects_by_lane, avg_speed_by_lane) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.TimestampMs, rec.Date, rec.ObjectsTotal, rec.ObjectsByLane, rec.AvgSpeedByLane); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit detections: %w", err)
	}
	return nil
}

// ListAll returns every record ordered by ID
func (s *SQLStore) ListAll(ctx context.Context) ([]snapshot.Record, error) {
	return s.query(ctx, selectColumns+` ORDER BY id`)
}

// ListOrdered returns every record sorted by timestamp
func (s *SQLStore) ListOrdered(ctx context.Context, order snapshot.Order) ([]snapshot.Record, error) {
	dir := order.String()
	return s.query(ctx, selectColumns+` ORDER BY timestamp_ms `+dir+`, id `+dir)
}

// Latest returns up to n records, newest first
func (s *SQLStore) Latest(ctx context.Context, n int) ([]snapshot.Record, error) {
	if n <= 0 {
		return []snapshot.Record{}, nil
	}
	return s.query(ctx, s.rebind(selectColumns+` ORDER BY timestamp_ms DESC, id DESC LIMIT ?`), n)
}

// Count returns the number of stored records
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM detections`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return n, nil
}

// HealthCheck pings the database
func (s *SQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) query(ctx context.Context, query string, args ...interface{}) ([]snapshot.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	records := []snapshot.Record{}
	for rows.Next() {
		var rec snapshot.Record
		if err := rows.Scan(&rec.ID, &rec.TimestampMs, &rec.Date, &rec.ObjectsTotal, &rec.ObjectsByLane, &rec.AvgSpeedByLane); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate detections: %w", err)
	}
	return records, nil
}

// rebind rewrites ? placeholders to $n for postgres
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
