package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/laneview/pkg/snapshot"
)

// DefaultRedisKeyPrefix namespaces every key written by RedisStore
const DefaultRedisKeyPrefix = "laneview"

// RedisStore keeps records as JSON in a hash keyed by ID, indexed by a
// sorted set scored by TimestampMs
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps a connected client
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// OpenRedis connects to Redis using cfg.RedisURL and verifies the connection
func OpenRedis(ctx context.Context, cfg Config) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB > 0 {
		opts.DB = cfg.RedisDB
	}
	if cfg.RedisMaxRetries > 0 {
		opts.MaxRetries = cfg.RedisMaxRetries
	}
	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStore(client, cfg.RedisKeyPrefix), nil
}

// Client returns the underlying client for components sharing the connection
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Prefix returns the key prefix
func (s *RedisStore) Prefix() string {
	return s.prefix
}

func (s *RedisStore) recordsKey() string { return s.prefix + ":detections" }
func (s *RedisStore) indexKey() string   { return s.prefix + ":detections:by_ts" }
func (s *RedisStore) seqKey() string     { return s.prefix + ":detections:seq" }

// SaveAll reserves a block of IDs then writes records and index entries in one transaction
func (s *RedisStore) SaveAll(ctx context.Context, records []snapshot.Record) error {
	if len(records) == 0 {
		return nil
	}

	last, err := s.client.IncrBy(ctx, s.seqKey(), int64(len(records))).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate detection ids: %w", err)
	}
	firstID := last - int64(len(records)) + 1

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, rec := range records {
			rec.ID = firstID + int64(i)
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal detection: %w", err)
			}
			member := strconv.FormatInt(rec.ID, 10)
			pipe.HSet(ctx, s.recordsKey(), member, data)
			pipe.ZAdd(ctx, s.indexKey(), &redis.Z{Score: float64(rec.TimestampMs), Member: member})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save detections: %w", err)
	}
	return nil
}

// ListAll returns every record ordered by ID
func (s *RedisStore) ListAll(ctx context.Context) ([]snapshot.Record, error) {
	values, err := s.client.HGetAll(ctx, s.recordsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}

	records := make([]snapshot.Record, 0, len(values))
	for _, data := range values {
		rec, err := decodeRedisRecord(data)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b snapshot.Record) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return records, nil
}

// ListOrdered returns every record sorted by timestamp
func (s *RedisStore) ListOrdered(ctx context.Context, order snapshot.Order) ([]snapshot.Record, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read detection index: %w", err)
	}
	records, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	// sorted-set ties are ordered by member text, not numeric ID
	sortRecords(records, order)
	return records, nil
}

// Latest returns up to n records, newest first
func (s *RedisStore) Latest(ctx context.Context, n int) ([]snapshot.Record, error) {
	if n <= 0 {
		return []snapshot.Record{}, nil
	}

	top, err := s.client.ZRevRangeWithScores(ctx, s.indexKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read detection index: %w", err)
	}

	ids := make([]string, 0, len(top))
	if len(top) < n {
		for _, z := range top {
			ids = append(ids, z.Member.(string))
		}
	} else {
		// members tied at the cut-off score come back in text order, so
		// fetch every one of them before trimming by numeric ID
		cutoff := top[len(top)-1].Score
		for _, z := range top {
			if z.Score > cutoff {
				ids = append(ids, z.Member.(string))
			}
		}
		score := strconv.FormatFloat(cutoff, 'f', -1, 64)
		tied, err := s.client.ZRevRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{Min: score, Max: score}).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read detection index: %w", err)
		}
		ids = append(ids, tied...)
	}

	records, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortRecords(records, snapshot.Descending)
	if len(records) > n {
		records = records[:n]
	}
	return records, nil
}

// Count returns the number of stored records
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.HLen(ctx, s.recordsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return n, nil
}

// HealthCheck pings Redis
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) load(ctx context.Context, ids []string) ([]snapshot.Record, error) {
	if len(ids) == 0 {
		return []snapshot.Record{}, nil
	}

	values, err := s.client.HMGet(ctx, s.recordsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load detections: %w", err)
	}

	records := make([]snapshot.Record, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			// index entry without a record
			continue
		}
		rec, err := decodeRedisRecord(data)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRedisRecord(data string) (snapshot.Record, error) {
	var rec snapshot.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return snapshot.Record{}, fmt.Errorf("failed to unmarshal detection: %w", err)
	}
	return rec, nil
}
