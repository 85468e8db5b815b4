package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/platinummonkey/laneview/pkg/snapshot"
)

// MemoryStore keeps snapshots in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records []snapshot.Record
	nextID  int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// SaveAll appends records, assigning IDs in order
func (s *MemoryStore) SaveAll(ctx context.Context, records []snapshot.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		rec.ID = s.nextID
		s.nextID++
		s.records = append(s.records, rec)
	}
	return nil
}

// ListAll returns every record in insertion order
func (s *MemoryStore) ListAll(ctx context.Context) ([]snapshot.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records), nil
}

// ListOrdered returns every record sorted by timestamp
func (s *MemoryStore) ListOrdered(ctx context.Context, order snapshot.Order) ([]snapshot.Record, error) {
	records, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	sortRecords(records, order)
	return records, nil
}

// Latest returns up to n records, newest first
func (s *MemoryStore) Latest(ctx context.Context, n int) ([]snapshot.Record, error) {
	records, err := s.ListOrdered(ctx, snapshot.Descending)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if len(records) > n {
		records = records[:n]
	}
	return records, nil
}

// Count returns the number of stored records
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// HealthCheck always succeeds
func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
