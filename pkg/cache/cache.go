package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"

	"github.com/platinummonkey/laneview/pkg/async"
	"github.com/platinummonkey/laneview/pkg/observability"
)

const (
	// DefaultTTL is used by PutDefault
	DefaultTTL = 5 * time.Minute
	// DefaultLockTimeout bounds how long a mutation waits for the write lock
	DefaultLockTimeout = time.Second
)

// entry is never modified after creation; a rewrite stores a new one
type entry struct {
	value     any
	expiresAt time.Time
}

// Stats is a point-in-time snapshot of cache counters
type Stats struct {
	Entries       int   `json:"entries"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Expirations   int64 `json:"expirations"`
	DroppedWrites int64 `json:"droppedWrites"`
}

// Cache is a key/value store with per-entry expiry
type Cache struct {
	data        sync.Map // string -> *entry
	writeLock   *semaphore.Weighted
	clock       clockwork.Clock
	lockTimeout time.Duration
	defaultTTL  time.Duration
	logger      *observability.Logger
	metrics     *observability.Metrics

	hits        atomic.Int64
	misses      atomic.Int64
	expirations atomic.Int64
	dropped     atomic.Int64
}

// Option configures a Cache
type Option func(*Cache)

// WithClock sets the time source
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithLockTimeout sets the bounded wait for the write lock
func WithLockTimeout(d time.Duration) Option {
	return func(c *Cache) { c.lockTimeout = d }
}

// WithDefaultTTL sets the TTL used by PutDefault
func WithDefaultTTL(d time.Duration) Option {
	return func(c *Cache) { c.defaultTTL = d }
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithMetrics sets the Prometheus metrics; nil disables them
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Cache) { c.metrics = metrics }
}

// New creates an empty cache
func New(opts ...Option) *Cache {
	c := &Cache{
		writeLock:   semaphore.NewWeighted(1),
		clock:       clockwork.NewRealClock(),
		lockTimeout: DefaultLockTimeout,
		defaultTTL:  DefaultTTL,
		logger:      observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultTTL returns the TTL applied by PutDefault
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Put stores value under key until ttl has elapsed. If the write lock is not
// acquired within the lock timeout the write is dropped.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	if !c.acquire("put", key) {
		return
	}
	defer c.writeLock.Release(1)

	c.data.Store(key, &entry{value: value, expiresAt: c.clock.Now().Add(ttl)})
	c.metrics.SetCacheEntries(c.Len())
}

// PutDefault stores value with the default TTL
func (c *Cache) PutDefault(key string, value any) {
	c.Put(key, value, c.defaultTTL)
}

// Get returns the live value for key. An expired entry is reported absent
// and removed in the background.
func (c *Cache) Get(key string) (any, bool) {
	v, ok := c.data.Load(key)
	if !ok {
		c.recordMiss(key)
		return nil, false
	}

	e := v.(*entry)
	if c.clock.Now().After(e.expiresAt) {
		c.expirations.Add(1)
		c.metrics.RecordCacheExpiration()
		c.recordMiss(key)
		async.SafeGoNoError(context.Background(), c.logger, c.lockTimeout+time.Second, "cache expire", func(context.Context) {
			c.removeEntry(key, e)
		})
		return nil, false
	}

	c.hits.Add(1)
	c.metrics.RecordCacheHit(key)
	return e.value, true
}

// Contains reports whether key holds a live value
func (c *Cache) Contains(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Remove deletes key. Dropped on lock timeout.
func (c *Cache) Remove(key string) {
	if !c.acquire("remove", key) {
		return
	}
	defer c.writeLock.Release(1)

	c.data.Delete(key)
	c.metrics.SetCacheEntries(c.Len())
}

// removeEntry deletes key only if it still holds e, so a value written after
// the expired read is kept.
func (c *Cache) removeEntry(key string, e *entry) {
	if !c.acquire("remove", key) {
		return
	}
	defer c.writeLock.Release(1)

	if c.data.CompareAndDelete(key, e) {
		c.logger.WithField("key", key).Debug("Removed expired cache entry")
	}
	c.metrics.SetCacheEntries(c.Len())
}

// Clear deletes every entry. Dropped on lock timeout.
func (c *Cache) Clear() {
	if !c.acquire("clear", "*") {
		return
	}
	defer c.writeLock.Release(1)

	c.data.Clear()
	c.metrics.RecordCacheFlush()
	c.metrics.SetCacheEntries(0)
	c.logger.Debug("Cache cleared")
}

// Len returns the number of stored entries, including expired ones not yet removed
func (c *Cache) Len() int {
	n := 0
	c.data.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stats returns the current counters
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:       c.Len(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Expirations:   c.expirations.Load(),
		DroppedWrites: c.dropped.Load(),
	}
}

func (c *Cache) acquire(operation, key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.lockTimeout)
	defer cancel()

	if err := c.writeLock.Acquire(ctx, 1); err != nil {
		c.dropped.Add(1)
		c.metrics.RecordCacheDropped(operation)
		c.logger.WithFields(map[string]interface{}{
			"operation": operation,
			"key":       key,
			"timeout":   c.lockTimeout.String(),
		}).Warn("Cache write lock not acquired, operation skipped")
		return false
	}
	return true
}

func (c *Cache) recordMiss(key string) {
	c.misses.Add(1)
	c.metrics.RecordCacheMiss(key)
}
