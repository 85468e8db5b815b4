package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/laneview/pkg/observability"
)

// DefaultFlushInterval is how often FlushScheduler clears the cache
const DefaultFlushInterval = 10 * time.Minute

// FlushScheduler periodically clears a Cache on cron's goroutine
type FlushScheduler struct {
	cron     *cron.Cron
	cache    *Cache
	interval time.Duration
	logger   *observability.Logger
}

// NewFlushScheduler schedules c.Clear every interval; zero means DefaultFlushInterval
func NewFlushScheduler(c *Cache, interval time.Duration, logger *observability.Logger) (*FlushScheduler, error) {
	if interval == 0 {
		interval = DefaultFlushInterval
	}
	if interval < 0 {
		return nil, fmt.Errorf("flush interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	fs := &FlushScheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		cache:    c,
		interval: interval,
		logger:   logger,
	}

	if _, err := fs.cron.AddFunc("@every "+interval.String(), fs.Flush); err != nil {
		return nil, fmt.Errorf("failed to schedule cache flush: %w", err)
	}
	return fs, nil
}

// Flush clears the cache immediately
func (fs *FlushScheduler) Flush() {
	entries := fs.cache.Len()
	fs.cache.Clear()
	fs.logger.WithField("entries", entries).Info("Flushed analytics cache")
}

// Interval returns the flush interval
func (fs *FlushScheduler) Interval() time.Duration {
	return fs.interval
}

// Start begins running the schedule in the background
func (fs *FlushScheduler) Start() {
	fs.cron.Start()
	fs.logger.Infof("Cache flush scheduled every %s", fs.interval)
}

// Stop halts the schedule; the returned context is done once a running flush completes
func (fs *FlushScheduler) Stop() context.Context {
	return fs.cron.Stop()
}
