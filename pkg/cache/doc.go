// Package cache provides the expiring view cache shared by the analytics
// engine.
//
// Reads never block: they go straight to a sync.Map and treat an entry as
// absent once the clock has passed its expiry. Mutations (Put, Remove, Clear)
// share one exclusive lock acquired with a bounded wait. When the wait runs
// out the mutation is dropped, logged and counted; callers never see an error.
//
//	c := cache.New(cache.WithLogger(logger), cache.WithMetrics(metrics))
//	c.PutDefault("totalVolume", view)
//	if v, ok := c.Get("totalVolume"); ok {
//		...
//	}
//
// FlushScheduler clears the whole cache on a fixed interval as a staleness
// backstop, independent of the per-entry TTLs.
package cache
