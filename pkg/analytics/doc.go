// Package analytics computes the traffic views served by the API.
//
// Every view is derived from the full snapshot history and memoized in the
// shared view cache under a fixed key. A miss recomputes from the source and
// stores the result with the default TTL. Concurrent misses for the same key
// may both recompute; the last write wins.
//
//	engine := analytics.NewEngine(store, viewCache, analytics.WithLogger(logger))
//	bottlenecks, err := engine.Bottlenecks(ctx)
//
// Malformed snapshot fields are logged and skipped field by field. A view
// only fails when the source itself fails.
package analytics
