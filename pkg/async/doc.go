// Package async runs background work with panic recovery and timeouts.
//
// SafeGo replaces bare `go func()` for fire-and-forget tasks such as removing
// an expired cache entry:
//
//	async.SafeGo(ctx, logger, time.Second, "cache remove", func(ctx context.Context) error {
//		c.Remove(key)
//		return nil
//	})
//
// Batch processes a slice with a bounded number of workers and collects every
// error rather than stopping at the first:
//
//	errs := async.Batch(ctx, logger, paths, 4, "import", time.Minute, loadFile)
package async
