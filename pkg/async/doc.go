// Package async runs background work with panic recovery and bounded fan-out.
//
// SafeGo starts a goroutine that can never crash the process:
//
//	async.SafeGo(ctx, 0, "health probe mysql", func(ctx context.Context) error {
//		return loop(ctx)
//	})
//
// Batch processes items with a fixed number of workers and returns every error:
//
//	errs := async.Batch(ctx, jobs, 2, "cache warm", 30*time.Second, warmOne)
//
// Both are used by the health monitor and the cache warmer.
package async
