package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger receives panics and task errors. Replace it at startup to route
// background failures into the application logger.
var Logger logrus.FieldLogger = logrus.StandardLogger()

// SafeGo executes fn in a goroutine with panic recovery and error logging.
// A positive timeout bounds the task; zero or negative means it runs until
// the parent context is cancelled.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := withOptionalTimeout(parentCtx, timeout)
		defer cancel()

		if err := run(ctx, taskName, fn); err != nil {
			Logger.WithField("task", taskName).WithError(err).Error("background task failed")
		}
	}()
}

// SafeGoNoError is SafeGo for functions that don't return errors
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Batch runs fn for every item on at most workers goroutines and returns all
// errors in no particular order. Each call gets its own timeout when positive.
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	if workers < 1 {
		workers = 1
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, workers)

	for _, item := range items {
		select {
		case <-ctx.Done():
			mu.Lock()
			errs = append(errs, ctx.Err())
			mu.Unlock()
			wg.Wait()
			return errs
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer func() { <-sem }()

			taskCtx, cancel := withOptionalTimeout(ctx, timeout)
			defer cancel()

			err := run(taskCtx, taskName, func(ctx context.Context) error {
				return fn(ctx, item)
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(item)
	}

	wg.Wait()
	return errs
}

// run calls fn and converts a panic into an error
func run(ctx context.Context, taskName string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			Logger.WithFields(logrus.Fields{
				"task":  taskName,
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("PANIC recovered")
			err = fmt.Errorf("panic in %s: %v", taskName, r)
		}
	}()
	return fn(ctx)
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
