package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSafeGo_Success(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SafeGo did not execute function")
	}
}

func TestSafeGo_Timeout(t *testing.T) {
	cancelled := make(chan struct{})

	SafeGo(context.Background(), 20*time.Millisecond, "test task", func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled by timeout")
	}
}

func TestSafeGo_NoTimeoutRunsUntilParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	stopped := make(chan struct{})

	SafeGoNoError(ctx, 0, "loop", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(stopped)
	})

	<-started
	select {
	case <-stopped:
		t.Fatal("task stopped before parent cancellation")
	case <-time.After(30 * time.Millisecond):
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("task did not observe parent cancellation")
	}
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	executed := atomic.Bool{}
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		defer close(done)
		executed.Store(true)
		panic("test panic")
	})

	<-done
	time.Sleep(10 * time.Millisecond)
	if !executed.Load() {
		t.Error("SafeGo did not execute function before panic")
	}
}

func TestBatch_CollectsErrors(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var processed atomic.Int32

	errs := Batch(context.Background(), items, 2, "batch", time.Second, func(ctx context.Context, n int) error {
		processed.Add(1)
		if n%2 == 0 {
			return errors.New("even")
		}
		return nil
	})

	if processed.Load() != 5 {
		t.Errorf("expected 5 items processed, got %d", processed.Load())
	}
	if len(errs) != 2 {
		t.Errorf("expected 2 errors, got %d", len(errs))
	}
}

func TestBatch_RecoversPanics(t *testing.T) {
	errs := Batch(context.Background(), []string{"a", "b"}, 1, "batch", 0, func(ctx context.Context, s string) error {
		if s == "b" {
			panic("boom")
		}
		return nil
	})

	if len(errs) != 1 {
		t.Fatalf("expected 1 error from panic, got %d", len(errs))
	}
}

func TestBatch_BoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	items := make([]int, 10)

	Batch(context.Background(), items, 3, "batch", 0, func(ctx context.Context, _ int) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	})

	if peak.Load() > 3 {
		t.Errorf("expected at most 3 concurrent workers, saw %d", peak.Load())
	}
}
