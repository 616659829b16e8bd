package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestNew tests pool construction.
func TestNew(t *testing.T) {
	t.Parallel()

	if got := New(4).Size(); got != 4 {
		t.Errorf("expected size 4, got %d", got)
	}
	if got := New(0).Size(); got != DefaultSize {
		t.Errorf("expected default size %d, got %d", DefaultSize, got)
	}
}

// TestBatch tests batch submission and joining.
func TestBatch(t *testing.T) {
	t.Parallel()

	t.Run("runs every task", func(t *testing.T) {
		t.Parallel()

		pool := New(3)
		batch := pool.NewBatch(context.Background())
		var done atomic.Int64
		for i := 0; i < 50; i++ {
			batch.Submit(func(ctx context.Context) {
				done.Add(1)
			})
		}
		if err := batch.Join(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if done.Load() != 50 {
			t.Errorf("expected 50 tasks, got %d", done.Load())
		}
	})

	t.Run("respects the bound", func(t *testing.T) {
		t.Parallel()

		pool := New(2)
		batch := pool.NewBatch(context.Background())
		var current, peak atomic.Int64
		for i := 0; i < 20; i++ {
			batch.Submit(func(ctx context.Context) {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				current.Add(-1)
			})
		}
		if err := batch.Join(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent tasks, saw %d", peak.Load())
		}
	})

	t.Run("join waits only for its own batch", func(t *testing.T) {
		t.Parallel()

		pool := New(4)
		release := make(chan struct{})
		slow := pool.NewBatch(context.Background())
		slow.Submit(func(ctx context.Context) {
			<-release
		})

		fast := pool.NewBatch(context.Background())
		var ran atomic.Bool
		fast.Submit(func(ctx context.Context) {
			ran.Store(true)
		})
		if err := fast.Join(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ran.Load() {
			t.Error("expected fast batch task to have run")
		}

		close(release)
		if err := slow.Join(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("cancelled context skips pending tasks", func(t *testing.T) {
		t.Parallel()

		pool := New(1)
		ctx, cancel := context.WithCancel(context.Background())

		block := make(chan struct{})
		started := make(chan struct{})
		batch := pool.NewBatch(ctx)
		batch.Submit(func(ctx context.Context) {
			close(started)
			<-block
		})
		<-started

		var skipped atomic.Int64
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				batch.Submit(func(ctx context.Context) {
					skipped.Add(1)
				})
			}
		}()
		wg.Wait()

		cancel()
		close(block)

		if err := batch.Join(); err == nil {
			t.Error("expected context error from Join")
		}
		if skipped.Load() != 0 {
			t.Errorf("expected pending tasks to be skipped, %d ran", skipped.Load())
		}
	})
}
