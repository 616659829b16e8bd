package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultSize is used when New receives a non-positive size.
const DefaultSize = 10

// Pool bounds how many tasks run at once across all of its batches.
type Pool struct {
	size int
	sem  *semaphore.Weighted
}

// New creates a Pool running at most size tasks at a time.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{
		size: size,
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

// Size returns the maximum number of concurrently running tasks.
func (p *Pool) Size() int {
	return p.size
}

// NewBatch opens a batch whose tasks receive ctx.
func (p *Pool) NewBatch(ctx context.Context) *Batch {
	return &Batch{pool: p, ctx: ctx}
}

// Batch is a group of tasks that is joined as a unit.
type Batch struct {
	pool *Pool
	ctx  context.Context
	g    errgroup.Group
}

// Submit schedules task on the pool. The task starts once a slot is free;
// if ctx is cancelled first it never runs.
func (b *Batch) Submit(task func(ctx context.Context)) {
	b.g.Go(func() error {
		if err := b.pool.sem.Acquire(b.ctx, 1); err != nil {
			return err
		}
		if err := b.ctx.Err(); err != nil {
			b.pool.sem.Release(1)
			return err
		}
		defer b.pool.sem.Release(1)
		task(b.ctx)
		return nil
	})
}

// Join blocks until every submitted task has finished or been skipped.
// It returns the context error when some task was skipped by cancellation.
func (b *Batch) Join() error {
	return b.g.Wait()
}
