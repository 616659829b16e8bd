// Package workerpool provides a bounded pool for verifier tasks.
//
// A Pool owns a weighted semaphore sized to the configured concurrency.
// Callers open a Batch per unit of work, Submit tasks to it and Join it.
// Join waits only for the tasks of its own batch, while all batches share
// the pool bound:
//
//	pool := workerpool.New(20)
//	batch := pool.NewBatch(ctx)
//	for _, ref := range refs {
//		batch.Submit(func(ctx context.Context) { verify(ctx, ref) })
//	}
//	if err := batch.Join(); err != nil {
//		// ctx was cancelled before every task could start
//	}
package workerpool
