package query

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Executor runs operator tasks with a global concurrency bound. One
// executor is shared across queries, so a burst of wide fan-out queries
// degrades into queueing instead of unbounded goroutine growth.
type Executor struct {
	sem *semaphore.Weighted
}

// NewExecutor creates an executor allowing up to maxConcurrency tasks in
// flight. Non-positive values default to GOMAXPROCS.
func NewExecutor(maxConcurrency int64) *Executor {
	if maxConcurrency <= 0 {
		maxConcurrency = int64(runtime.GOMAXPROCS(0))
	}
	return &Executor{sem: semaphore.NewWeighted(maxConcurrency)}
}

// Run executes the tasks concurrently within the executor's bound and waits
// for all of them. The first error cancels the remaining tasks' context and
// is returned.
func (e *Executor) Run(ctx context.Context, tasks ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, task := range tasks {
		if err := e.sem.Acquire(gctx, 1); err != nil {
			// Acquisition fails only on context cancellation; a task error
			// from the group outranks it.
			if werr := g.Wait(); werr != nil {
				return werr
			}
			return err
		}
		g.Go(func() error {
			defer e.sem.Release(1)
			return task(gctx)
		})
	}

	return g.Wait()
}
