package graph

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// TaskResult captures the individual outcome of one task in a batch. Err is
// non-nil when the task was cancelled or never admitted before the batch
// deadline; task-level extraction failures are recovered below this layer
// and do not appear here.
type TaskResult[T any] struct {
	Index int
	Value T
	Err   error
}

// RunAll executes fn for each of n tasks with at most limit running
// concurrently, the whole batch bounded by deadline (0 means no batch
// deadline beyond ctx). Task outcomes are recorded individually; one task
// failing never aborts its siblings. The second return value is true when
// every task completed, false when the batch is partial.
//
// RunAll returns shortly after the deadline fires even when tasks are still
// outstanding: running tasks observe the cancelled context through their own
// call timeouts, and unadmitted tasks are recorded as failures without
// running.
func RunAll[T any](
	ctx context.Context,
	n int,
	limit int,
	deadline time.Duration,
	fn func(ctx context.Context, index int) (T, error),
) ([]TaskResult[T], bool) {
	results := make([]TaskResult[T], n)
	if n == 0 {
		return results, true
	}
	if limit <= 0 {
		limit = 1
	}

	batchCtx := ctx
	cancel := context.CancelFunc(func() {})
	if deadline > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, deadline)
	}
	defer cancel()

	g, gCtx := errgroup.WithContext(batchCtx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		idx := i
		results[idx].Index = idx
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				results[idx].Err = gCtx.Err()
				return nil
			default:
				value, err := fn(gCtx, idx)
				results[idx].Value = value
				results[idx].Err = err
				return nil
			}
		})
	}
	g.Wait()

	complete := true
	for i := range results {
		if results[i].Err != nil {
			complete = false
			break
		}
	}
	return results, complete
}
