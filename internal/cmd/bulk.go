package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// defaultConcurrency bounds the number of parallel calls in bulk commands.
const defaultConcurrency = 4

// bulkResult is the outcome of one operation in a bulk run.
type bulkResult struct {
	ID  string
	Err error
}

// runBulk runs op for every id with at most concurrency calls in flight.
// Results keep the order of ids. Individual failures never stop the run.
func runBulk(
	ctx context.Context,
	ids []string,
	concurrency int,
	progress io.Writer,
	op func(ctx context.Context, id string) error,
) []bulkResult {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	results := make([]bulkResult, len(ids))
	total := len(ids)
	var done atomic.Int64
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		results[i].ID = id
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i].Err = err
				return nil
			}
			defer sem.Release(1)

			results[i].Err = op(ctx, id)

			if progress != nil {
				current := done.Add(1)
				mu.Lock()
				_, _ = fmt.Fprintf(progress, "\rProcessed %d/%d", current, total)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if progress != nil && total > 0 {
		_, _ = fmt.Fprintln(progress)
	}
	return results
}

// countFailures returns the number of failed results.
func countFailures(results []bulkResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
