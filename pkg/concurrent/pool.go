// pkg/concurrent/pool.go
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Job represents a unit of work identified by its index in a batch.
type Job func(ctx context.Context, i int) error

// BatchProcessor runs batches of independent jobs with bounded fan-out.
// A failing job never stops the others.
type BatchProcessor struct {
	workers int
}

// NewBatchProcessor creates a processor running at most workers jobs at
// once. Values below one mean sequential.
func NewBatchProcessor(workers int) *BatchProcessor {
	if workers < 1 {
		workers = 1
	}
	return &BatchProcessor{workers: workers}
}

// Workers returns the concurrency bound.
func (b *BatchProcessor) Workers() int { return b.workers }

// ProcessBatch runs job for every index in [0, n) and returns the errors
// in index order; a nil entry means success. Jobs not yet started when ctx
// is cancelled report ctx.Err().
func (b *BatchProcessor) ProcessBatch(ctx context.Context, n int, job Job) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			errs[i] = job(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Failed counts the non-nil errors returned by ProcessBatch.
func Failed(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}
