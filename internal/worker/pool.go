package worker

import (
	"context"
	"sync"
)

// Pool runs items through a handler with bounded parallelism. Results keep
// the order of the input items; batch verification relies on each item being
// an independent unit, so a failed item only affects its own slot.
type Pool[T, R any] struct {
	workers int
	handle  func(ctx context.Context, item T) R
}

// NewPool creates a pool with the given worker count
func NewPool[T, R any](workers int, handle func(ctx context.Context, item T) R) *Pool[T, R] {
	if workers <= 0 {
		workers = 1
	}
	return &Pool[T, R]{workers: workers, handle: handle}
}

// Run processes all items and returns their results in input order. Stops
// feeding new items once ctx is cancelled; in-flight items finish. Slots for
// unprocessed items hold the zero value of R.
func (p *Pool[T, R]) Run(ctx context.Context, items []T) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}

	type indexed struct {
		idx  int
		item T
	}

	jobs := make(chan indexed)
	var wg sync.WaitGroup

	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.idx] = p.handle(ctx, j.item)
			}
		}()
	}

	for i, item := range items {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return results
		case jobs <- indexed{idx: i, item: item}:
		}
	}

	close(jobs)
	wg.Wait()
	return results
}
