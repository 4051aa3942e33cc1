package summarize

import "context"

// ItemResult is the outcome of one pool item. Err is set when that item
// failed; other items are unaffected.
type ItemResult[R any] struct {
	Value R
	Err   error
}

// RunLimited runs fn over items with at most n in flight. Results preserve
// input order regardless of completion order, and one item's failure never
// cancels its siblings. Context cancellation stops unstarted items; their
// results carry ctx.Err().
func RunLimited[T, R any](ctx context.Context, items []T, n int, fn func(ctx context.Context, item T) (R, error)) []ItemResult[R] {
	results := make([]ItemResult[R], len(items))
	if len(items) == 0 {
		return results
	}
	if n <= 0 {
		n = 1
	}

	sem := make(chan struct{}, n)
	done := make(chan int, len(items))

	started := 0
	for i := range items {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			results[i] = ItemResult[R]{Err: ctx.Err()}
			continue
		}
		started++
		go func(idx int) {
			defer func() { <-sem }()
			v, err := fn(ctx, items[idx])
			results[idx] = ItemResult[R]{Value: v, Err: err}
			done <- idx
		}(i)
	}

	for finished := 0; finished < started; finished++ {
		<-done
	}
	return results
}
