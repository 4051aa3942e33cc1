package summarize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunLimited_PreservesOrder(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6, 7}
	results := RunLimited(context.Background(), items, 4, func(_ context.Context, n int) (string, error) {
		// Later items finish first.
		time.Sleep(time.Duration(len(items)-n) * time.Millisecond)
		return fmt.Sprintf("r%d", n), nil
	})

	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("item %d: unexpected error %v", i, r.Err)
		}
		if want := fmt.Sprintf("r%d", i); r.Value != want {
			t.Errorf("result %d = %q, want %q", i, r.Value, want)
		}
	}
}

func TestRunLimited_IsolatesErrors(t *testing.T) {
	boom := errors.New("boom")
	items := []int{0, 1, 2}
	results := RunLimited(context.Background(), items, 3, func(_ context.Context, n int) (int, error) {
		if n == 1 {
			return 0, boom
		}
		return n * 10, nil
	})

	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("sibling results carried errors: %v, %v", results[0].Err, results[2].Err)
	}
	if !errors.Is(results[1].Err, boom) {
		t.Errorf("results[1].Err = %v, want boom", results[1].Err)
	}
	if results[0].Value != 0 || results[2].Value != 20 {
		t.Errorf("values = %d, %d", results[0].Value, results[2].Value)
	}
}

func TestRunLimited_BoundsConcurrency(t *testing.T) {
	var active, peak int64
	var mu sync.Mutex

	RunLimited(context.Background(), make([]struct{}, 20), 3, func(_ context.Context, _ struct{}) (struct{}, error) {
		n := atomic.AddInt64(&active, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return struct{}{}, nil
	})

	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestRunLimited_Empty(t *testing.T) {
	results := RunLimited(context.Background(), nil, 3, func(_ context.Context, _ int) (int, error) {
		t.Error("fn called for empty input")
		return 0, nil
	})
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestRunLimited_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := RunLimited(ctx, []int{1, 2, 3}, 1, func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	// Unstarted items must carry the context error, not hang.
	for i, r := range results {
		if r.Err == nil && r.Value == 0 {
			t.Errorf("result %d neither completed nor errored", i)
		}
	}
}
