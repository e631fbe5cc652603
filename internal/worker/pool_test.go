package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestForEachProcessesAllItems(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	var count int64

	failures := ForEach(context.Background(), items, 2, func(ctx context.Context, item string) error {
		atomic.AddInt64(&count, 1)
		return nil
	})

	if len(failures) != 0 {
		t.Errorf("expected no failures, got %d", len(failures))
	}
	if count != int64(len(items)) {
		t.Errorf("expected %d items processed, got %d", len(items), count)
	}
}

func TestForEachCollectsFailuresWithoutAborting(t *testing.T) {
	items := []string{"ok1", "bad", "ok2"}
	boom := errors.New("boom")
	var processed int64

	failures := ForEach(context.Background(), items, 1, func(ctx context.Context, item string) error {
		atomic.AddInt64(&processed, 1)
		if item == "bad" {
			return boom
		}
		return nil
	})

	if processed != 3 {
		t.Errorf("a failure must not abort the batch, processed %d of 3", processed)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if failures[0].Item != "bad" || !errors.Is(failures[0].Err, boom) {
		t.Errorf("failure should record item and error, got %+v", failures[0])
	}
}

func TestForEachRespectsWidth(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f"}
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	ForEach(context.Background(), items, 2, func(ctx context.Context, item string) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})

	if maxInFlight > 2 {
		t.Errorf("concurrency should be bounded at 2, observed %d", maxInFlight)
	}
}

func TestForEachStopsFeedingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var processed int64

	ForEach(ctx, items, 1, func(ctx context.Context, item string) error {
		if atomic.AddInt64(&processed, 1) == 2 {
			cancel()
			// Give the feeder time to observe cancellation while the sole
			// worker is still busy in here
			time.Sleep(20 * time.Millisecond)
		}
		return nil
	})

	if processed >= int64(len(items)) {
		t.Errorf("cancellation should stop feeding new items, processed all %d", processed)
	}
}

func TestForEachAccountsForEveryItemOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := []string{"a", "b", "c", "d", "e", "f"}
	var processed int64

	failures := ForEach(ctx, items, 1, func(ctx context.Context, item string) error {
		if atomic.AddInt64(&processed, 1) == 1 {
			cancel()
			time.Sleep(20 * time.Millisecond)
		}
		return nil
	})

	// Every item must land in either the processed set or the failures list
	if got := processed + int64(len(failures)); got != int64(len(items)) {
		t.Fatalf("cancel left items unaccounted for: processed=%d failures=%d of %d",
			processed, len(failures), len(items))
	}
	for _, f := range failures {
		if !errors.Is(f.Err, context.Canceled) {
			t.Errorf("undispatched item %s should record the context error, got %v", f.Item, f.Err)
		}
	}
}

func TestForEachEmptyInput(t *testing.T) {
	if failures := ForEach(context.Background(), nil, 4, func(ctx context.Context, item string) error {
		t.Error("fn should never run for empty input")
		return nil
	}); failures != nil {
		t.Errorf("empty input should return nil failures, got %v", failures)
	}
}
