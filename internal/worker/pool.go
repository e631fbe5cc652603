// Package worker provides the bounded-concurrency batch combinator used by
// the scanner: run a function per item with a fixed worker count and collect
// per-item failures instead of aborting the batch.
package worker

import (
	"context"
	"sync"
)

// ItemError records a single item's failure within a batch
type ItemError struct {
	Item string `json:"item"`
	Err  error  `json:"-"`
}

// ForEach runs fn for every item with at most width concurrent workers.
// Failures are collected and returned; they never abort the other items.
// Workers stop picking up new items once ctx is cancelled.
func ForEach(ctx context.Context, items []string, width int, fn func(ctx context.Context, item string) error) []ItemError {
	if width < 1 {
		width = 1
	}
	if width > len(items) {
		width = len(items)
	}
	if len(items) == 0 {
		return nil
	}

	itemChan := make(chan string)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var failures []ItemError

	for i := 0; i < width; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemChan {
				if err := fn(ctx, item); err != nil {
					mu.Lock()
					failures = append(failures, ItemError{Item: item, Err: err})
					mu.Unlock()
				}
			}
		}()
	}

	for i, item := range items {
		select {
		case itemChan <- item:
		case <-ctx.Done():
			close(itemChan)
			wg.Wait()
			// Undispatched items still count as failures so callers can
			// account for every item in the batch.
			for _, skipped := range items[i:] {
				failures = append(failures, ItemError{Item: skipped, Err: ctx.Err()})
			}
			return failures
		}
	}
	close(itemChan)
	wg.Wait()

	return failures
}
