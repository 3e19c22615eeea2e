package relaylib

import (
	"context"
	"time"
)

// Bounded runs fn with a context that expires after d and returns whichever
// comes first: fn's result or the deadline. When the deadline wins, fn's
// context is canceled and its late result is dropped.
func Bounded[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	// buffered so the losing goroutine can always finish its send
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			var zero T
			return zero, ctx.Err()
		}
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
