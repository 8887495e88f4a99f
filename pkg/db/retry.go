package db

import (
	"context"
	"time"
)

const retryDelay = 50 * time.Millisecond

// RetryOnce runs fn and, when it fails with an error shouldRetry accepts, runs it
// exactly one more time. fn must be idempotent.
func RetryOnce(ctx context.Context, shouldRetry func(error) bool, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || shouldRetry == nil || !shouldRetry(err) {
		return err
	}

	timer := time.NewTimer(retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return err
	case <-timer.C:
	}
	return fn(ctx)
}
