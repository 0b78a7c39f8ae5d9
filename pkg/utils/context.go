package utils

import (
	"context"
	"time"
)

// ContextSleep sleeps for the duration or until the context is cancelled.
// It returns the context error when cancelled.
func ContextSleep(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
