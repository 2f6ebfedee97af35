// Package retry implements bounded exponential backoff for single outbound
// operations. It knows nothing about video semantics; the caller supplies a
// classifier that decides which errors are worth retrying.
package retry

import (
	"context"
	"log/slog"
	"time"
)

type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 4, InitialDelay: 2 * time.Second}
}

// Do runs op up to policy.MaxAttempts times. Only errors the classifier
// reports as transient are retried; anything else propagates immediately.
// The delay doubles after each failed attempt and the last error is
// returned once attempts are exhausted.
func Do(ctx context.Context, policy Policy, transient func(error) bool, op func(ctx context.Context) error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	delay := policy.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !transient(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			slog.Error("all retry attempts failed", "attempts", policy.MaxAttempts, "error", lastErr)
			return lastErr
		}

		slog.Warn("transient error, retrying", "attempt", attempt, "max_attempts", policy.MaxAttempts, "delay", delay, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return lastErr
}
