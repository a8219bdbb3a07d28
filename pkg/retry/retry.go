// Package retry holds the backoff policy shared by infrastructure calls
// (database connect, event publish) and task rescheduling.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config controls how Do repeats a call.
type Config struct {
	// MaxAttempts counts the first call. Values below 1 mean one call.
	MaxAttempts int
	// BaseDelay scales Backoff between attempts.
	BaseDelay time.Duration
	// MaxDelay caps the wait between attempts when positive.
	MaxDelay time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries
	// every error.
	Retryable func(err error) bool
	// OnRetry runs after attempt (1-indexed) failed and before the wait.
	OnRetry func(attempt int, err error)
}

// Do calls fn until it succeeds, returns an error Retryable rejects, or
// MaxAttempts is spent. Waits follow Backoff:
//
//	BaseDelay=1s  →  1s, 4s, 9s, ...
//
// The last error from fn is returned unwrapped. Cancellation during a wait
// returns ctx.Err() wrapped.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= attempts || (cfg.Retryable != nil && !cfg.Retryable(err)) {
			return err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(Backoff(attempt, cfg.BaseDelay, cfg.MaxDelay))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
		}
	}
}

// Backoff returns base * attempt², capped at max when max > 0.
// attempt values below 1 are treated as 1.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base * time.Duration(attempt*attempt)
	if max > 0 && (d > max || d < 0) {
		return max
	}
	return d
}
