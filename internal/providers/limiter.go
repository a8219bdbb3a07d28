package providers

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between requests dispatched through one
// adapter instance. Calls made too early block until they become eligible.
type Limiter struct {
	lim      *rate.Limiter
	interval time.Duration
}

// NewLimiter returns a limiter allowing one request per minInterval.
// A non-positive interval disables limiting.
func NewLimiter(minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		return &Limiter{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{lim: rate.NewLimiter(rate.Every(minInterval), 1), interval: minInterval}
}

// Interval returns the configured minimum interval.
func (l *Limiter) Interval() time.Duration { return l.interval }

// Wait blocks until the next request may be dispatched and reports how long
// it waited. If ctx ends first the reservation is released and ctx.Err() returned.
func (l *Limiter) Wait(ctx context.Context) (time.Duration, error) {
	if l == nil {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r := l.lim.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return 0, nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return delay, nil
	case <-ctx.Done():
		r.Cancel()
		return 0, ctx.Err()
	}
}
