package providers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/leadflow/internal/providers"
)

func TestLimiter_FirstCallImmediate(t *testing.T) {
	l := providers.NewLimiter(time.Hour)
	waited, err := l.Wait(context.Background())
	require.NoError(t, err)
	assert.Zero(t, waited)
}

func TestLimiter_BlocksUntilIntervalElapsed(t *testing.T) {
	const interval = 50 * time.Millisecond
	l := providers.NewLimiter(interval)

	start := time.Now()
	for range 3 {
		_, err := l.Wait(context.Background())
		require.NoError(t, err)
	}
	// Three dispatches need at least two full intervals between them.
	assert.GreaterOrEqual(t, time.Since(start), 2*interval-5*time.Millisecond)
}

func TestLimiter_SharedAcrossGoroutines(t *testing.T) {
	const interval = 20 * time.Millisecond
	l := providers.NewLimiter(interval)

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Wait(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	first, last := times[0], times[0]
	for _, ts := range times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 4*interval-5*time.Millisecond)
}

func TestLimiter_ContextCancelledWhileWaiting(t *testing.T) {
	l := providers.NewLimiter(time.Hour)
	_, err := l.Wait(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLimiter_ZeroIntervalDisabled(t *testing.T) {
	l := providers.NewLimiter(0)
	for range 100 {
		waited, err := l.Wait(context.Background())
		require.NoError(t, err)
		assert.Zero(t, waited)
	}
}
