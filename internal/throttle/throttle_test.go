package throttle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultConcurrency, c.Concurrency())
	assert.Equal(t, DefaultProbeTimeout, c.ProbeTimeout())
}

func TestOptions(t *testing.T) {
	c := New(
		WithConcurrency(5),
		WithProbeTimeout(500*time.Millisecond),
		WithMinDelay(10*time.Millisecond),
	)
	assert.Equal(t, 5, c.Concurrency())
	assert.Equal(t, 500*time.Millisecond, c.ProbeTimeout())
}

func TestInvalidOptionsFallBack(t *testing.T) {
	c := New(WithConcurrency(0), WithProbeTimeout(-time.Second))
	assert.Equal(t, DefaultConcurrency, c.Concurrency())
	assert.Equal(t, DefaultProbeTimeout, c.ProbeTimeout())
}

func TestConcurrencyCeiling(t *testing.T) {
	const limit = 3
	c := New(WithConcurrency(limit))
	ctx := context.Background()

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, c.Acquire(ctx))
			defer c.Release()

			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Positive(t, peak.Load())
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	c := New(WithConcurrency(1))
	ctx := context.Background()

	require.NoError(t, c.Acquire(ctx))

	acquired := make(chan struct{})
	go func() {
		_ = c.Acquire(ctx)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire should block while the slot is held")
	case <-time.After(50 * time.Millisecond):
	}

	c.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Acquire did not proceed after Release")
	}
	c.Release()
}

func TestAcquireRespectsCancellation(t *testing.T) {
	c := New(WithConcurrency(1))
	require.NoError(t, c.Acquire(context.Background()))
	defer c.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMinDelaySpacesLaunches(t *testing.T) {
	const delay = 20 * time.Millisecond
	c := New(WithConcurrency(10), WithMinDelay(delay))
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, c.Acquire(ctx))
		c.Release()
	}
	elapsed := time.Since(start)

	// Four launches spaced by the minimum delay need at least three gaps.
	assert.GreaterOrEqual(t, elapsed, 3*delay)
}

func TestMinDelayCancellation(t *testing.T) {
	c := New(WithConcurrency(1), WithMinDelay(time.Second))
	require.NoError(t, c.Acquire(context.Background()))
	c.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Acquire(ctx)
	require.Error(t, err)

	// The slot taken during the failed Acquire must have been released.
	assert.True(t, c.TryAcquire())
	c.Release()
}

func TestTryAcquire(t *testing.T) {
	c := New(WithConcurrency(1))
	assert.True(t, c.TryAcquire())
	assert.False(t, c.TryAcquire())
	c.Release()
	assert.True(t, c.TryAcquire())
	c.Release()
}
