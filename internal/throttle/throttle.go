// Package throttle bounds how fast probes are issued. A Controller owns a
// concurrency ceiling, the per-probe timeout, and an optional minimum delay
// between probe launches. It is passed explicitly to the dispatcher; there
// is no ambient state.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// DefaultConcurrency is the default ceiling on in-flight probes.
	DefaultConcurrency = 50
	// DefaultProbeTimeout is the default per-probe timeout.
	DefaultProbeTimeout = 2 * time.Second
)

// Controller enforces the concurrency ceiling and inter-probe delay.
type Controller struct {
	slots        *semaphore.Weighted
	concurrency  int
	probeTimeout time.Duration
	minDelay     time.Duration

	mu         sync.Mutex
	lastLaunch time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithConcurrency sets the ceiling on concurrent in-flight probes.
// Values below 1 fall back to the default.
func WithConcurrency(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithProbeTimeout sets the per-probe timeout. Values at or below zero fall
// back to the default.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithMinDelay sets a minimum delay between consecutive probe launches,
// rate limiting the scan as a whole. Zero disables the delay.
func WithMinDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.minDelay = d
		}
	}
}

// New creates a Controller with the given options.
func New(opts ...Option) *Controller {
	c := &Controller{
		concurrency:  DefaultConcurrency,
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.slots = semaphore.NewWeighted(int64(c.concurrency))
	return c
}

// Concurrency returns the configured in-flight ceiling.
func (c *Controller) Concurrency() int {
	return c.concurrency
}

// ProbeTimeout returns the per-probe timeout.
func (c *Controller) ProbeTimeout() time.Duration {
	return c.probeTimeout
}

// Acquire blocks until a concurrency slot is free, honoring the minimum
// inter-probe delay, or until ctx is canceled. Every successful Acquire
// must be paired with a Release.
func (c *Controller) Acquire(ctx context.Context) error {
	if err := c.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := c.waitMinDelay(ctx); err != nil {
		c.slots.Release(1)
		return err
	}
	return nil
}

// TryAcquire acquires a slot without blocking. It ignores the inter-probe
// delay and reports whether a slot was taken.
func (c *Controller) TryAcquire() bool {
	return c.slots.TryAcquire(1)
}

// Release frees a slot taken by Acquire or TryAcquire.
func (c *Controller) Release() {
	c.slots.Release(1)
}

// waitMinDelay sleeps until minDelay has passed since the previous launch.
func (c *Controller) waitMinDelay(ctx context.Context) error {
	if c.minDelay <= 0 {
		return nil
	}

	c.mu.Lock()
	now := time.Now()
	next := c.lastLaunch.Add(c.minDelay)
	if next.Before(now) {
		next = now
	}
	c.lastLaunch = next
	c.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
