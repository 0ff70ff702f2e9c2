// Package uptime provides the monotonic clock used for motor and lockout
// timers. A single goroutine advances a tick counter; any number of readers
// may sample it.
package uptime

import (
	"context"
	"sync/atomic"
	"time"
)

// Counter is a monotonic tick counter advanced at a fixed resolution.
// The zero value is not usable; call NewCounter.
type Counter struct {
	ticks      atomic.Uint64
	resolution time.Duration
}

// NewCounter creates a counter that advances once per resolution.
func NewCounter(resolution time.Duration) *Counter {
	if resolution <= 0 {
		resolution = 100 * time.Millisecond
	}
	return &Counter{resolution: resolution}
}

// Run advances the counter until ctx is cancelled. It must be the only
// caller of Advance.
func (c *Counter) Run(ctx context.Context) {
	t := time.NewTicker(c.resolution)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Advance()
		}
	}
}

// Advance adds one tick.
func (c *Counter) Advance() {
	c.ticks.Add(1)
}

// Ticks returns the raw tick count.
func (c *Counter) Ticks() uint64 {
	return c.ticks.Load()
}

// Now returns the elapsed uptime.
func (c *Counter) Now() time.Duration {
	return time.Duration(c.ticks.Load()) * c.resolution
}

// Resolution returns the duration of one tick.
func (c *Counter) Resolution() time.Duration {
	return c.resolution
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	now atomic.Int64
}

// NewFake creates a Fake starting at the given uptime.
func NewFake(start time.Duration) *Fake {
	f := &Fake{}
	f.now.Store(int64(start))
	return f
}

// Now returns the current fake uptime.
func (f *Fake) Now() time.Duration {
	return time.Duration(f.now.Load())
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.now.Add(int64(d))
}
