// Package pool runs decode and sequencing work. A Dismisser is a single
// worker whose queue keeps only the newest requests; a Pool is a fixed set
// of workers sharing a context that CancelAll interrupts and replaces.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("pool closed")

// Task receives the pool context it was scheduled under; it must return
// promptly once ctx is done.
type Task func(ctx context.Context)

type Stats struct {
	Submitted uint64
	Dropped   uint64
	Cancelled uint64
	Panics    uint64
}

type counters struct {
	submitted atomic.Uint64
	dropped   atomic.Uint64
	cancelled atomic.Uint64
	panics    atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Submitted: c.submitted.Load(),
		Dropped:   c.dropped.Load(),
		Cancelled: c.cancelled.Load(),
		Panics:    c.panics.Load(),
	}
}

// activity counts queued plus running tasks; idle is closed while the
// count is zero.
type activity struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func newActivity() *activity {
	ch := make(chan struct{})
	close(ch)
	return &activity{idle: ch}
}

func (a *activity) add(n int) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	if a.n == 0 {
		a.idle = make(chan struct{})
	}
	a.n += n
	a.mu.Unlock()
}

func (a *activity) done(n int) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	a.n -= n
	if a.n <= 0 {
		a.n = 0
		close(a.idle)
	}
	a.mu.Unlock()
}

func (a *activity) busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n > 0
}

func (a *activity) wait(ctx context.Context) error {
	a.mu.Lock()
	ch := a.idle
	a.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func run(ctx context.Context, name string, logger *slog.Logger, c *counters, task Task) {
	defer func() {
		if r := recover(); r != nil {
			c.panics.Add(1)
			logger.Error("task panicked", "pool", name, "panic", r)
		}
	}()
	task(ctx)
}

func discard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
