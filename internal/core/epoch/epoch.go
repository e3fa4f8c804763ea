// Package epoch holds the generation token consulted by in-flight decode work
// before it is allowed to publish.
package epoch

import (
	"context"
	"sync/atomic"
)

type Token struct {
	gen       atomic.Uint64
	scrolling atomic.Bool
	settled   atomic.Bool
}

func New() *Token {
	return NewAt(0)
}

// NewAt starts the generation counter at gen.
func NewAt(gen uint64) *Token {
	t := &Token{}
	t.gen.Store(gen)
	t.settled.Store(true)
	return t
}

func (t *Token) Current() uint64 {
	if t == nil {
		return 0
	}
	return t.gen.Load()
}

// Bump invalidates every task that captured an older generation and returns
// the new one.
func (t *Token) Bump() uint64 {
	if t == nil {
		return 0
	}
	return t.gen.Add(1)
}

func (t *Token) Valid(gen uint64) bool {
	return t != nil && t.gen.Load() == gen
}

// Stale reports whether work captured at gen must be dropped, either because
// the generation moved on or because ctx was interrupted.
func (t *Token) Stale(ctx context.Context, gen uint64) bool {
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	return !t.Valid(gen)
}

// SetScrolling returns true when the flag actually changed.
func (t *Token) SetScrolling(v bool) bool {
	if t == nil {
		return false
	}
	return t.scrolling.CompareAndSwap(!v, v)
}

func (t *Token) Scrolling() bool {
	return t != nil && t.scrolling.Load()
}

func (t *Token) SetSettled(v bool) {
	if t == nil {
		return
	}
	t.settled.Store(v)
}

func (t *Token) Settled() bool {
	return t != nil && t.settled.Load()
}

// Mark starts or ends a scroll. A start bumps the generation, sets
// scrolling and clears settled; an end does the reverse without a bump.
// Callers that guard the token with a lock hold it across Mark so the
// flags change together with the generation.
func (t *Token) Mark(scrolling bool) uint64 {
	if t == nil {
		return 0
	}
	if scrolling {
		gen := t.Bump()
		t.SetScrolling(true)
		t.SetSettled(false)
		return gen
	}
	t.SetScrolling(false)
	t.SetSettled(true)
	return t.Current()
}
