package epoch

import (
	"context"
	"sync"
	"testing"
)

func TestToken_BumpInvalidatesCaptured(t *testing.T) {
	tok := NewAt(5)
	gen := tok.Current()
	if gen != 5 {
		t.Fatalf("gen=%d", gen)
	}
	if tok.Stale(context.Background(), gen) {
		t.Fatal("fresh generation reported stale")
	}
	if got := tok.Bump(); got != 6 {
		t.Fatalf("bump=%d", got)
	}
	if !tok.Stale(context.Background(), gen) {
		t.Fatal("old generation not stale after bump")
	}
}

func TestToken_CancelledContextIsStale(t *testing.T) {
	tok := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !tok.Stale(ctx, tok.Current()) {
		t.Fatal("cancelled ctx should be stale")
	}
}

func TestToken_SetScrollingReportsChange(t *testing.T) {
	tok := New()
	if !tok.Settled() {
		t.Fatal("new token should be settled")
	}
	if !tok.SetScrolling(true) {
		t.Fatal("first set should change")
	}
	if tok.SetScrolling(true) {
		t.Fatal("second set should not change")
	}
	if !tok.Scrolling() {
		t.Fatal("expected scrolling")
	}
	if !tok.SetScrolling(false) {
		t.Fatal("clear should change")
	}
}

func TestToken_ConcurrentBumps(t *testing.T) {
	tok := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tok.Bump()
			}
		}()
	}
	wg.Wait()
	if tok.Current() != 800 {
		t.Fatalf("gen=%d", tok.Current())
	}
}

func TestToken_MarkBumpsOnStartOnly(t *testing.T) {
	tok := NewAt(5)
	if gen := tok.Mark(true); gen != 6 || !tok.Scrolling() || tok.Settled() {
		t.Fatalf("start: gen=%d scrolling=%v settled=%v", gen, tok.Scrolling(), tok.Settled())
	}
	if gen := tok.Mark(false); gen != 6 || tok.Scrolling() || !tok.Settled() {
		t.Fatalf("end: gen=%d scrolling=%v settled=%v", gen, tok.Scrolling(), tok.Settled())
	}
}
