package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsConcurrently(t *testing.T) {
	p := New(Options{Size: 4})
	t.Cleanup(func() { _ = p.Close() })

	var peak, cur atomic.Int32
	gate := make(chan struct{})
	for i := 0; i < 4; i++ {
		if !p.TrySubmit(func(context.Context) {
			n := cur.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-gate
			cur.Add(-1)
		}) {
			t.Fatal("submit rejected")
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for peak.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(gate)
	if err := p.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if peak.Load() != 4 {
		t.Fatalf("peak=%d", peak.Load())
	}
}

func TestPool_TrySubmitFullQueue(t *testing.T) {
	p := New(Options{Size: 1, Depth: 1})
	t.Cleanup(func() { _ = p.Close() })

	started := make(chan struct{})
	release := make(chan struct{})
	p.TrySubmit(func(context.Context) {
		close(started)
		<-release
	})
	<-started
	if !p.TrySubmit(func(context.Context) {}) {
		t.Fatal("queue slot should be free")
	}
	if p.TrySubmit(func(context.Context) {}) {
		t.Fatal("full queue accepted a task")
	}
	close(release)
	if err := p.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
}

func TestPool_CancelAllRestartsWithFreshContext(t *testing.T) {
	p := New(Options{Size: 1, Depth: 8})
	t.Cleanup(func() { _ = p.Close() })

	started := make(chan struct{})
	interrupted := make(chan struct{})
	p.TrySubmit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(interrupted)
	})
	<-started

	var sawCancelled atomic.Int32
	for i := 0; i < 3; i++ {
		p.TrySubmit(func(ctx context.Context) {
			if ctx.Err() != nil {
				sawCancelled.Add(1)
			}
		})
	}
	p.CancelAll()
	<-interrupted
	if err := p.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if sawCancelled.Load() != 3 {
		t.Fatalf("queued tasks seeing cancelled ctx=%d", sawCancelled.Load())
	}

	fresh := make(chan error, 1)
	if err := p.Submit(context.Background(), func(ctx context.Context) { fresh <- ctx.Err() }); err != nil {
		t.Fatal(err)
	}
	if err := <-fresh; err != nil {
		t.Fatalf("post-cancel ctx: %v", err)
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	p := New(Options{Size: 1})
	t.Cleanup(func() { _ = p.Close() })

	p.TrySubmit(func(context.Context) { panic("bad frame") })
	ok := make(chan struct{})
	p.TrySubmit(func(context.Context) { close(ok) })
	select {
	case <-ok:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
	if p.Stats().Panics != 1 {
		t.Fatalf("stats=%+v", p.Stats())
	}
}
