package scroll

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func TestQueue_CapacityAndDuplicates(t *testing.T) {
	q := NewQueue(3)
	for _, s := range []int{3, 1, 2} {
		if err := q.Put(Item{Step: s}); err != nil {
			t.Fatalf("put %d: %v", s, err)
		}
	}
	if err := q.Put(Item{Step: 4}); err != ErrQueueFull {
		t.Fatalf("err=%v want full", err)
	}
	q.Drain()
	_ = q.Put(Item{Step: 1})
	if err := q.Put(Item{Step: 1}); err != ErrDuplicate {
		t.Fatalf("err=%v want duplicate", err)
	}
}

func TestQueue_StrictOrderWaitsForProducer(t *testing.T) {
	q := NewQueue(4)
	_ = q.Put(Item{Step: 2})
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.Put(Item{Step: 1})
	}()
	it, ok := q.TakeNext(context.Background(), 1, time.Second)
	if !ok || it.Step != 1 {
		t.Fatalf("got %+v ok=%v", it, ok)
	}
	it, ok = q.TakeNext(context.Background(), 2, 0)
	if !ok || it.Step != 2 {
		t.Fatalf("got %+v ok=%v", it, ok)
	}
	start := time.Now()
	if _, ok := q.TakeNext(context.Background(), 3, 30*time.Millisecond); ok {
		t.Fatal("expected timeout")
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Fatal("returned before the bounded wait")
	}
}

func TestQueue_RandomProducersStayBoundedAndOrdered(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const capacity = 5
	q := NewQueue(capacity)
	nextPut, consumed := 1, 0
	last := 0
	for round := 0; round < 500; round++ {
		if rng.Intn(2) == 0 {
			// producers finish out of order within the reserved range
			step := consumed + 1 + rng.Intn(capacity)
			_ = q.Put(Item{Step: step})
			if step >= nextPut {
				nextPut = step + 1
			}
		} else if it, ok := q.TakeNext(context.Background(), consumed+1, 0); ok {
			if it.Step <= last {
				t.Fatalf("strict order went backwards: %d after %d", it.Step, last)
			}
			last, consumed = it.Step, it.Step
		}
		if q.Len() > capacity {
			t.Fatalf("len=%d > cap", q.Len())
		}
	}
}

func TestQueue_LatestReadyNonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	q := NewQueue(6)
	consumed, want := 0, 0
	for round := 0; round < 500; round++ {
		switch rng.Intn(3) {
		case 0:
			want++
		case 1:
			_ = q.Put(Item{Step: consumed + 1 + rng.Intn(6)})
		default:
			if it, ok := q.TakeLatest(consumed, want); ok {
				if it.Step <= consumed || it.Step > want {
					t.Fatalf("step %d outside (%d,%d]", it.Step, consumed, want)
				}
				consumed = it.Step
			}
		}
		if q.Len() > q.Cap() {
			t.Fatalf("len=%d > cap", q.Len())
		}
	}
}

func TestQueue_TakeLatestDiscardsBehind(t *testing.T) {
	q := NewQueue(5)
	for _, s := range []int{1, 2, 3, 5} {
		_ = q.Put(Item{Step: s})
	}
	it, ok := q.TakeLatest(0, 4)
	if !ok || it.Step != 3 {
		t.Fatalf("got %+v", it)
	}
	if q.Len() != 1 || !q.Has(5) {
		t.Fatalf("remaining len=%d", q.Len())
	}
}
