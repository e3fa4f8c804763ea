package scroll

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"imgview/internal/core/window"
)

var (
	ErrQueueFull = errors.New("scroll queue full")
	ErrDuplicate = errors.New("scroll step already queued")
)

// Item is a decoded image produced ahead of the display while scrolling.
// Step is the distance from the scroll origin and orders the queue.
type Item struct {
	Step  int
	Index int
	Entry window.Entry
}

// Queue is a bounded buffer of scroll-ahead decodes kept sorted by Step.
type Queue struct {
	mu      sync.Mutex
	cap     int
	items   []Item
	changed chan struct{}
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{cap: capacity, changed: make(chan struct{})}
}

func (q *Queue) Put(it Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.cap {
		return ErrQueueFull
	}
	i := sort.Search(len(q.items), func(i int) bool { return q.items[i].Step >= it.Step })
	if i < len(q.items) && q.items[i].Step == it.Step {
		return ErrDuplicate
	}
	q.items = append(q.items, Item{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = it
	close(q.changed)
	q.changed = make(chan struct{})
	return nil
}

// TakeNext removes and returns the item for exactly step, waiting up to
// wait for a producer to deliver it. Items behind step are discarded.
func (q *Queue) TakeNext(ctx context.Context, step int, wait time.Duration) (Item, bool) {
	var timer <-chan time.Time
	for {
		q.mu.Lock()
		q.dropBeforeLocked(step)
		if len(q.items) > 0 && q.items[0].Step == step {
			it := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return it, true
		}
		ch := q.changed
		q.mu.Unlock()

		if wait <= 0 {
			return Item{}, false
		}
		if timer == nil {
			t := time.NewTimer(wait)
			defer t.Stop()
			timer = t.C
		}
		select {
		case <-ch:
		case <-timer:
			return Item{}, false
		case <-ctx.Done():
			return Item{}, false
		}
	}
}

// TakeLatest removes the furthest item with after < Step <= upTo together
// with everything behind it.
func (q *Queue) TakeLatest(after, upTo int) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropBeforeLocked(after + 1)
	best := -1
	for i, it := range q.items {
		if it.Step > upTo {
			break
		}
		best = i
	}
	if best < 0 {
		return Item{}, false
	}
	it := q.items[best]
	q.items = q.items[best+1:]
	return it, true
}

func (q *Queue) waitChange(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	q.mu.Lock()
	ch := q.changed
	q.mu.Unlock()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ch:
	case <-t.C:
	case <-ctx.Done():
	}
}

func (q *Queue) dropBeforeLocked(step int) {
	n := 0
	for n < len(q.items) && q.items[n].Step < step {
		n++
	}
	if n > 0 {
		q.items = q.items[n:]
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Cap() int { return q.cap }

func (q *Queue) Has(step int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := sort.Search(len(q.items), func(i int) bool { return q.items[i].Step >= step })
	return i < len(q.items) && q.items[i].Step == step
}

// Drain empties the queue and returns its items in step order.
func (q *Queue) Drain() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

func (q *Queue) Clear() int {
	return len(q.Drain())
}
