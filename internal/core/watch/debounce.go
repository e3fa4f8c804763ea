package watch

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Debouncer coalesces bursts of keys and fires once the burst has been quiet
// for the delay. Each Push restarts the timer.
type Debouncer struct {
	delay     time.Duration
	delayFunc func(count int) time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	seq    uint64
	queued map[string]struct{}
	onFire func(keys []string)
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	return &Debouncer{
		delay:  delay,
		queued: map[string]struct{}{},
	}
}

func (d *Debouncer) SetDelayFunc(fn func(count int) time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.delayFunc = fn
	d.mu.Unlock()
}

func (d *Debouncer) DelayFor(count int) time.Duration {
	if d == nil {
		return 0
	}
	if d.delayFunc == nil {
		return d.delay
	}
	delay := d.delayFunc(count)
	if delay <= 0 {
		return d.delay
	}
	return delay
}

func (d *Debouncer) OnFire(fn func(keys []string)) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.onFire = fn
	d.mu.Unlock()
}

func (d *Debouncer) Push(key string) {
	if d == nil {
		return
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}

	d.mu.Lock()
	d.queued[key] = struct{}{}
	delay := d.DelayFor(len(d.queued))
	if d.timer != nil {
		_ = d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(delay, func() { d.fire(seq) })
	d.mu.Unlock()
}

// Pending reports whether a fire is scheduled.
func (d *Debouncer) Pending() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queued) > 0
}

// Stop discards queued keys without firing. It reports whether anything
// was pending.
func (d *Debouncer) Stop() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		_ = d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	pending := len(d.queued) > 0
	d.queued = map[string]struct{}{}
	return pending
}

// Flush fires immediately on the calling goroutine if anything is queued.
func (d *Debouncer) Flush() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.timer != nil {
		_ = d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	seq := d.seq
	d.mu.Unlock()
	d.fire(seq)
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	// A later Push or Stop superseded this timer.
	if seq != d.seq {
		d.mu.Unlock()
		return
	}
	queued := d.queued
	d.queued = map[string]struct{}{}
	d.timer = nil
	fn := d.onFire
	d.mu.Unlock()

	if fn == nil || len(queued) == 0 {
		return
	}

	keys := make([]string, 0, len(queued))
	for k := range queued {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fn(keys)
}
