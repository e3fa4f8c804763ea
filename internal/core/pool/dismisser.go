package pool

import (
	"context"
	"log/slog"
	"sync"
)

type DismisserOptions struct {
	Name string
	// Depth is how many not-yet-started tasks may wait, 1 or 2.
	Depth  int
	Logger *slog.Logger
}

// Dismisser runs tasks one at a time in submission order. When the queue is
// full a new task evicts the oldest waiting one; the running task is never
// displaced.
type Dismisser struct {
	name   string
	depth  int
	logger *slog.Logger

	mu      sync.Mutex
	pending []Task
	ctx     context.Context
	cancel  context.CancelFunc

	act   *activity
	stats counters

	wake      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

func NewDismisser(opts DismisserOptions) *Dismisser {
	depth := opts.Depth
	if depth <= 0 {
		depth = 2
	}
	if depth > 2 {
		depth = 2
	}
	name := opts.Name
	if name == "" {
		name = "dismisser"
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dismisser{
		name:   name,
		depth:  depth,
		logger: discard(opts.Logger),
		ctx:    ctx,
		cancel: cancel,
		act:    newActivity(),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dismisser) Submit(task Task) error {
	if d == nil || task == nil {
		return ErrClosed
	}
	d.mu.Lock()
	select {
	case <-d.closed:
		d.mu.Unlock()
		return ErrClosed
	default:
	}
	d.act.add(1)
	if len(d.pending) >= d.depth {
		d.pending = d.pending[1:]
		d.stats.dropped.Add(1)
		d.act.done(1)
		d.logger.Debug("dismissed queued task", "pool", d.name)
	}
	d.pending = append(d.pending, task)
	d.mu.Unlock()
	d.stats.submitted.Add(1)

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// CancelAll interrupts the running task, discards queued ones and installs
// a fresh context for later submissions.
func (d *Dismisser) CancelAll() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancel()
	n := len(d.pending)
	d.pending = nil
	d.act.done(n)
	d.stats.cancelled.Add(uint64(n))
	select {
	case <-d.closed:
	default:
		d.ctx, d.cancel = context.WithCancel(context.Background())
	}
	return n
}

func (d *Dismisser) Wait(ctx context.Context) error {
	if d == nil {
		return nil
	}
	return d.act.wait(ctx)
}

func (d *Dismisser) Busy() bool {
	return d != nil && d.act.busy()
}

func (d *Dismisser) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return d.stats.snapshot()
}

func (d *Dismisser) Close() error {
	if d == nil {
		return nil
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		close(d.closed)
		d.mu.Unlock()
		d.CancelAll()
	})
	<-d.done
	return nil
}

func (d *Dismisser) loop() {
	defer close(d.done)
	for {
		select {
		case <-d.closed:
			return
		case <-d.wake:
		}
		for {
			d.mu.Lock()
			if len(d.pending) == 0 {
				d.mu.Unlock()
				break
			}
			task := d.pending[0]
			d.pending = d.pending[1:]
			ctx := d.ctx
			d.mu.Unlock()

			run(ctx, d.name, d.logger, &d.stats, task)
			d.act.done(1)

			select {
			case <-d.closed:
				return
			default:
			}
		}
	}
}
