package pool

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
)

type Options struct {
	Name string
	// Size defaults to runtime.NumCPU().
	Size int
	// Depth is the queue length; defaults to 4×Size.
	Depth  int
	Logger *slog.Logger
}

type job struct {
	ctx  context.Context
	task Task
}

// Pool is a fixed set of workers. Panicking tasks are recovered and the
// worker keeps serving; CancelAll interrupts everything in flight without
// tearing the workers down.
type Pool struct {
	name   string
	size   int
	logger *slog.Logger

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc

	jobs  chan job
	act   *activity
	stats counters

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

func New(opts Options) *Pool {
	size := opts.Size
	if size <= 0 {
		size = runtime.NumCPU()
	}
	depth := opts.Depth
	if depth <= 0 {
		depth = 4 * size
	}
	name := opts.Name
	if name == "" {
		name = "pool"
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:   name,
		size:   size,
		logger: discard(opts.Logger),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan job, depth),
		act:    newActivity(),
		closed: make(chan struct{}),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) Size() int {
	if p == nil {
		return 0
	}
	return p.size
}

// Context is the context new tasks are scheduled under.
func (p *Pool) Context() context.Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ctx
}

// TrySubmit queues task without blocking. It returns false when the queue is
// full or the pool is closed; the caller may then run the task itself.
func (p *Pool) TrySubmit(task Task) bool {
	if p == nil || task == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	select {
	case <-p.closed:
		return false
	default:
	}
	p.act.add(1)
	select {
	case p.jobs <- job{ctx: p.ctx, task: task}:
		p.stats.submitted.Add(1)
		return true
	default:
		p.act.done(1)
		return false
	}
}

// Submit queues task, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if p == nil || task == nil {
		return ErrClosed
	}
	if p.TrySubmit(task) {
		return nil
	}
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	p.act.add(1)
	select {
	case p.jobs <- job{ctx: p.Context(), task: task}:
		p.stats.submitted.Add(1)
		return nil
	case <-ctx.Done():
		p.act.done(1)
		return ctx.Err()
	case <-p.closed:
		p.act.done(1)
		return ErrClosed
	}
}

// CancelAll cancels the context of every running and queued task, drains
// the queue and installs a fresh context. Drained tasks are invoked inline
// with their cancelled context so they can release what they hold.
func (p *Pool) CancelAll() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	p.cancel()
	select {
	case <-p.closed:
	default:
		p.ctx, p.cancel = context.WithCancel(context.Background())
	}
	p.mu.Unlock()
	return p.drain()
}

func (p *Pool) drain() int {
	n := 0
	for {
		select {
		case j := <-p.jobs:
			run(j.ctx, p.name, p.logger, &p.stats, j.task)
			p.act.done(1)
			n++
		default:
			p.stats.cancelled.Add(uint64(n))
			return n
		}
	}
}

func (p *Pool) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.act.wait(ctx)
}

func (p *Pool) Busy() bool {
	return p != nil && p.act.busy()
}

func (p *Pool) Stats() Stats {
	if p == nil {
		return Stats{}
	}
	return p.stats.snapshot()
}

func (p *Pool) Close() error {
	if p == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		p.mu.Lock()
		close(p.closed)
		p.cancel()
		p.mu.Unlock()
		p.wg.Wait()
		p.drain()
	})
	return nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.closed:
			return
		case j := <-p.jobs:
			run(j.ctx, p.name, p.logger, &p.stats, j.task)
			p.act.done(1)
		}
	}
}
