package scheduler

import (
	"context"
	"log/slog"
	"sync"
)

type event struct {
	frame    *Frame
	boundary *Boundary
	ack      chan struct{}
}

// dispatcher delivers frames and boundary signals on one goroutine, in the
// order they were published.
type dispatcher struct {
	sink       Sink
	onBoundary func(Boundary)
	logger     *slog.Logger

	events    chan event
	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

func newDispatcher(sink Sink, onBoundary func(Boundary), logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		sink:       sink,
		onBoundary: onBoundary,
		logger:     logger,
		events:     make(chan event, 64),
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *dispatcher) frame(f Frame) {
	d.send(event{frame: &f})
}

func (d *dispatcher) boundary(b Boundary) {
	d.send(event{boundary: &b})
}

func (d *dispatcher) send(ev event) {
	select {
	case d.events <- ev:
	case <-d.closed:
	}
}

// flush returns once every event sent before it has been handled.
func (d *dispatcher) flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case d.events <- event{ack: ack}:
	case <-d.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-d.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for {
		select {
		case <-d.closed:
			return
		case ev := <-d.events:
			d.handle(ev)
		}
	}
}

func (d *dispatcher) handle(ev event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("sink panicked", "panic", r)
		}
	}()
	switch {
	case ev.ack != nil:
		close(ev.ack)
	case ev.frame != nil && d.sink != nil:
		d.sink.Apply(*ev.frame)
	case ev.boundary != nil && d.onBoundary != nil:
		d.onBoundary(*ev.boundary)
	}
}

func (d *dispatcher) close() {
	d.closeOnce.Do(func() { close(d.closed) })
	<-d.done
}
