// Package scroll tracks a continuous scroll: the ordered scroll-ahead
// queue, the IDLE/SCROLLING/SETTLING state machine and the display
// throttle.
package scroll

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"imgview/internal/core/epoch"
	"imgview/internal/core/watch"
)

type State int

const (
	Idle State = iota
	Scrolling
	Settling
)

func (s State) String() string {
	switch s {
	case Scrolling:
		return "scrolling"
	case Settling:
		return "settling"
	default:
		return "idle"
	}
}

type Policy int

const (
	// StrictOrder shows every file in travel order, waiting for late decodes.
	StrictOrder Policy = iota
	// LatestReady jumps to the furthest decoded file, skipping the rest.
	LatestReady
)

func (p Policy) String() string {
	if p == LatestReady {
		return "latest"
	}
	return "strict"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict", "strict-order":
		return StrictOrder, nil
	case "latest", "latest-ready":
		return LatestReady, nil
	default:
		return 0, fmt.Errorf("unknown scroll policy: %q", s)
	}
}

type Options struct {
	Capacity int
	// Settle is the quiet time after the last tick before reconciling.
	Settle time.Duration
	// FPS caps how often a scroll frame is displayed.
	FPS    float64
	Policy Policy
	// StrictWait bounds how long StrictOrder waits for the next step.
	StrictWait time.Duration
	Epoch      *epoch.Token
	// Mark flips the scrolling and settled flags of Epoch. Starting a
	// session also bumps the epoch and returns the new generation. Owners of
	// a lock guarding the epoch pass a Mark that takes it; the default
	// works on Epoch directly.
	Mark func(scrolling bool) uint64
	// OnSettle is called from the debounce timer once ticks stop, with the
	// generation of the session that went quiet.
	OnSettle func(gen uint64)
	Logger   *slog.Logger
}

type TickResult struct {
	Started   bool
	Restarted bool
	Forward   bool
	// Want is the distance the user has asked for so far.
	Want int
	Gen  uint64
}

// Session is one scroll gesture. Steps count files travelled from Origin in
// the scroll direction.
type Session struct {
	capacity   int
	policy     Policy
	strictWait time.Duration
	epoch      *epoch.Token
	mark       func(scrolling bool) uint64
	logger     *slog.Logger

	limiter  *rate.Limiter
	debounce *watch.Debouncer

	mu        sync.Mutex
	state     State
	forward   bool
	origin    int
	want      int
	consumed  int
	requested int
	gen       uint64
	queue     *Queue
}

func NewSession(opts Options) *Session {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = 3
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = 30
	}
	wait := opts.StrictWait
	if wait <= 0 {
		wait = 150 * time.Millisecond
	}
	tok := opts.Epoch
	if tok == nil {
		tok = epoch.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	mark := opts.Mark
	if mark == nil {
		mark = tok.Mark
	}
	s := &Session{
		mark:       mark,
		capacity:   capacity,
		policy:     opts.Policy,
		strictWait: wait,
		epoch:      tok,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(fps), 1),
		debounce:   watch.NewDebouncer(settle),
	}
	s.debounce.OnFire(func([]string) {
		s.mu.Lock()
		if s.state != Scrolling {
			s.mu.Unlock()
			return
		}
		s.state = Settling
		gen := s.gen
		s.mu.Unlock()
		if opts.OnSettle != nil {
			opts.OnSettle(gen)
		}
	})
	return s
}

// Tick records one scroll step. The first tick starts a session anchored
// at current; a tick against the running direction restarts it.
func (s *Session) Tick(forward bool, current int) TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res TickResult
	switch {
	case s.state != Scrolling:
		res.Started = true
		s.beginLocked(forward, current)
	case forward != s.forward:
		res.Restarted = true
		s.logger.Debug("scroll reversed", "origin", current)
		s.beginLocked(forward, current)
	}
	s.want++
	s.debounce.Push("settle")

	res.Forward = s.forward
	res.Want = s.want
	res.Gen = s.gen
	return res
}

func (s *Session) beginLocked(forward bool, current int) {
	if s.queue == nil {
		s.queue = NewQueue(s.capacity)
	} else {
		s.queue.Clear()
	}
	s.state = Scrolling
	s.forward = forward
	s.origin = current
	s.want = 0
	s.consumed = 0
	s.requested = 0
	s.gen = s.mark(true)
}


// Reserve hands the next step to a producer, keeping at most capacity steps
// outstanding ahead of the display. ok is false when the producer should
// stop.
func (s *Session) Reserve() (step int, gen uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Scrolling || s.requested-s.consumed >= s.capacity {
		return 0, 0, false
	}
	s.requested++
	return s.requested, s.gen, true
}

// Release returns a reserved step whose decode was abandoned, so it can be
// reserved again.
func (s *Session) Release(step int, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen && step == s.requested {
		s.requested--
	}
}

// Take picks the next item to display according to the policy. StrictOrder
// waits (bounded) for exactly the next step; LatestReady waits (bounded)
// for anything. On timeout missing names the next step so the caller can
// decode it directly instead of stalling.
func (s *Session) Take(ctx context.Context) (it Item, missing int, ok bool) {
	s.mu.Lock()
	q, consumed, want, policy := s.queue, s.consumed, s.want, s.policy
	s.mu.Unlock()
	if q == nil || consumed >= want {
		return Item{}, 0, false
	}

	if policy == LatestReady {
		if it, ok := q.TakeLatest(consumed, want); ok {
			return it, 0, true
		}
		q.waitChange(ctx, s.strictWait)
		if it, ok := q.TakeLatest(consumed, want); ok {
			return it, 0, true
		}
		return Item{}, consumed + 1, false
	}
	next := consumed + 1
	if it, ok := q.TakeNext(ctx, next, s.strictWait); ok {
		return it, 0, true
	}
	return Item{}, next, false
}

// Consumed marks step as displayed. Steps never go backwards.
func (s *Session) Consumed(step int, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || step <= s.consumed {
		return false
	}
	s.consumed = step
	if s.requested < step {
		s.requested = step
	}
	return true
}

// Limit caps the requested distance at max, used when the list ends before
// the scroll does. It reports whether the request was cut.
func (s *Session) Limit(max int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.want <= max {
		return false
	}
	s.want = max
	if s.requested > max {
		s.requested = max
	}
	return true
}

// Active reports whether a session is scrolling or settling.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != Idle
}

// Throttle blocks until the display may show another scroll frame.
func (s *Session) Throttle(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// Settle forces the settle transition now instead of waiting for the timer.
func (s *Session) Settle() {
	s.debounce.Flush()
}

// Finish returns the session to IDLE and hands back whatever is still
// queued, in step order.
func (s *Session) Finish() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishLocked()
}

// FinishSettled is Finish for the settle of session gen. It does nothing
// unless that session is still the one settling; a tick after the timer
// fired has already started a newer session.
func (s *Session) FinishSettled(gen uint64) ([]Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Settling || s.gen != gen {
		return nil, false
	}
	return s.finishLocked(), true
}

func (s *Session) finishLocked() []Item {
	s.debounce.Stop()
	s.state = Idle
	s.mark(false)
	if s.queue == nil {
		return nil
	}
	return s.queue.Drain()
}

// Abort stops the session, discarding queued work.
func (s *Session) Abort() {
	n := len(s.Finish())
	if n > 0 {
		s.logger.Debug("scroll aborted", "discarded", n)
	}
}

func (s *Session) Put(it Item, gen uint64) error {
	s.mu.Lock()
	q, cur := s.queue, s.gen
	s.mu.Unlock()
	if q == nil || gen != cur {
		return fmt.Errorf("scroll session moved on")
	}
	return q.Put(it)
}

type Status struct {
	State     State
	Forward   bool
	Origin    int
	Want      int
	Consumed  int
	Requested int
	Queued    int
	Capacity  int
	Policy    Policy
	Gen       uint64
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:     s.state,
		Forward:   s.forward,
		Origin:    s.origin,
		Want:      s.want,
		Consumed:  s.consumed,
		Requested: s.requested,
		Capacity:  s.capacity,
		Policy:    s.policy,
		Gen:       s.gen,
	}
	if s.queue != nil {
		st.Queued = s.queue.Len()
	}
	return st
}

func (s *Session) SetPolicy(p Policy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}
