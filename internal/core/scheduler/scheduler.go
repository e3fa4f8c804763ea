// Package scheduler decides which files are decoded, when, and on which
// worker. Navigation intents run one at a time on a sequencer whose queue
// keeps only the newest requests; decodes fan out over a worker pool and
// reach the window only through its epoch-checked Publish; frames reach the
// display sink on a single dispatcher goroutine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"imgview/internal/core/decode"
	"imgview/internal/core/epoch"
	"imgview/internal/core/explain"
	"imgview/internal/core/indexspace"
	"imgview/internal/core/order"
	"imgview/internal/core/pool"
	"imgview/internal/core/scroll"
	"imgview/internal/core/window"
)

var ErrClosed = errors.New("scheduler closed")

type Decoder interface {
	Decode(ctx context.Context, path string, opts decode.Options) (decode.Decoded, error)
}

type Scaler interface {
	Scale(img image.Image, w, h int, opts decode.ScaleOptions) image.Image
}

// Provider enumerates a folder. path may name a folder or a file inside it;
// start is the index of that file, or 0.
type Provider interface {
	Load(ctx context.Context, path string, ord order.Order) (space *indexspace.Space, start int, err error)
}

type Frame struct {
	Index    int
	Total    int
	Path     string
	Original image.Image
	Display  image.Image
	Scaled   image.Image
	Meta     decode.Meta
	// Transition is set when the frame replaces the previous image as the
	// result of a single-step advance.
	Transition  bool
	Forward     bool
	Fast        bool
	Unavailable bool
}

// Sink shows frames. Apply is only ever called from one goroutine.
type Sink interface {
	Apply(Frame)
}

type SinkFunc func(Frame)

func (f SinkFunc) Apply(fr Frame) { f(fr) }

// Boundary is raised on a blocked move past either end of a non-cycling
// list, and with Wrapped set when a cycling list wraps around.
type Boundary struct {
	Index   int
	Forward bool
	Wrapped bool
}

type Options struct {
	Decoder    Decoder
	Scaler     Scaler
	Provider   Provider
	Sink       Sink
	OnBoundary func(Boundary)
	Logger     *slog.Logger
	Explain    explain.Explain

	Order  order.Order
	Cycle  bool
	Radius int
	// Workers sizes the decode pool; 1 gives deterministic single-core
	// behaviour. Defaults to runtime.NumCPU().
	Workers int
	// SequencerDepth is how many navigation requests may wait, 1 or 2.
	SequencerDepth int
	Step           int

	ScrollPolicy   scroll.Policy
	ScrollCapacity int
	Settle         time.Duration
	ScrollFPS      float64
	StrictWait     time.Duration

	// SlideShow is the interval ToggleSlideShow starts with; defaults to 3s.
	SlideShow time.Duration

	ColorManage bool
	Profile     string
	Rotate      int
	Background  color.Color
	ScaleToFit  bool
}

type Scheduler struct {
	decoder    Decoder
	scaler     Scaler
	provider   Provider
	onBoundary func(Boundary)
	logger     *slog.Logger
	explain    explain.Explain

	radius     int
	step       int
	decodeOpts decode.Options
	scaleOpts  decode.ScaleOptions

	tok      *epoch.Token
	win      *window.Cache
	seq      *pool.Dismisser
	decodes  *pool.Pool
	rescaler *pool.Dismisser
	scroll   *scroll.Session
	disp     *dispatcher

	producers int
	inFlight  atomic.Int32
	// settleGen is the scroll session waiting to be reconciled, 0 for none.
	settleGen atomic.Uint64

	mu      sync.Mutex
	order   order.Order
	path    string
	openErr error

	stats counters

	showMu      sync.Mutex
	showStop    chan struct{}
	showEvery   time.Duration
	showDefault time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

type counters struct {
	frames      atomic.Uint64
	boundaries  atomic.Uint64
	unavailable atomic.Uint64
	discarded   atomic.Uint64
	direct      atomic.Uint64
}

func New(opts Options) (*Scheduler, error) {
	if opts.Decoder == nil {
		return nil, fmt.Errorf("decoder is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	scaler := opts.Scaler
	if scaler == nil {
		scaler = decode.NewScaler()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	radius := opts.Radius
	if radius <= 0 {
		radius = 1
	}
	step := opts.Step
	if step <= 0 {
		step = 10
	}
	capacity := opts.ScrollCapacity
	if capacity <= 0 {
		capacity = 3 * workers
	}
	ord := opts.Order
	if ord == "" {
		ord = order.Name
	}
	bg := opts.Background
	if bg == nil {
		bg = color.Black
	}
	show := opts.SlideShow
	if show <= 0 {
		show = 3 * time.Second
	}

	tok := epoch.New()
	s := &Scheduler{
		decoder:    opts.Decoder,
		scaler:     scaler,
		provider:   opts.Provider,
		onBoundary: opts.OnBoundary,
		logger:     logger,
		explain:    explain.Or(opts.Explain),
		radius:     radius,
		step:       step,
		decodeOpts: decode.Options{
			ColorManage: opts.ColorManage,
			Profile:     opts.Profile,
			Rotate:      opts.Rotate,
		},
		scaleOpts:   decode.ScaleOptions{Background: bg, ScaleToFit: opts.ScaleToFit},
		tok:         tok,
		order:       ord,
		producers:   max(1, workers-1),
		showDefault: show,
		closed:      make(chan struct{}),
	}
	s.win = window.New(window.Options{Radius: radius, Cycle: opts.Cycle, Epoch: tok})
	s.seq = pool.NewDismisser(pool.DismisserOptions{Name: "sequencer", Depth: opts.SequencerDepth, Logger: logger})
	s.decodes = pool.New(pool.Options{Name: "decode", Size: workers, Logger: logger})
	s.rescaler = pool.NewDismisser(pool.DismisserOptions{Name: "rescaler", Depth: 1, Logger: logger})
	s.scroll = scroll.NewSession(scroll.Options{
		Capacity:   capacity,
		Settle:     opts.Settle,
		FPS:        opts.ScrollFPS,
		Policy:     opts.ScrollPolicy,
		StrictWait: opts.StrictWait,
		Epoch:      tok,
		Mark:       s.win.MarkScroll,
		OnSettle:   s.requestSettle,
		Logger:     logger,
	})
	s.disp = newDispatcher(opts.Sink, opts.OnBoundary, logger)
	return s, nil
}

// submit queues task on the sequencer. Every task first runs a pending
// settle, so a settle evicted from the queue by newer requests still runs
// ahead of them.
func (s *Scheduler) submit(task pool.Task) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	return s.seq.Submit(func(ctx context.Context) {
		s.settlePending(ctx)
		task(ctx)
	})
}

func (s *Scheduler) requestSettle(gen uint64) {
	s.settleGen.Store(gen)
	if err := s.submit(func(context.Context) {}); err != nil {
		s.logger.Debug("settle not queued", "gen", gen, "err", err)
	}
}

func (s *Scheduler) settlePending(ctx context.Context) {
	if gen := s.settleGen.Swap(0); gen != 0 {
		s.reconcile(ctx, gen)
	}
}

// cancelDecodes invalidates and interrupts all decode work.
func (s *Scheduler) cancelDecodes() uint64 {
	gen := s.win.BumpEpoch()
	s.decodes.CancelAll()
	return gen
}

// Open loads the folder containing path (or path itself when it is a
// folder) and shows its first image, or the named file.
func (s *Scheduler) Open(path string) error {
	s.seq.CancelAll()
	s.scroll.Abort()
	s.cancelDecodes()
	return s.submit(func(ctx context.Context) { s.open(ctx, path) })
}

// Advance moves one file forward or backward. fast decodes at reduced
// quality, for held keys.
func (s *Scheduler) Advance(forward, fast bool) error {
	return s.submit(func(ctx context.Context) { s.advance(ctx, forward, fast) })
}

func (s *Scheduler) Jump(index int) error {
	return s.submit(func(ctx context.Context) { s.jump(ctx, index, false) })
}

// Step pages by delta files, clamped to the list.
func (s *Scheduler) Step(delta int) error {
	return s.submit(func(ctx context.Context) {
		cur := s.win.CurrentIndex()
		s.jump(ctx, indexspace.Clamp(cur+delta, s.win.Space().Len()), true)
	})
}

func (s *Scheduler) StepSize() int { return s.step }

func (s *Scheduler) PageForward() error  { return s.Step(s.step) }
func (s *Scheduler) PageBackward() error { return s.Step(-s.step) }

func (s *Scheduler) First() error {
	return s.submit(func(ctx context.Context) { s.jump(ctx, 0, true) })
}

func (s *Scheduler) Last() error {
	return s.submit(func(ctx context.Context) { s.jump(ctx, s.win.Space().Len()-1, true) })
}

// Resize records the viewport and rescales resident images. A burst of
// resizes collapses to the latest size.
func (s *Scheduler) Resize(w, h int) error {
	if w < 0 || h < 0 {
		return fmt.Errorf("invalid viewport %dx%d", w, h)
	}
	if !s.win.Resize(window.Size{W: w, H: h}) {
		return nil
	}
	return s.rescaler.Submit(s.rescale)
}

func (s *Scheduler) SetSort(ord order.Order) error {
	return s.submit(func(ctx context.Context) {
		s.mu.Lock()
		s.order = ord
		s.mu.Unlock()
		f, ok := s.win.CurrentFile()
		if !ok {
			return
		}
		s.scroll.Abort()
		s.cancelDecodes()
		s.open(ctx, f.Path)
	})
}

func (s *Scheduler) SetCycle(cycle bool) error {
	return s.submit(func(ctx context.Context) {
		m := s.win.SetCycle(cycle)
		s.fill(ctx, s.tok.Current(), m.Targets, false)
	})
}

// Refresh re-enumerates the open folder, keeping the current file when it
// still exists.
func (s *Scheduler) Refresh() error {
	return s.submit(s.refresh)
}

// Reload decodes the whole window again at full quality.
func (s *Scheduler) Reload() error {
	return s.submit(func(ctx context.Context) {
		s.scroll.Abort()
		s.cancelDecodes()
		gen, _ := s.win.Reset(s.win.Space(), s.win.CurrentIndex())
		s.initialLoad(ctx, gen)
	})
}

// Cancel stops the slideshow, drops queued navigation and interrupts all
// decoding.
func (s *Scheduler) Cancel() {
	s.stopSlideShow()
	s.seq.CancelAll()
	s.scroll.Abort()
	s.cancelDecodes()
	s.rescaler.CancelAll()
}

// WaitIdle blocks until no navigation, decode, rescale or frame delivery is
// outstanding.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	for {
		if err := s.seq.Wait(ctx); err != nil {
			return err
		}
		if err := s.decodes.Wait(ctx); err != nil {
			return err
		}
		if err := s.rescaler.Wait(ctx); err != nil {
			return err
		}
		if err := s.disp.flush(ctx); err != nil {
			return err
		}
		if !s.seq.Busy() && !s.decodes.Busy() && !s.rescaler.Busy() && s.inFlight.Load() == 0 {
			return nil
		}
	}
}

type Stats struct {
	Frames      uint64
	Boundaries  uint64
	Unavailable uint64
	Discarded   uint64
	Direct      uint64
	Sequencer   pool.Stats
	Decode      pool.Stats
	Rescaler    pool.Stats
}

type Status struct {
	Path    string
	Order   order.Order
	Err     string
	Current string
	Window  window.Snapshot
	Scroll  scroll.Status
	Stats   Stats

	// SlideShow is the running slideshow interval, 0 when stopped.
	SlideShow time.Duration
}

func (s *Scheduler) Snapshot() Status {
	s.mu.Lock()
	st := Status{Path: s.path, Order: s.order}
	if s.openErr != nil {
		st.Err = s.openErr.Error()
	}
	s.mu.Unlock()
	if f, ok := s.win.CurrentFile(); ok {
		st.Current = f.Path
	}
	st.Window = s.win.Snapshot()
	st.Scroll = s.scroll.Status()
	st.SlideShow = s.SlideShowInterval()
	st.Stats = s.Stats()
	return st
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Frames:      s.stats.frames.Load(),
		Boundaries:  s.stats.boundaries.Load(),
		Unavailable: s.stats.unavailable.Load(),
		Discarded:   s.stats.discarded.Load(),
		Direct:      s.stats.direct.Load(),
		Sequencer:   s.seq.Stats(),
		Decode:      s.decodes.Stats(),
		Rescaler:    s.rescaler.Stats(),
	}
}

// Current returns the resident entry for the current file.
func (s *Scheduler) Current() (window.Entry, bool) {
	return s.win.Current()
}

func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.stopSlideShow()
		s.scroll.Abort()
		s.win.BumpEpoch()
		_ = s.seq.Close()
		_ = s.rescaler.Close()
		_ = s.decodes.Close()
		s.disp.close()
	})
	return nil
}
