// Package viewer assembles a scheduler with the on-disk decoder, prober and
// folder provider, and reports what it shows as model values.
package viewer

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"imgview/internal/config"
	"imgview/internal/core/decode"
	"imgview/internal/core/explain"
	"imgview/internal/core/folder"
	"imgview/internal/core/scheduler"
	"imgview/internal/core/walk"
	"imgview/internal/model"
)

type Options struct {
	Config config.Config
	// OnFrame runs on the scheduler's dispatcher goroutine.
	OnFrame    func(model.Frame, scheduler.Frame)
	OnBoundary func(model.Boundary)
	Logger     *slog.Logger
	Explain    explain.Explain
	// Decoder replaces the file decoder, for tests and benchmarks.
	Decoder scheduler.Decoder
	// Walk replaces the enumeration options derived from Config.
	Walk *walk.Options
}

type Viewer struct {
	*scheduler.Scheduler
	cfg    config.Config
	prober *decode.Prober

	mu        sync.Mutex
	last      *model.Frame
	boundary  *model.Boundary
	frameHook func(model.Frame, scheduler.Frame)
	boundHook func(model.Boundary)
}

func New(opts Options) (*Viewer, error) {
	if err := config.Validate(opts.Config); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg := opts.Config
	prober := decode.NewProber(0)

	v := &Viewer{cfg: cfg, prober: prober, frameHook: opts.OnFrame, boundHook: opts.OnBoundary}

	dec := opts.Decoder
	if dec == nil {
		dec = decode.NewService(decode.ServiceOptions{Logger: logger, Prober: prober})
	}
	so := cfg.SchedulerOptions()
	so.Decoder = dec
	so.Scaler = decode.NewScaler()
	wopts := cfg.Walk()
	if opts.Walk != nil {
		wopts = *opts.Walk
	}
	so.Provider = folder.New(folder.Options{
		Walk:           wopts,
		Prober:         prober,
		Catalog:        cfg.UseCatalog,
		CatalogBackend: cfg.CatalogStore,
		Workers:        cfg.Workers,
		Logger:         logger,
	})
	so.Sink = scheduler.SinkFunc(v.apply)
	so.OnBoundary = v.bound
	so.Logger = logger
	so.Explain = opts.Explain

	s, err := scheduler.New(so)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	v.Scheduler = s
	return v, nil
}

func (v *Viewer) Config() config.Config { return v.cfg }

func (v *Viewer) Prober() *decode.Prober { return v.prober }

func (v *Viewer) apply(f scheduler.Frame) {
	mf := FrameInfo(f)
	v.mu.Lock()
	v.last = &mf
	hook := v.frameHook
	v.mu.Unlock()
	if hook != nil {
		hook(mf, f)
	}
}

func (v *Viewer) bound(b scheduler.Boundary) {
	mb := model.Boundary{Index: b.Index, Forward: b.Forward, Wrapped: b.Wrapped}
	v.mu.Lock()
	v.boundary = &mb
	hook := v.boundHook
	v.mu.Unlock()
	if hook != nil {
		hook(mb)
	}
}

// Last returns the most recently shown frame.
func (v *Viewer) Last() (model.Frame, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.last == nil {
		return model.Frame{}, false
	}
	return *v.last, true
}

func (v *Viewer) Status() model.Status {
	st := v.Snapshot()
	out := model.Status{
		Path:        st.Path,
		Order:       st.Order.String(),
		Current:     st.Current,
		Index:       st.Window.Center,
		Total:       st.Window.Total,
		Cycle:       st.Window.Cycle,
		Window:      st.Window.Targets,
		Loaded:      st.Window.Loaded,
		FullyLoaded: st.Window.FullyLoaded,
		Scroll:      st.Scroll.State.String(),
		Policy:      st.Scroll.Policy.String(),
		Frames:      st.Stats.Frames,
		Boundaries:  st.Stats.Boundaries,
		Unavailable: st.Stats.Unavailable,
		Discarded:   st.Stats.Discarded,
		Dropped:     st.Stats.Sequencer.Dropped + st.Stats.Decode.Dropped + st.Stats.Rescaler.Dropped,
		SlideShowMS: st.SlideShow.Milliseconds(),
		Err:         st.Err,
	}
	for _, q := range st.Window.Quality {
		out.Quality = append(out.Quality, q.String())
	}
	v.mu.Lock()
	if v.last != nil {
		f := *v.last
		out.LastFrame = &f
	}
	if v.boundary != nil {
		b := *v.boundary
		out.LastBoundary = &b
	}
	v.mu.Unlock()
	return out
}

func FrameInfo(f scheduler.Frame) model.Frame {
	out := model.Frame{
		Index:       f.Index,
		Total:       f.Total,
		Path:        f.Path,
		Width:       f.Meta.Width,
		Height:      f.Meta.Height,
		Format:      f.Meta.Format,
		Fast:        f.Fast,
		Transition:  f.Transition,
		Forward:     f.Forward,
		Unavailable: f.Unavailable,
		Err:         f.Meta.Err,
	}
	if f.Meta.Fingerprint != 0 {
		out.Fingerprint = strconv.FormatUint(f.Meta.Fingerprint, 16)
	}
	return out
}
