package scheduler

import (
	"context"
	"image"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"imgview/internal/core/decode"
	"imgview/internal/core/indexspace"
	"imgview/internal/core/window"
)

func (s *Scheduler) open(ctx context.Context, path string) {
	done := s.explain.Timer("open")
	defer done()

	s.mu.Lock()
	ord := s.order
	s.mu.Unlock()

	space, start, err := s.provider.Load(ctx, path, ord)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.logger.Warn("open failed", "path", path, "err", err)
		space, start = indexspace.Empty(), 0
	}

	s.mu.Lock()
	s.path = path
	s.openErr = err
	s.mu.Unlock()
	s.explain.KV("open.files", space.Len())

	gen, _ := s.win.Reset(space, start)
	if space.Len() == 0 {
		return
	}
	s.initialLoad(ctx, gen)
}

// initialLoad shows the current file from a fast decode, then brings the
// whole window in at full quality and finally rescales for any viewport
// change that arrived meanwhile.
func (s *Scheduler) initialLoad(ctx context.Context, gen uint64) {
	cur, ok := s.currentTarget()
	if !ok {
		return
	}
	s.load(ctx, gen, cur, true, false)
	if s.tok.Stale(ctx, gen) {
		return
	}
	s.win.SetLoaded(true)

	vp := s.win.Viewport()
	targets := append(s.win.NeedsQuality(), s.win.Missing()...)
	if !s.fanOut(ctx, gen, targets, false) {
		return
	}
	s.win.SetFullyLoaded(true)
	s.explain.KV("window.resident", s.win.Resident())
	if s.win.Viewport() != vp {
		_ = s.rescaler.Submit(s.rescale)
	}
}

func (s *Scheduler) currentTarget() (window.Target, bool) {
	f, ok := s.win.CurrentFile()
	if !ok {
		return window.Target{}, false
	}
	idx := s.win.CurrentIndex()
	slot, ok := s.win.SlotFor(idx)
	if !ok {
		return window.Target{}, false
	}
	return window.Target{Slot: slot, Index: idx, Path: f.Path}, true
}

func (s *Scheduler) advance(ctx context.Context, forward, fast bool) {
	if s.scroll.Active() {
		s.scroll.Abort()
	}
	m := s.win.Rotate(forward)
	if m.Boundary {
		s.boundary(Boundary{Index: m.To, Forward: forward})
		return
	}
	if m.From == m.To {
		return
	}
	if m.Wrapped {
		s.boundary(Boundary{Index: m.To, Forward: forward, Wrapped: true})
	}
	gen := s.tok.Current()

	if e, ok := s.win.Current(); ok {
		s.emit(e, true, forward, fast)
	} else if cur, ok := s.currentTarget(); ok {
		// Not prefetched yet: decode it here, ahead of the neighbours.
		s.load(ctx, gen, cur, fast, true)
		m.Targets = dropIndex(m.Targets, cur.Index)
	}
	s.fill(ctx, gen, m.Targets, fast)
}

func (s *Scheduler) jump(ctx context.Context, index int, signal bool) {
	if s.scroll.Active() {
		s.scroll.Abort()
	}
	n := s.win.Space().Len()
	if n == 0 {
		return
	}
	index = indexspace.Clamp(index, n)
	from := s.win.CurrentIndex()
	if index == from {
		if signal {
			s.boundary(Boundary{Index: index, Forward: index > 0})
		}
		return
	}
	gen := s.cancelDecodes()
	m := s.win.Recenter(index)
	if e, ok := s.win.Current(); ok {
		s.emit(e, false, index > from, false)
	} else if cur, ok := s.currentTarget(); ok {
		s.load(ctx, gen, cur, false, false)
		m.Targets = dropIndex(m.Targets, cur.Index)
	}
	s.fill(ctx, gen, m.Targets, false)
}

func (s *Scheduler) refresh(ctx context.Context) {
	s.mu.Lock()
	ord := s.order
	s.mu.Unlock()
	old := s.win.Space()
	if old.Root() == "" {
		return
	}
	prev, hadPrev := s.win.CurrentFile()

	space, _, err := s.provider.Load(ctx, old.Root(), ord)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.logger.Warn("refresh failed", "root", old.Root(), "err", err)
		return
	}
	center := 0
	if hadPrev {
		if i := space.Recover(prev); i >= 0 {
			center = i
		} else {
			center = indexspace.Clamp(s.win.CurrentIndex(), space.Len())
		}
	}
	s.explain.KV("refresh.files", space.Len())
	m := s.win.Rebase(space, center)
	gen := s.tok.Current()

	cur, curOK := s.win.CurrentFile()
	changed := !hadPrev || !curOK || cur.Path != prev.Path
	if changed {
		if e, ok := s.win.Current(); ok {
			s.emit(e, false, true, false)
		}
	}
	s.fill(ctx, gen, m.Targets, false)
}

// fill starts decodes for targets without waiting for them.
func (s *Scheduler) fill(ctx context.Context, gen uint64, targets []window.Target, fast bool) {
	for _, t := range targets {
		t := t
		task := func(pctx context.Context) { s.load(pctx, gen, t, fast, false) }
		if !s.decodes.TrySubmit(task) {
			task(ctx)
		}
	}
}

// fanOut decodes targets on the pool and waits for all of them, or for
// ctx. It reports whether everything finished.
func (s *Scheduler) fanOut(ctx context.Context, gen uint64, targets []window.Target, fast bool) bool {
	var wg sync.WaitGroup
	for _, t := range targets {
		t := t
		wg.Add(1)
		task := func(pctx context.Context) {
			defer wg.Done()
			s.load(pctx, gen, t, fast, false)
		}
		if !s.decodes.TrySubmit(task) {
			task(ctx)
		}
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return !s.tok.Stale(ctx, gen)
	case <-ctx.Done():
		return false
	}
}

// load decodes, scales and publishes one file. It is the only path by
// which decode results reach the window.
func (s *Scheduler) load(ctx context.Context, gen uint64, t window.Target, fast, transition bool) (window.Entry, bool) {
	if s.tok.Stale(ctx, gen) {
		return window.Entry{}, false
	}
	e, ok := s.decodeEntry(ctx, gen, t, fast)
	if !ok {
		return window.Entry{}, false
	}
	if !s.win.Publish(gen, t, e) {
		s.stats.discarded.Add(1)
		return window.Entry{}, false
	}
	if t.Index == s.win.CurrentIndex() {
		if cur, ok := s.win.Current(); ok {
			s.emit(cur, transition, true, fast)
		}
	}
	return e, true
}

func (s *Scheduler) decodeEntry(ctx context.Context, gen uint64, t window.Target, fast bool) (window.Entry, bool) {
	if s.tok.Stale(ctx, gen) {
		return window.Entry{}, false
	}
	start := time.Now()
	opts := s.decodeOpts
	opts.Fast = fast
	d, err := s.decoder.Decode(ctx, t.Path, opts)
	if s.tok.Stale(ctx, gen) {
		return window.Entry{}, false
	}
	unavailable := false
	if err != nil {
		s.logger.Warn("decode failed", "path", t.Path, "err", err)
		s.stats.unavailable.Add(1)
		d = decode.Unavailable(t.Path, err)
		unavailable = true
	}

	vp := s.win.Viewport()
	var scaled image.Image
	if !vp.Empty() {
		so := s.scaleOpts
		so.Fast = fast
		scaled = s.scaler.Scale(d.Display, vp.W, vp.H, so)
	}
	if s.tok.Stale(ctx, gen) {
		return window.Entry{}, false
	}
	quality := window.QualityFull
	if fast && !unavailable {
		quality = window.QualityFast
	}
	s.logger.Debug("decoded", "index", t.Index, "fast", fast, "ms", time.Since(start).Milliseconds())
	return window.Entry{
		Index:       t.Index,
		Path:        t.Path,
		Original:    d.Original,
		Display:     d.Display,
		Scaled:      scaled,
		Meta:        d.Meta,
		Quality:     quality,
		Unavailable: unavailable,
		Viewport:    vp,
	}, true
}

// rescale rewrites the scaled image of every resident entry for the
// current viewport.
func (s *Scheduler) rescale(ctx context.Context) {
	done := s.explain.Timer("rescale")
	defer done()

	vp := s.win.Viewport()
	entries := s.win.NeedsScale()
	if len(entries) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.decodes.Size())
	for _, e := range entries {
		e := e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			so := s.scaleOpts
			so.Fast = e.Quality == window.QualityFast
			scaled := s.scaler.Scale(e.Display, vp.W, vp.H, so)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if s.win.PublishScaled(e.Index, e.Display, scaled, vp) && e.Index == s.win.CurrentIndex() {
				if cur, ok := s.win.Current(); ok {
					s.emit(cur, false, true, so.Fast)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) emit(e window.Entry, transition, forward, fast bool) {
	s.stats.frames.Add(1)
	s.disp.frame(Frame{
		Index:       e.Index,
		Total:       s.win.Space().Len(),
		Path:        e.Path,
		Original:    e.Original,
		Display:     e.Display,
		Scaled:      e.Scaled,
		Meta:        e.Meta,
		Transition:  transition,
		Forward:     forward,
		Fast:        fast || e.Quality == window.QualityFast,
		Unavailable: e.Unavailable,
	})
}

func (s *Scheduler) boundary(b Boundary) {
	s.stats.boundaries.Add(1)
	s.disp.boundary(b)
}

func dropIndex(ts []window.Target, index int) []window.Target {
	out := ts[:0:0]
	for _, t := range ts {
		if t.Index != index {
			out = append(out, t)
		}
	}
	return out
}
