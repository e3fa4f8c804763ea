package scheduler

import (
	"context"

	"imgview/internal/core/indexspace"
	"imgview/internal/core/scroll"
	"imgview/internal/core/window"
)

// ScrollTick records one step of a continuous scroll. Decodes for the files
// ahead are produced into the scroll queue and shown as they become ready;
// once ticks stop for the settle delay the queue is folded back into the
// window.
func (s *Scheduler) ScrollTick(forward bool) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	if s.win.Space().Len() == 0 {
		return nil
	}
	r := s.scroll.Tick(forward, s.win.CurrentIndex())
	if r.Started || r.Restarted {
		// The session bumped the epoch; interrupt steady-state prefetch.
		s.decodes.CancelAll()
		s.explain.KV("scroll.policy", s.scroll.Status().Policy.String())
	}
	s.pump()
	return s.submit(s.scrollStep)
}

// SettleNow ends the running scroll without waiting for the settle delay.
func (s *Scheduler) SettleNow() {
	s.scroll.Settle()
}

func (s *Scheduler) SetScrollPolicy(p scroll.Policy) {
	s.scroll.SetPolicy(p)
}

func (s *Scheduler) indexForStep(st scroll.Status, step int) (int, bool) {
	n := s.win.Space().Len()
	if n == 0 {
		return 0, false
	}
	delta := step
	if !st.Forward {
		delta = -step
	}
	raw := st.Origin + delta
	if s.win.Cycle() {
		return indexspace.Wrap(raw, n), true
	}
	if raw < 0 || raw >= n {
		return 0, false
	}
	return raw, true
}

// pump keeps up to producers decodes running ahead of the display. One
// worker stays free for the direct fallback decode.
func (s *Scheduler) pump() {
	for int(s.inFlight.Load()) < s.producers {
		step, gen, ok := s.scroll.Reserve()
		if !ok {
			return
		}
		idx, ok := s.indexForStep(s.scroll.Status(), step)
		if !ok {
			s.scroll.Release(step, gen)
			return
		}
		f, _ := s.win.Space().At(idx)
		t := window.Target{Slot: -1, Index: idx, Path: f.Path}
		s.inFlight.Add(1)
		if !s.decodes.TrySubmit(func(ctx context.Context) { s.produce(ctx, gen, step, t) }) {
			s.inFlight.Add(-1)
			s.scroll.Release(step, gen)
			return
		}
	}
}

func (s *Scheduler) produce(ctx context.Context, gen uint64, step int, t window.Target) {
	// Drained tasks run inline on the canceller with a dead ctx.
	if s.tok.Stale(ctx, gen) {
		s.inFlight.Add(-1)
		s.scroll.Release(step, gen)
		return
	}
	e, ok := s.decodeEntry(ctx, gen, t, true)
	if !ok {
		s.inFlight.Add(-1)
		s.scroll.Release(step, gen)
		return
	}
	if err := s.scroll.Put(scroll.Item{Step: step, Index: t.Index, Entry: e}, gen); err != nil {
		s.logger.Debug("scroll item dropped", "step", step, "err", err)
	}
	s.inFlight.Add(-1)
	if !s.tok.Stale(ctx, gen) {
		s.pump()
	}
}

// scrollStep runs on the sequencer and displays queued steps until the
// display has caught up with the ticks.
func (s *Scheduler) scrollStep(ctx context.Context) {
	for ctx.Err() == nil {
		st := s.scroll.Status()
		if st.State != scroll.Scrolling || st.Consumed >= st.Want {
			return
		}

		it, missing, ok := s.scroll.Take(ctx)
		if ctx.Err() != nil {
			return
		}
		if !ok {
			if missing == 0 {
				return
			}
			idx, inRange := s.indexForStep(st, missing)
			if !inRange {
				if s.scroll.Limit(missing - 1) {
					s.boundary(Boundary{Index: s.win.CurrentIndex(), Forward: st.Forward})
				}
				return
			}
			f, _ := s.win.Space().At(idx)
			e, ok := s.decodeEntry(ctx, st.Gen, window.Target{Slot: -1, Index: idx, Path: f.Path}, true)
			if !ok {
				return
			}
			s.stats.direct.Add(1)
			it = scroll.Item{Step: missing, Index: idx, Entry: e}
		}

		if err := s.scroll.Throttle(ctx); err != nil {
			return
		}
		if !s.scroll.Consumed(it.Step, st.Gen) {
			continue
		}
		s.win.Recenter(it.Index)
		slot, _ := s.win.SlotFor(it.Index)
		if !s.win.Publish(st.Gen, window.Target{Slot: slot, Index: it.Index, Path: it.Entry.Path}, it.Entry) {
			// Already resident at better quality, or the session moved on.
			s.stats.discarded.Add(1)
		}
		if cur, ok := s.win.Current(); ok && cur.Index == it.Index {
			s.emit(cur, false, st.Forward, true)
		}
		s.pump()
	}
}

// reconcile folds the scroll queue of session sessionGen into the window
// around the last shown file, then resumes steady-state prefetch and reloads
// fast decodes at full quality. A session that has since been restarted or
// aborted is left alone.
func (s *Scheduler) reconcile(ctx context.Context, sessionGen uint64) {
	items, ok := s.scroll.FinishSettled(sessionGen)
	if !ok {
		s.logger.Debug("stale settle ignored", "gen", sessionGen)
		return
	}
	done := s.explain.Timer("scroll.settle")
	defer done()

	gen := s.cancelDecodes()
	kept := 0
	for _, it := range items {
		slot, ok := s.win.SlotFor(it.Index)
		if !ok {
			continue
		}
		if s.win.Publish(gen, window.Target{Slot: slot, Index: it.Index, Path: it.Entry.Path}, it.Entry) {
			kept++
		}
	}
	s.logger.Debug("scroll settled", "index", s.win.CurrentIndex(), "queued", len(items), "kept", kept)

	targets := append(s.win.NeedsQuality(), s.win.Missing()...)
	if s.fanOut(ctx, gen, targets, false) && len(s.win.NeedsScale()) > 0 {
		_ = s.rescaler.Submit(s.rescale)
	}
}
