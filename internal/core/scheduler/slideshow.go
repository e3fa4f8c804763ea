package scheduler

import (
	"context"
	"time"
)

// SlideShow advances one file every interval until stopped. A non-positive
// interval stops a running show. Ticks that land during a scroll are
// skipped rather than interrupting it.
func (s *Scheduler) SlideShow(interval time.Duration) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	s.showMu.Lock()
	defer s.showMu.Unlock()
	s.stopShowLocked()
	if interval <= 0 {
		return nil
	}
	stop := make(chan struct{})
	s.showStop = stop
	s.showEvery = interval
	go s.slideShow(interval, stop)
	s.logger.Debug("slideshow started", "interval", interval)
	return nil
}

// ToggleSlideShow stops a running show or starts one at the configured
// interval. It reports whether a show is now running.
func (s *Scheduler) ToggleSlideShow() (bool, error) {
	if s.SlideShowInterval() > 0 {
		return false, s.SlideShow(0)
	}
	if err := s.SlideShow(s.showDefault); err != nil {
		return false, err
	}
	return true, nil
}

// SlideShowInterval is the interval of the running show, 0 when stopped.
func (s *Scheduler) SlideShowInterval() time.Duration {
	s.showMu.Lock()
	defer s.showMu.Unlock()
	return s.showEvery
}

func (s *Scheduler) stopSlideShow() {
	s.showMu.Lock()
	s.stopShowLocked()
	s.showMu.Unlock()
}

func (s *Scheduler) stopShowLocked() {
	if s.showStop != nil {
		close(s.showStop)
		s.showStop = nil
		s.showEvery = 0
	}
}

func (s *Scheduler) slideShow(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-s.closed:
			return
		case <-t.C:
		}
		if s.scroll.Active() {
			continue
		}
		err := s.submit(func(ctx context.Context) {
			select {
			case <-stop:
				return
			default:
			}
			if s.scroll.Active() {
				return
			}
			s.advance(ctx, true, false)
		})
		if err != nil {
			return
		}
	}
}
