package ivd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"imgview/internal/core/watch"
	"imgview/internal/model"
	"imgview/internal/viewer"
)

type session struct {
	id      string
	root    string
	v       *viewer.Viewer
	logger  *slog.Logger
	created time.Time

	mu      sync.Mutex
	watcher *watch.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

func (s *session) status() model.Status {
	st := s.v.Status()
	st.SessionID = s.id
	st.Watching = s.watching()
	return st
}

func (s *session) watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcher != nil
}

// startWatch refreshes the session's folder whenever images under it
// change. Starting twice is a no-op.
func (s *session) startWatch(debounce time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}

	w, err := watch.NewWatcher(s.root, s.v.Config().Walk(), watch.Options{
		Debounce: debounce,
		OnChange: func(rels []string) {
			s.logger.Debug("folder changed", "session", s.id, "files", len(rels))
			if err := s.v.Refresh(); err != nil {
				s.logger.Debug("refresh dropped", "session", s.id, "err", err)
			}
		},
		Logger: s.logger,
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.root, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil {
			s.logger.Warn("watcher stopped", "session", s.id, "err", err)
		}
	}()
	s.watcher, s.cancel, s.done = w, cancel, done
	return nil
}

func (s *session) stopWatch() {
	s.mu.Lock()
	w, cancel, done := s.watcher, s.cancel, s.done
	s.watcher, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()

	if w == nil {
		return
	}
	cancel()
	_ = w.Close()
	<-done
}

func (s *session) close() {
	s.stopWatch()
	_ = s.v.Close()
}
