package ivd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"imgview/internal/config"
	"imgview/internal/core/order"
	"imgview/internal/core/scheduler"
	"imgview/internal/core/scroll"
	"imgview/internal/model"
	"imgview/internal/viewer"
)

var ErrSessionNotFound = errors.New("session not found")

type HandlerOptions struct {
	Config config.Config
	Logger *slog.Logger
	// WaitTimeout bounds requests that ask to wait for the viewer to settle.
	WaitTimeout time.Duration
	// Decoder replaces the file decoder in every session.
	Decoder scheduler.Decoder
}

type Handlers struct {
	cfg     config.Config
	logger  *slog.Logger
	wait    time.Duration
	decoder scheduler.Decoder

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewHandlers(opts HandlerOptions) *Handlers {
	cfg := opts.Config
	if cfg == (config.Config{}) {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	wait := opts.WaitTimeout
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &Handlers{
		cfg:      cfg,
		logger:   logger,
		wait:     wait,
		decoder:  opts.Decoder,
		sessions: map[string]*session{},
	}
}

func (h *Handlers) SessionOpen(ctx context.Context, p SessionOpenParams) (SessionOpenResult, error) {
	if h == nil {
		return SessionOpenResult{}, fmt.Errorf("handlers is nil")
	}
	path := strings.TrimSpace(p.Path)
	if path == "" {
		return SessionOpenResult{}, fmt.Errorf("path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return SessionOpenResult{}, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return SessionOpenResult{}, err
	}
	root := abs
	if !st.IsDir() {
		root = filepath.Dir(abs)
	}

	cfg := h.cfg
	if p.Sort != "" {
		cfg.Sort = p.Sort
	}
	if p.Cycle != nil {
		cfg.Cycle = *p.Cycle
	}
	if p.Recursive != nil {
		cfg.Recursive = *p.Recursive
	}
	if p.Radius > 0 {
		cfg.Radius = p.Radius
	}
	if p.Workers > 0 {
		cfg.Workers = p.Workers
	}
	if p.ScrollPolicy != "" {
		cfg.ScrollPolicy = p.ScrollPolicy
	}

	id := uuid.NewString()
	logger := h.logger.With("session", id)
	v, err := viewer.New(viewer.Options{Config: cfg, Logger: logger, Decoder: h.decoder})
	if err != nil {
		return SessionOpenResult{}, err
	}
	if p.Width > 0 && p.Height > 0 {
		if err := v.Resize(p.Width, p.Height); err != nil {
			_ = v.Close()
			return SessionOpenResult{}, err
		}
	}
	if err := v.Open(abs); err != nil {
		_ = v.Close()
		return SessionOpenResult{}, err
	}

	s := &session{id: id, root: root, v: v, logger: logger, created: time.Now()}
	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()
	logger.Info("session opened", "path", abs)

	if err := h.settle(ctx, s, p.Wait); err != nil {
		return SessionOpenResult{SessionID: id}, err
	}
	return SessionOpenResult{SessionID: id}, nil
}

func (h *Handlers) SessionClose(p SessionParams) (bool, error) {
	h.mu.Lock()
	s, ok := h.sessions[strings.TrimSpace(p.SessionID)]
	delete(h.sessions, strings.TrimSpace(p.SessionID))
	h.mu.Unlock()
	if !ok {
		return false, ErrSessionNotFound
	}
	s.close()
	h.logger.Info("session closed", "session", s.id)
	return true, nil
}

func (h *Handlers) SessionStatus(p SessionParams) (model.Status, error) {
	s, err := h.get(p.SessionID)
	if err != nil {
		return model.Status{}, err
	}
	return s.status(), nil
}

func (h *Handlers) Advance(ctx context.Context, p NavParams, forward bool) (model.Status, error) {
	return h.do(ctx, p.SessionID, p.Wait, func(v *viewer.Viewer) error { return v.Advance(forward, p.Fast) })
}

func (h *Handlers) First(ctx context.Context, p NavParams) (model.Status, error) {
	return h.do(ctx, p.SessionID, p.Wait, func(v *viewer.Viewer) error { return v.First() })
}

func (h *Handlers) Last(ctx context.Context, p NavParams) (model.Status, error) {
	return h.do(ctx, p.SessionID, p.Wait, func(v *viewer.Viewer) error { return v.Scheduler.Last() })
}

func (h *Handlers) Jump(ctx context.Context, p JumpParams) (model.Status, error) {
	if p.Index < 0 {
		return model.Status{}, fmt.Errorf("index must be >= 0")
	}
	return h.do(ctx, p.SessionID, p.Wait, func(v *viewer.Viewer) error { return v.Jump(p.Index) })
}

func (h *Handlers) Step(ctx context.Context, p StepParams) (model.Status, error) {
	return h.do(ctx, p.SessionID, p.Wait, func(v *viewer.Viewer) error {
		if p.Delta == 0 {
			return v.PageForward()
		}
		return v.Step(p.Delta)
	})
}

func (h *Handlers) ScrollTick(ctx context.Context, p ScrollTickParams) (model.Status, error) {
	ticks := p.Ticks
	if ticks <= 0 {
		ticks = 1
	}
	return h.do(ctx, p.SessionID, p.Wait, func(v *viewer.Viewer) error {
		for range ticks {
			if err := v.ScrollTick(p.Forward); err != nil {
				return err
			}
		}
		if p.Settle {
			v.SettleNow()
		}
		return nil
	})
}

func (h *Handlers) Resize(ctx context.Context, p ResizeParams) (model.Status, error) {
	return h.do(ctx, p.SessionID, p.Wait, func(v *viewer.Viewer) error { return v.Resize(p.Width, p.Height) })
}

func (h *Handlers) SortSet(ctx context.Context, p SortSetParams) (model.Status, error) {
	ord, err := order.Parse(p.Sort)
	if err != nil {
		return model.Status{}, err
	}
	return h.do(ctx, p.SessionID, p.Wait, func(v *viewer.Viewer) error { return v.SetSort(ord) })
}

func (h *Handlers) ScrollPolicy(p ScrollPolicyParams) (model.Status, error) {
	pol, err := scroll.ParsePolicy(p.Policy)
	if err != nil {
		return model.Status{}, err
	}
	return h.do(context.Background(), p.SessionID, false, func(v *viewer.Viewer) error {
		v.SetScrollPolicy(pol)
		return nil
	})
}

func (h *Handlers) SlideShow(p SlideShowParams) (model.Status, error) {
	if p.IntervalMS < 0 {
		return model.Status{}, fmt.Errorf("interval_ms must be >= 0")
	}
	return h.do(context.Background(), p.SessionID, false, func(v *viewer.Viewer) error {
		if p.IntervalMS == 0 && p.Toggle {
			_, err := v.ToggleSlideShow()
			return err
		}
		return v.SlideShow(time.Duration(p.IntervalMS) * time.Millisecond)
	})
}

func (h *Handlers) WatchStart(p WatchStartParams) (WatchStatusResult, error) {
	s, err := h.get(p.SessionID)
	if err != nil {
		return WatchStatusResult{}, err
	}
	if err := s.startWatch(time.Duration(p.DebounceMS) * time.Millisecond); err != nil {
		return WatchStatusResult{}, err
	}
	return WatchStatusResult{Running: true}, nil
}

func (h *Handlers) WatchStop(p SessionParams) (WatchStatusResult, error) {
	s, err := h.get(p.SessionID)
	if err != nil {
		return WatchStatusResult{}, err
	}
	s.stopWatch()
	return WatchStatusResult{Running: false}, nil
}

func (h *Handlers) WatchStatus(p SessionParams) (WatchStatusResult, error) {
	s, err := h.get(p.SessionID)
	if err != nil {
		return WatchStatusResult{}, err
	}
	return WatchStatusResult{Running: s.watching()}, nil
}

// Close ends every session.
func (h *Handlers) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	all := h.sessions
	h.sessions = map[string]*session{}
	h.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}

func (h *Handlers) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Handlers) do(ctx context.Context, id string, wait bool, fn func(v *viewer.Viewer) error) (model.Status, error) {
	s, err := h.get(id)
	if err != nil {
		return model.Status{}, err
	}
	if err := fn(s.v); err != nil {
		return model.Status{}, err
	}
	if err := h.settle(ctx, s, wait); err != nil {
		return model.Status{}, err
	}
	return s.status(), nil
}

func (h *Handlers) settle(ctx context.Context, s *session, wait bool) error {
	if !wait {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, h.wait)
	defer cancel()
	return s.v.WaitIdle(ctx)
}

func (h *Handlers) get(id string) (*session, error) {
	if h == nil {
		return nil, fmt.Errorf("handlers is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}
