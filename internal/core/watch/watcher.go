package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"imgview/internal/core/walk"
)

// Watcher reports image additions, removals and rewrites under a folder,
// debounced so a copy of many files yields one callback.
type Watcher struct {
	rootAbs   string
	filter    *walk.Filter
	debouncer *Debouncer
	debounce  time.Duration
	logger    *slog.Logger

	watcher   *fsnotify.Watcher
	closeOnce sync.Once
	closed    chan struct{}
}

type Options struct {
	Debounce         time.Duration
	AdaptiveDebounce bool
	DebounceMin      time.Duration
	DebounceMax      time.Duration
	// OnChange receives the sorted relative paths of changed images.
	OnChange func(rels []string)
	Logger   *slog.Logger
}

func NewWatcher(root string, wopts walk.Options, opts Options) (*Watcher, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root is required")
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	rootAbs = filepath.Clean(rootAbs)
	if opts.OnChange == nil {
		return nil, fmt.Errorf("OnChange is required")
	}

	filter, err := walk.NewFilter(rootAbs, wopts)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	minDelay := opts.DebounceMin
	if minDelay <= 0 {
		minDelay = 50 * time.Millisecond
	}
	maxDelay := opts.DebounceMax
	if maxDelay <= 0 {
		maxDelay = 500 * time.Millisecond
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w := &Watcher{
		rootAbs:   rootAbs,
		filter:    filter,
		debouncer: NewDebouncer(debounce),
		debounce:  debounce,
		logger:    logger,
		watcher:   fsw,
		closed:    make(chan struct{}),
	}
	if opts.AdaptiveDebounce {
		w.debouncer.SetDelayFunc(func(count int) time.Duration {
			switch {
			case count <= 10:
				return minDelay
			case count <= 100:
				return minDelay * 2
			case count <= 500:
				return minDelay * 4
			default:
				return maxDelay
			}
		})
	}
	w.debouncer.OnFire(opts.OnChange)

	if err := w.addDirs(w.rootAbs); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

func (w *Watcher) Root() string {
	if w == nil {
		return ""
	}
	return w.rootAbs
}

func (w *Watcher) Debounce() time.Duration {
	if w == nil {
		return 0
	}
	return w.debounce
}

func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}

	w.closeOnce.Do(func() { close(w.closed) })
	w.debouncer.Stop()

	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}

func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.watcher == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.closed:
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, ok := w.toRel(ev.Name)
	if !ok {
		return
	}

	if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			if w.filter.Recursive() {
				if err := w.addDirs(ev.Name); err != nil {
					w.logger.Debug("watch add dir", "dir", ev.Name, "err", err)
				}
			}
			return
		}
	}

	if !w.filter.Recursive() && strings.Contains(rel, "/") {
		return
	}
	if !w.filter.ShouldInclude(rel, false) {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.debouncer.Push(rel)
	}
}

func (w *Watcher) toRel(abs string) (string, bool) {
	if strings.TrimSpace(abs) == "" {
		return "", false
	}

	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(w.rootAbs, abs)
	if err != nil {
		return "", false
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// addDirs watches dir and, when recursive, every included folder below it.
func (w *Watcher) addDirs(dir string) error {
	dir = filepath.Clean(dir)
	if !w.filter.Recursive() {
		return w.watcher.Add(dir)
	}

	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.rootAbs {
			rel, ok := w.toRel(p)
			if !ok {
				return nil
			}
			if !w.filter.ShouldInclude(rel, true) {
				return filepath.SkipDir
			}
		}
		return w.watcher.Add(p)
	})
}
