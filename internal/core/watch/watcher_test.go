package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"imgview/internal/core/walk"
)

func TestNewWatcher_Validates(t *testing.T) {
	if _, err := NewWatcher("", walk.Options{}, Options{OnChange: func([]string) {}}); err == nil {
		t.Fatal("expected error for empty root")
	}
	if _, err := NewWatcher(t.TempDir(), walk.Options{}, Options{}); err == nil {
		t.Fatal("expected error for missing OnChange")
	}
}

func TestWatcher_ReportsImageChanges(t *testing.T) {
	root := t.TempDir()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 1)
	w, err := NewWatcher(root, walk.Options{}, Options{
		Debounce: 50 * time.Millisecond,
		OnChange: func(rels []string) {
			mu.Lock()
			got = append(got, rels...)
			mu.Unlock()
			select {
			case done <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	if w.Debounce() != 50*time.Millisecond {
		t.Fatalf("debounce=%v", w.Debounce())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	_ = os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "a.png"), []byte("x"), 0o644)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	mu.Lock()
	defer mu.Unlock()
	for _, rel := range got {
		if rel != "a.png" {
			t.Fatalf("unexpected change %q", rel)
		}
	}
	if len(got) == 0 {
		t.Fatal("no changes reported")
	}
}
