package folder

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"imgview/internal/catalog"
	"imgview/internal/core/order"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewNRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func names(t *testing.T, p *Provider, path string, ord order.Order) ([]string, int) {
	t.Helper()
	space, start, err := p.Load(context.Background(), path, ord)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var out []string
	for _, f := range space.Files() {
		out = append(out, f.Name)
	}
	return out, start
}

func TestLoad_FolderByName(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "b.png"), 1, 1)
	writePNG(t, filepath.Join(root, "A.png"), 1, 1)
	writePNG(t, filepath.Join(root, "c.png"), 1, 1)
	_ = os.WriteFile(filepath.Join(root, "readme.txt"), []byte("x"), 0o644)

	got, start := names(t, New(Options{}), root, order.Name)
	if diff := cmp.Diff([]string{"A.png", "b.png", "c.png"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if start != 0 {
		t.Fatalf("start=%d", start)
	}
}

func TestLoad_FileStartsAtFile(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"a.png", "b.png", "c.png"} {
		writePNG(t, filepath.Join(root, n), 1, 1)
	}
	_, start := names(t, New(Options{}), filepath.Join(root, "c.png"), order.Name)
	if start != 2 {
		t.Fatalf("start=%d want 2", start)
	}
}

func TestLoad_PixelsUsesCatalog(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "big.png"), 20, 20)
	writePNG(t, filepath.Join(root, "small.png"), 2, 2)
	writePNG(t, filepath.Join(root, "mid.png"), 5, 5)
	if _, err := catalog.Build(context.Background(), root, catalog.BuildOptions{}); err != nil {
		t.Fatalf("build: %v", err)
	}

	p := New(Options{Catalog: true})
	got, _ := names(t, p, root, order.Pixels)
	if diff := cmp.Diff([]string{"small.png", "mid.png", "big.png"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if p.Prober().Len() != 3 {
		t.Fatalf("prober len=%d", p.Prober().Len())
	}
}

func TestLoad_Errors(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644)
	p := New(Options{})

	if _, _, err := p.Load(context.Background(), filepath.Join(root, "notes.txt"), order.Name); !errors.Is(err, ErrNotImage) {
		t.Fatalf("err=%v", err)
	}
	if _, _, err := p.Load(context.Background(), filepath.Join(root, "missing"), order.Name); err == nil {
		t.Fatal("expected stat error")
	}
	space, _, err := p.Load(context.Background(), root, order.Name)
	if err != nil || space.Len() != 0 {
		t.Fatalf("empty folder: len=%d err=%v", space.Len(), err)
	}
}
