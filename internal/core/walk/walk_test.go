package walk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, p string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func rels(es []Entry) []string {
	var out []string
	for _, e := range es {
		out = append(out, e.Rel)
	}
	return out
}

func TestListImages_FiltersByExtension(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.PNG"))
	touch(t, filepath.Join(root, "b.jpg"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, ".hidden.png"))
	touch(t, filepath.Join(root, "sub", "c.gif"))

	got, err := ListImages(root, Options{})
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if diff := cmp.Diff([]string{"a.PNG", "b.jpg"}, rels(got)); diff != "" {
		t.Fatalf("non-recursive (-want +got):\n%s", diff)
	}

	got, err = ListImages(root, Options{Recursive: true})
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if diff := cmp.Diff([]string{"a.PNG", "b.jpg", "sub/c.gif"}, rels(got)); diff != "" {
		t.Fatalf("recursive (-want +got):\n%s", diff)
	}
	if got[0].Size != 1 || got[0].Path != filepath.Join(root, "a.PNG") {
		t.Fatalf("entry=%+v", got[0])
	}
}

func TestListImages_IncludeExclude(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.png"))
	touch(t, filepath.Join(root, "b.gif"))
	touch(t, filepath.Join(root, "c.jpg"))

	got, err := ListImages(root, Options{
		IncludeGlobs: []string{"*.png,*.gif"},
		ExcludeGlobs: []string{"b.*"},
	})
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if diff := cmp.Diff([]string{"a.png"}, rels(got)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestListImages_IgnoreFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "keep.png"))
	touch(t, filepath.Join(root, "raw", "x.png"))
	touch(t, filepath.Join(root, "skip.png"))
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("raw/\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, IgnoreFile), []byte("# thumbnails\nskip.png\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ListImages(root, Options{Recursive: true})
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if diff := cmp.Diff([]string{"keep.png"}, rels(got)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	all, err := ListImages(root, Options{Recursive: true, ScanAll: true})
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("scan-all=%v", rels(all))
	}
}

func TestFilter_SharedWithWatcher(t *testing.T) {
	f, err := NewFilter(t.TempDir(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !f.ShouldInclude("x.webp", false) || f.ShouldInclude("x.txt", false) || f.ShouldInclude(".git", true) {
		t.Fatal("unexpected filter decision")
	}
}
