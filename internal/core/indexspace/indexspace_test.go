package indexspace

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func names(s *Space) []string {
	var out []string
	for _, f := range s.Files() {
		out = append(out, f.Name)
	}
	return out
}

func TestNew_SortsCaseInsensitive(t *testing.T) {
	s := New("/pics", []File{
		{Path: "/pics/b.png"},
		{Path: "/pics/A.png"},
		{Path: "/pics/a.png"},
		{Path: "/pics/C.jpg"},
	}, nil)
	want := []string{"A.png", "a.png", "b.png", "C.jpg"}
	if diff := cmp.Diff(want, names(s)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_DoesNotAliasInput(t *testing.T) {
	in := []File{{Path: "/x/b"}, {Path: "/x/a"}}
	s := New("/x", in, nil)
	if in[0].Path != "/x/b" {
		t.Fatalf("input mutated: %v", in)
	}
	if f, _ := s.At(0); f.Path != "/x/a" {
		t.Fatalf("At(0)=%v", f)
	}
}

func TestOffset_CycleAndClamp(t *testing.T) {
	s := New("/", []File{{Path: "/a"}, {Path: "/b"}, {Path: "/c"}, {Path: "/d"}, {Path: "/e"}}, nil)

	if next, moved, wrapped := s.Offset(4, 1, true); next != 0 || !moved || !wrapped {
		t.Fatalf("cycle forward: next=%d moved=%v wrapped=%v", next, moved, wrapped)
	}
	if next, moved, wrapped := s.Offset(0, -1, true); next != 4 || !moved || !wrapped {
		t.Fatalf("cycle backward: next=%d moved=%v wrapped=%v", next, moved, wrapped)
	}
	if next, moved, _ := s.Offset(0, -1, false); next != 0 || moved {
		t.Fatalf("clamp at start: next=%d moved=%v", next, moved)
	}
	if next, moved, _ := s.Offset(2, 10, false); next != 4 || !moved {
		t.Fatalf("step clamp: next=%d moved=%v", next, moved)
	}
	if next, moved, _ := s.Offset(4, 10, false); next != 4 || moved {
		t.Fatalf("step at end: next=%d moved=%v", next, moved)
	}
}

func TestOffset_Empty(t *testing.T) {
	var s *Space
	if next, moved, _ := s.Offset(0, 1, true); next != 0 || moved {
		t.Fatalf("nil space moved: %d %v", next, moved)
	}
	if Empty().Len() != 0 {
		t.Fatal("expected empty")
	}
}

func TestWrap(t *testing.T) {
	cases := []struct{ i, n, want int }{
		{-1, 5, 4}, {5, 5, 0}, {-6, 5, 4}, {3, 5, 3}, {7, 0, 0},
	}
	for _, c := range cases {
		if got := Wrap(c.i, c.n); got != c.want {
			t.Fatalf("Wrap(%d,%d)=%d want %d", c.i, c.n, got, c.want)
		}
	}
}

func TestRecover_AfterRebuild(t *testing.T) {
	root := "/pics"
	mk := func(ns ...string) []File {
		var out []File
		for _, n := range ns {
			out = append(out, File{Path: filepath.Join(root, n)})
		}
		return out
	}
	before := New(root, mk("a.png", "c.png", "e.png"), nil)
	cur, _ := before.At(1)

	after := New(root, mk("a.png", "b.png", "c.png", "d.png", "e.png"), nil)
	if got := after.Recover(cur); got != 2 {
		t.Fatalf("Recover=%d want 2", got)
	}

	gone := New(root, mk("a.png", "e.png"), nil)
	if got := gone.Recover(cur); got != -1 {
		t.Fatalf("Recover of removed file=%d want -1", got)
	}
}

func TestIndexOfPath_UsesGuess(t *testing.T) {
	s := New("/", []File{{Path: "/a"}, {Path: "/b"}}, nil)
	if got := s.IndexOfPath("/b", 1); got != 1 {
		t.Fatalf("got %d", got)
	}
	if got := s.IndexOfPath("/b", 0); got != 1 {
		t.Fatalf("got %d", got)
	}
	if got := s.IndexOfPath("/z", 0); got != -1 {
		t.Fatalf("got %d", got)
	}
}
