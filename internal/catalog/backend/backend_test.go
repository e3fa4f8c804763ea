package backend

import (
	"path/filepath"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{"": "sqlite", "SQLite3": "sqlite", "bbolt": "bolt", " bolt ": "bolt", "x": "x"}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNormalizePath_Bolt(t *testing.T) {
	if got := NormalizePath("bolt", "x/cat.db"); got != filepath.Clean("x/cat.bolt") {
		t.Fatalf("got %q", got)
	}
	if got := NormalizePath("bolt", "x/cat"); got != filepath.Clean("x/cat.bolt") {
		t.Fatalf("got %q", got)
	}
	if got := NormalizePath("sqlite", "x/./cat.db"); got != filepath.Clean("x/cat.db") {
		t.Fatalf("got %q", got)
	}
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"sqlite", "bolt"} {
		s, err := Open(name, DefaultPath(dir, name))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if s.Backend() != name {
			t.Fatalf("backend=%q", s.Backend())
		}
		_ = s.Close()
	}
	if _, err := Open("nope", filepath.Join(dir, "x")); err == nil {
		t.Fatal("expected error")
	}
}
