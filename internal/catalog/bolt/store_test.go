package bolt

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"imgview/internal/catalog/store"
)

func TestStore_RecordsRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "catalog.bolt"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.EnsureFolder("f1", "/pics"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	recs := []store.Record{
		{Path: "a.png", Size: 10, MTime: 1, Width: 4, Height: 3, Format: "png", Hash: "aa"},
		{Path: "sub/b.jpg", Size: 5, MTime: 2},
	}
	if err := s.UpsertRecords("f1", recs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.ListRecords("f1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := map[string]store.Record{"a.png": recs[0], "sub/b.jpg": recs[1]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	if err := s.DeleteRecords("f1", []string{"a.png"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetRecord("f1", "a.png"); ok {
		t.Fatal("record should be gone")
	}
	if n, _ := s.CountRecords("f1"); n != 1 {
		t.Fatalf("count=%d", n)
	}
}

func TestStore_Version(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "catalog.bolt"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := s.GetVersion("nope"); !errors.Is(err, store.ErrFolderNotFound) {
		t.Fatalf("err=%v", err)
	}
	_ = s.EnsureFolder("f1", "/pics")
	if err := s.BumpVersion("f1"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetVersion("f1"); v != 2 {
		t.Fatalf("version=%d", v)
	}
}

var _ store.Store = (*Store)(nil)
