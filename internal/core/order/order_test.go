package order

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"imgview/internal/core/indexspace"
)

func TestParse(t *testing.T) {
	for in, want := range map[string]Order{"": Name, "NAME": Name, " mtime ": Modified, "size": Size, "pixels": Pixels} {
		got, err := Parse(in)
		if err != nil || got != want {
			t.Fatalf("Parse(%q)=%q,%v want %q", in, got, err, want)
		}
	}
	if _, err := Parse("taken"); err == nil {
		t.Fatal("expected error for unsupported order")
	}
}

func TestComparator_OrdersWithNameTieBreak(t *testing.T) {
	t0 := time.Unix(1000, 0)
	files := []indexspace.File{
		{Path: "/d/c.png", Size: 10, ModTime: t0},
		{Path: "/d/a.png", Size: 30, ModTime: t0.Add(time.Hour)},
		{Path: "/d/b.png", Size: 10, ModTime: t0.Add(-time.Hour)},
	}
	dims := map[string][2]int{
		"/d/a.png": {10, 10},
		"/d/b.png": {100, 100},
	}
	dimFn := func(p string) (int, int, bool) {
		d, ok := dims[p]
		return d[0], d[1], ok
	}

	cases := map[Order][]string{
		Name:     {"a.png", "b.png", "c.png"},
		Modified: {"b.png", "c.png", "a.png"},
		Size:     {"b.png", "c.png", "a.png"},
		Pixels:   {"c.png", "a.png", "b.png"},
	}
	for o, want := range cases {
		s := indexspace.New("/d", files, Comparator(o, dimFn))
		var got []string
		for _, f := range s.Files() {
			got = append(got, f.Name)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("%s (-want +got):\n%s", o, diff)
		}
	}
}
