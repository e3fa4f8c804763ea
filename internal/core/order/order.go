package order

import (
	"fmt"
	"strings"

	"imgview/internal/core/indexspace"
)

type Order string

const (
	Name     Order = "name"
	Modified Order = "modified"
	Size     Order = "size"
	Pixels   Order = "pixels"
)

var All = []Order{Name, Modified, Size, Pixels}

// DimensionFunc reports the pixel dimensions of path without decoding it.
type DimensionFunc func(path string) (w, h int, ok bool)

func Parse(s string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "", Name:
		return Name, nil
	case Modified, "mtime", "date":
		return Modified, nil
	case Size:
		return Size, nil
	case Pixels, "dimensions":
		return Pixels, nil
	default:
		return "", fmt.Errorf("unknown sort order: %q", s)
	}
}

func (o Order) String() string { return string(o) }

// Comparator returns a comparator for o. Every order falls back to the
// name ordering on ties, so the result is total. dims is only consulted
// for Pixels; files whose dimensions are unknown sort first.
func Comparator(o Order, dims DimensionFunc) indexspace.Compare {
	switch o {
	case Modified:
		return func(a, b indexspace.File) int {
			if c := a.ModTime.Compare(b.ModTime); c != 0 {
				return c
			}
			return indexspace.ByName(a, b)
		}
	case Size:
		return func(a, b indexspace.File) int {
			if c := cmpInt64(a.Size, b.Size); c != 0 {
				return c
			}
			return indexspace.ByName(a, b)
		}
	case Pixels:
		if dims == nil {
			return indexspace.ByName
		}
		return func(a, b indexspace.File) int {
			if c := cmpInt64(pixels(dims, a.Path), pixels(dims, b.Path)); c != 0 {
				return c
			}
			return indexspace.ByName(a, b)
		}
	default:
		return indexspace.ByName
	}
}

func pixels(dims DimensionFunc, path string) int64 {
	w, h, ok := dims(path)
	if !ok {
		return -1
	}
	return int64(w) * int64(h)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
