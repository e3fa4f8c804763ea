package indexspace

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type File struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Compare orders two files; it must be a strict weak ordering.
type Compare func(a, b File) int

// Space is an immutable, sorted list of files. A zero or nil Space is empty.
type Space struct {
	root  string
	files []File
	cmp   Compare
}

func New(root string, files []File, cmp Compare) *Space {
	if cmp == nil {
		cmp = ByName
	}
	out := make([]File, len(files))
	copy(out, files)
	for i := range out {
		if out[i].Name == "" {
			out[i].Name = filepath.Base(out[i].Path)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return cmp(out[i], out[j]) < 0 })
	return &Space{root: filepath.Clean(root), files: out, cmp: cmp}
}

func Empty() *Space {
	return &Space{cmp: ByName}
}

func ByName(a, b File) int {
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

func (s *Space) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

func (s *Space) Len() int {
	if s == nil {
		return 0
	}
	return len(s.files)
}

func (s *Space) At(i int) (File, bool) {
	if s == nil || i < 0 || i >= len(s.files) {
		return File{}, false
	}
	return s.files[i], true
}

func (s *Space) Files() []File {
	if s == nil {
		return nil
	}
	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

// Wrap normalises i into [0, n) with correction for negative values.
func Wrap(i, n int) int {
	if n <= 0 {
		return 0
	}
	return (i%n + n) % n
}

func Clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Offset returns the index delta steps away from i. With cycle the result
// wraps; without it the result is clamped to the ends. moved is false when
// the result equals i (boundary, or empty space); wrapped reports that the
// move passed the end of the list in cycling mode.
func (s *Space) Offset(i, delta int, cycle bool) (next int, moved bool, wrapped bool) {
	n := s.Len()
	if n == 0 {
		return 0, false, false
	}
	raw := i + delta
	if cycle {
		next = Wrap(raw, n)
		wrapped = raw < 0 || raw >= n
	} else {
		next = Clamp(raw, n)
	}
	return next, next != i, wrapped
}

// IndexOfPath finds path by exact match, probing guess first.
func (s *Space) IndexOfPath(path string, guess int) int {
	if s == nil || path == "" {
		return -1
	}
	path = filepath.Clean(path)
	if f, ok := s.At(guess); ok && f.Path == path {
		return guess
	}
	for i := range s.files {
		if s.files[i].Path == path {
			return i
		}
	}
	return -1
}

// Recover locates f after the list was rebuilt: a binary search with the
// comparator narrows the candidates, then the equal range is scanned for the
// same path, then for the same name ignoring case. Returns -1 when absent.
func (s *Space) Recover(f File) int {
	n := s.Len()
	if n == 0 {
		return -1
	}
	lo := sort.Search(n, func(i int) bool { return s.cmp(s.files[i], f) >= 0 })
	for i := lo; i < n && s.cmp(s.files[i], f) == 0; i++ {
		if s.files[i].Path == f.Path {
			return i
		}
	}
	if i := s.IndexOfPath(f.Path, lo); i >= 0 {
		return i
	}
	for i := range s.files {
		if strings.EqualFold(s.files[i].Name, f.Name) {
			return i
		}
	}
	return -1
}
