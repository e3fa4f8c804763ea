package walk

import (
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type Options struct {
	// Recursive descends into subfolders; the default lists one folder.
	Recursive    bool
	IncludeGlobs []string
	ExcludeGlobs []string
	// Extensions overrides DefaultExtensions (lower-case, with dot).
	Extensions []string
	// ScanAll disables hidden-file and ignore-file filtering.
	ScanAll bool
}

type Entry struct {
	Rel     string
	Path    string
	Size    int64
	ModTime time.Time
}

var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// ListImages enumerates the image files under root, sorted by relative path.
// Files that vanish mid-walk are skipped.
func ListImages(root string, opts Options) ([]Entry, error) {
	root = filepath.Clean(root)
	f, err := NewFilter(root, opts)
	if err != nil {
		return nil, err
	}

	var out []Entry
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p != root && isNotExist(err) {
				return nil
			}
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if !opts.Recursive || !f.ShouldInclude(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !f.ShouldInclude(rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if isNotExist(err) {
				return nil
			}
			return err
		}
		out = append(out, Entry{
			Rel:     filepath.ToSlash(rel),
			Path:    p,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Rel < out[j].Rel })
	return out, nil
}

func IsImage(name string, exts []string) bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isDefaultSkippedDir(name string) bool {
	switch name {
	case ".git", "node_modules", "@eaDir", "$RECYCLE.BIN", ".thumbnails":
		return true
	default:
		return false
	}
}

func anyGlobMatch(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matchesGlob(pat, rel) {
			return true
		}
	}
	return false
}

func matchesGlob(pattern string, rel string) bool {
	pat := strings.TrimSpace(pattern)
	if pat == "" {
		return false
	}
	pat = strings.ReplaceAll(pat, "\\", "/")
	rel = filepath.ToSlash(rel)

	// -x "*.gif,*.bmp" style lists.
	if strings.Contains(pat, ",") {
		for _, piece := range strings.Split(pat, ",") {
			if matchesGlob(strings.TrimSpace(piece), rel) {
				return true
			}
		}
		return false
	}

	if !strings.Contains(pat, "/") {
		ok, _ := path.Match(strings.ToLower(pat), strings.ToLower(path.Base(rel)))
		return ok
	}

	ok, _ := path.Match(pat, rel)
	return ok
}
