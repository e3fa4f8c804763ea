package walk

import (
	"path"
	"path/filepath"
)

// Filter decides whether a path below root belongs in an image listing.
// The watcher shares it with ListImages so both agree.
type Filter struct {
	opts Options
	ig   *ignoreMatcher
}

func NewFilter(root string, opts Options) (*Filter, error) {
	ig, err := loadIgnoreMatcher(root, opts.ScanAll)
	if err != nil {
		return nil, err
	}
	return &Filter{
		opts: opts,
		ig:   ig,
	}, nil
}

func (f *Filter) Recursive() bool {
	return f != nil && f.opts.Recursive
}

func (f *Filter) ShouldInclude(rel string, isDir bool) bool {
	if f == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	name := path.Base(rel)

	if isDir {
		if !f.opts.ScanAll && (isHidden(name) || isDefaultSkippedDir(name)) {
			return false
		}
		return f.opts.ScanAll || !f.ig.isIgnored(rel, true)
	}

	if !IsImage(name, f.opts.Extensions) {
		return false
	}
	if !f.opts.ScanAll && isHidden(name) {
		return false
	}
	if !f.opts.ScanAll && f.ig.isIgnored(rel, false) {
		return false
	}
	if len(f.opts.IncludeGlobs) > 0 && !anyGlobMatch(f.opts.IncludeGlobs, rel) {
		return false
	}
	return !anyGlobMatch(f.opts.ExcludeGlobs, rel)
}
