package walk

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreFile holds viewer-specific patterns in gitignore syntax, read from
// the root folder only.
const IgnoreFile = ".ivignore"

type ignoreMatcher struct {
	matcher gitignore.Matcher
}

func loadIgnoreMatcher(root string, scanAll bool) (*ignoreMatcher, error) {
	if scanAll {
		return &ignoreMatcher{matcher: nil}, nil
	}

	fs := osfs.New(root)
	patterns, err := gitignore.ReadPatterns(fs, nil)
	if err != nil {
		return nil, err
	}
	extra, err := readIgnoreFile(filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, extra...)
	return &ignoreMatcher{matcher: gitignore.NewMatcher(patterns)}, nil
}

func readIgnoreFile(p string) ([]gitignore.Pattern, error) {
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var ps []gitignore.Pattern
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(line, nil))
	}
	return ps, sc.Err()
}

func (m *ignoreMatcher) isIgnored(relPath string, isDir bool) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	relPath = strings.Trim(relPath, "/")
	if relPath == "" {
		return false
	}

	segments := strings.Split(relPath, "/")
	return m.matcher.Match(segments, isDir)
}
