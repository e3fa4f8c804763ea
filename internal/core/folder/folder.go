// Package folder turns a path on disk into a sorted index space for the
// scheduler.
package folder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"imgview/internal/catalog"
	"imgview/internal/core/decode"
	"imgview/internal/core/indexspace"
	"imgview/internal/core/order"
	"imgview/internal/core/walk"
)

var ErrNotImage = errors.New("not an image file")

type Options struct {
	Walk   walk.Options
	Prober *decode.Prober
	// Catalog seeds the prober from a persisted catalog before a pixel sort.
	Catalog        bool
	CatalogBackend string
	CatalogPath    string
	Workers        int
	Logger         *slog.Logger
}

type Provider struct {
	walk    walk.Options
	prober  *decode.Prober
	catalog bool
	backend string
	dbPath  string
	workers int
	logger  *slog.Logger
}

func New(opts Options) *Provider {
	p := &Provider{
		walk:    opts.Walk,
		prober:  opts.Prober,
		catalog: opts.Catalog,
		backend: opts.CatalogBackend,
		dbPath:  opts.CatalogPath,
		workers: opts.Workers,
		logger:  opts.Logger,
	}
	if p.prober == nil {
		p.prober = decode.NewProber(0)
	}
	if p.workers <= 0 {
		p.workers = runtime.NumCPU()
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

func (p *Provider) Prober() *decode.Prober {
	if p == nil {
		return nil
	}
	return p.prober
}

// Load lists the images of path. When path names a file the space covers
// its folder and start is the file's position; a folder starts at 0.
func (p *Provider) Load(ctx context.Context, path string, ord order.Order) (*indexspace.Space, int, error) {
	if p == nil {
		return nil, 0, fmt.Errorf("provider is nil")
	}
	if strings.TrimSpace(path) == "" {
		return nil, 0, fmt.Errorf("path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, 0, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, 0, err
	}

	root, target := abs, ""
	if !st.IsDir() {
		if !walk.IsImage(abs, p.walk.Extensions) {
			return nil, 0, fmt.Errorf("%s: %w", abs, ErrNotImage)
		}
		root, target = filepath.Dir(abs), abs
	}

	entries, err := walk.ListImages(root, p.walk)
	if err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	files := make([]indexspace.File, 0, len(entries))
	for _, e := range entries {
		files = append(files, indexspace.File{Path: e.Path, Size: e.Size, ModTime: e.ModTime})
	}
	// An explicitly opened file stays reachable even if a filter hides it.
	if target != "" && !contains(files, target) {
		files = append(files, indexspace.File{Path: target, Size: st.Size(), ModTime: st.ModTime()})
	}

	if ord == order.Pixels {
		if err := p.probeAll(ctx, root, files); err != nil {
			return nil, 0, err
		}
	}

	space := indexspace.New(root, files, order.Comparator(ord, p.prober.Dimensions))
	start := 0
	if target != "" {
		if i := space.IndexOfPath(target, 0); i >= 0 {
			start = i
		}
	}
	p.logger.Debug("folder loaded", "root", root, "files", space.Len(), "order", ord, "start", start)
	return space, start, nil
}

// probeAll warms the prober so the pixel comparator never reads a header
// from inside the sort.
func (p *Provider) probeAll(ctx context.Context, root string, files []indexspace.File) error {
	if p.catalog {
		n, err := catalog.Seed(ctx, root, p.backend, p.dbPath, p.prober)
		if err != nil {
			p.logger.Warn("catalog seed failed", "root", root, "err", err)
		} else {
			p.logger.Debug("catalog seeded", "root", root, "records", n)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := p.prober.Probe(f.Path); err != nil {
				p.logger.Debug("probe failed", "path", f.Path, "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func contains(files []indexspace.File, path string) bool {
	for _, f := range files {
		if f.Path == path {
			return true
		}
	}
	return false
}
