// Package catalog persists per-folder image metadata (dimensions, format,
// content hash) so pixel-count sorting and fingerprints survive restarts.
package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"imgview/internal/catalog/backend"
	"imgview/internal/catalog/store"
	"imgview/internal/core/decode"
	"imgview/internal/core/explain"
	"imgview/internal/core/walk"
)

var folderNamespace = uuid.MustParse("6f1d7c52-3b9a-4f0e-9d2c-7a5e1b8c4d30")

// FolderID is the stable catalog key for a folder root.
func FolderID(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return uuid.NewSHA1(folderNamespace, []byte(filepath.ToSlash(filepath.Clean(abs)))).String()
}

type BuildOptions struct {
	Backend string
	DBPath  string
	Walk    walk.Options
	Workers int
	// BatchSize bounds how many records go into one write transaction.
	BatchSize int
	// Hash computes an xxhash fingerprint of every changed file.
	Hash    bool
	Prober  *decode.Prober
	Explain explain.Explain
	Logger  *slog.Logger
}

type BuildStats struct {
	Scanned   int
	Updated   int
	Unchanged int
	Removed   int
	Failed    int
	Version   int64
}

// Build brings the catalog for root up to date: changed files are probed in
// parallel and written in batches, vanished files are removed.
func Build(ctx context.Context, root string, opts BuildOptions) (BuildStats, error) {
	var stats BuildStats
	if strings.TrimSpace(root) == "" {
		return stats, fmt.Errorf("root is required")
	}
	root = filepath.Clean(root)
	ex := explain.Or(opts.Explain)
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}

	s, err := openStore(root, opts.Backend, opts.DBPath)
	if err != nil {
		return stats, err
	}
	defer s.Close()

	if ap, ok := s.(store.BuildPragmaApplier); ok {
		if err := ap.ApplyBuildPragmas(); err != nil {
			logger.Warn("catalog: build pragmas", "err", err)
		}
	}

	id := FolderID(root)
	if err := s.EnsureFolder(id, root); err != nil {
		return stats, err
	}

	stop := ex.Timer("catalog_walk")
	entries, err := walk.ListImages(root, opts.Walk)
	stop()
	if err != nil {
		return stats, err
	}
	stats.Scanned = len(entries)

	known, err := s.ListRecords(id)
	if err != nil {
		return stats, err
	}

	var changed []walk.Entry
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Rel] = struct{}{}
		if r, ok := known[e.Rel]; ok && r.Unchanged(e.Size, e.ModTime.UnixNano()) {
			stats.Unchanged++
			opts.Prober.Seed(e.Path, e.Size, e.ModTime, decode.Info{Width: r.Width, Height: r.Height, Format: r.Format})
			continue
		}
		changed = append(changed, e)
	}

	stop = ex.Timer("catalog_probe")
	recs := make([]store.Record, len(changed))
	ok := make([]bool, len(changed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range changed {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := record(opts.Prober, e, opts.Hash)
			if err != nil {
				logger.Debug("catalog: probe failed", "path", e.Rel, "err", err)
				return nil
			}
			recs[i] = r
			ok[i] = true
			return nil
		})
	}
	err = g.Wait()
	stop()
	if err != nil {
		return stats, err
	}

	batch := make([]store.Record, 0, batchSize)
	for i, r := range recs {
		if !ok[i] {
			stats.Failed++
			continue
		}
		batch = append(batch, r)
		if len(batch) == batchSize {
			if err := s.UpsertRecords(id, batch); err != nil {
				return stats, err
			}
			stats.Updated += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := s.UpsertRecords(id, batch); err != nil {
			return stats, err
		}
		stats.Updated += len(batch)
	}

	var gone []string
	for rel := range known {
		if _, ok := seen[rel]; !ok {
			gone = append(gone, rel)
		}
	}
	if err := s.DeleteRecords(id, gone); err != nil {
		return stats, err
	}
	stats.Removed = len(gone)

	if stats.Updated > 0 || stats.Removed > 0 {
		if err := s.BumpVersion(id); err != nil {
			return stats, err
		}
	}
	if stats.Version, err = s.GetVersion(id); err != nil {
		return stats, err
	}

	ex.KV("catalog_scanned", stats.Scanned)
	ex.KV("catalog_updated", stats.Updated)
	ex.KV("catalog_removed", stats.Removed)
	logger.Info("catalog built", "root", root, "backend", s.Backend(),
		"scanned", stats.Scanned, "updated", stats.Updated, "removed", stats.Removed, "failed", stats.Failed)
	return stats, nil
}

// Seed loads whatever the catalog knows about root into p. Records whose
// file changed since they were written are ignored. A missing catalog is
// not an error.
func Seed(ctx context.Context, root string, backendName string, dbPath string, p *decode.Prober) (int, error) {
	if p == nil {
		return 0, nil
	}
	root = filepath.Clean(root)
	path := backend.NormalizePath(backendName, dbPath)
	if path == "" {
		path = backend.DefaultPath(root, backendName)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	s, err := backend.Open(backendName, path)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	recs, err := s.ListRecords(FolderID(root))
	if err != nil {
		return 0, err
	}
	n := 0
	for rel, r := range recs {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		full := filepath.Join(root, filepath.FromSlash(rel))
		st, err := os.Stat(full)
		if err != nil || !r.Unchanged(st.Size(), st.ModTime().UnixNano()) {
			continue
		}
		p.Seed(full, st.Size(), st.ModTime(), decode.Info{Width: r.Width, Height: r.Height, Format: r.Format})
		n++
	}
	return n, nil
}

func openStore(root, name, dbPath string) (store.Store, error) {
	path := backend.NormalizePath(name, dbPath)
	if path == "" {
		path = backend.DefaultPath(root, name)
	}
	return backend.Open(name, path)
}

func record(p *decode.Prober, e walk.Entry, withHash bool) (store.Record, error) {
	info, err := p.Probe(e.Path)
	if err != nil {
		return store.Record{}, err
	}
	r := store.Record{
		Path:   e.Rel,
		Size:   e.Size,
		MTime:  e.ModTime.UnixNano(),
		Width:  info.Width,
		Height: info.Height,
		Format: info.Format,
	}
	if withHash {
		h, err := hashFile(e.Path)
		if err != nil {
			return store.Record{}, err
		}
		r.Hash = h
	}
	return r, nil
}

var hashBufs = sync.Pool{New: func() any { b := make([]byte, 64<<10); return &b }}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := hashBufs.Get().(*[]byte)
	defer hashBufs.Put(buf)

	d := xxhash.New()
	if _, err := io.CopyBuffer(d, f, *buf); err != nil {
		return "", err
	}
	return strconv.FormatUint(d.Sum64(), 16), nil
}

// Open returns the catalog store for root, creating it if needed.
func Open(root, backendName, dbPath string) (store.Store, error) {
	return openStore(filepath.Clean(root), backendName, dbPath)
}
