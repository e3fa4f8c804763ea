package ivcli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"imgview/internal/config"
	"imgview/internal/core/walk"
)

type Options struct {
	ConfigPath   string
	Debug        bool
	Explain      string
	Jsonl        bool
	ScanAll      bool
	IncludeGlobs []string
	ExcludeGlobs []string
	Recursive    bool
	Sort         string
	Cycle        bool
	Radius       int
	Workers      int
	Step         int
	ScrollPolicy string
	Store        string
	DBPath       string

	// Resolved by Prepare.
	Config config.Config
	Logger *slog.Logger

	env    []string
	stderr io.Writer
}

// Prepare resolves the layered config. Only flags the user set override
// the config files.
func (o *Options) Prepare(changed func(name string) bool) error {
	o.Explain = strings.ToLower(strings.TrimSpace(o.Explain))
	switch o.Explain {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid --explain %q (expected: text|json)", o.Explain)
	}

	var l config.Layer
	if changed("sort") {
		l.Sort = &o.Sort
	}
	if changed("cycle") {
		l.Cycle = &o.Cycle
	}
	if changed("recursive") {
		l.Recursive = &o.Recursive
	}
	if changed("radius") {
		l.Radius = &o.Radius
	}
	if changed("workers") {
		l.Workers = &o.Workers
	}
	if changed("step") {
		l.Step = &o.Step
	}
	if changed("scroll-policy") {
		l.ScrollPolicy = &o.ScrollPolicy
	}
	if changed("store") {
		l.CatalogStore = &o.Store
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	env := o.env
	if env == nil {
		env = os.Environ()
	}
	cfg, _, err := config.Load(wd, o.ConfigPath, l, env)
	if err != nil {
		return err
	}
	o.Config = cfg

	level := slog.LevelWarn
	if o.Debug {
		level = slog.LevelDebug
	}
	w := o.stderr
	if w == nil {
		w = os.Stderr
	}
	o.Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return nil
}

func (o *Options) walk() walk.Options {
	w := o.Config.Walk()
	w.ScanAll = o.ScanAll
	w.IncludeGlobs = o.IncludeGlobs
	w.ExcludeGlobs = o.ExcludeGlobs
	return w
}

type optionsKey struct{}

func optionsFrom(cmd *cobra.Command) *Options {
	if cmd == nil {
		return nil
	}
	root := cmd.Root()
	if root == nil {
		root = cmd
	}
	v := root.Context().Value(optionsKey{})
	opts, _ := v.(*Options)
	return opts
}

func bindFlags(cmd *cobra.Command, opts *Options) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", "", "config file (default: .iv.json in the working directory)")
	pf.BoolVar(&opts.Debug, "debug", false, "debug logging to stderr")
	pf.StringVar(&opts.Explain, "explain", "", "print explain info to stderr (text|json)")
	pf.Lookup("explain").NoOptDefVal = "text"
	pf.BoolVar(&opts.Jsonl, "jsonl", false, "output as JSONL")

	pf.BoolVarP(&opts.ScanAll, "all", "A", false, "include hidden files and ignored folders")
	pf.StringSliceVarP(&opts.IncludeGlobs, "glob", "g", nil, "only list these files (can repeat)")
	pf.StringSliceVarP(&opts.ExcludeGlobs, "exclude", "x", nil, "exclude these files (comma separated list: -x *.gif,raw/*)")
	pf.BoolVarP(&opts.Recursive, "recursive", "r", false, "descend into subfolders")

	pf.StringVarP(&opts.Sort, "sort", "s", "name", "sort order: name|modified|size|pixels")
	pf.BoolVar(&opts.Cycle, "cycle", true, "wrap around at either end")
	pf.IntVar(&opts.Radius, "radius", 1, "images kept decoded on each side of the current one")
	pf.IntVarP(&opts.Workers, "workers", "j", 0, "decode workers (default: CPU count)")
	pf.IntVar(&opts.Step, "step", 10, "files per page step")
	pf.StringVar(&opts.ScrollPolicy, "scroll-policy", "strict", "fast scroll policy: strict|latest")
	pf.StringVar(&opts.Store, "store", "sqlite", "catalog backend: sqlite|bolt")
	pf.StringVarP(&opts.DBPath, "database", "d", "", "catalog path (default: <folder>/.iv/catalog.db)")
}

func withOptionsContext(cmd *cobra.Command, opts *Options) {
	cmd.SetContext(context.WithValue(context.Background(), optionsKey{}, opts))
}

// ExecuteForTest runs cmd with output captured and an isolated global
// config directory.
func ExecuteForTest(cmd *cobra.Command, env ...string) (string, Options, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	opts := optionsFrom(cmd)
	if opts != nil {
		opts.env = append(append([]string{}, env...), "XDG_CONFIG_HOME="+filepath.Join(os.TempDir(), "iv-test-none"))
		opts.stderr = &out
	}

	err := cmd.Execute()
	if opts == nil {
		return out.String(), Options{}, err
	}
	return out.String(), *opts, err
}
