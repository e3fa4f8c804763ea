package ivcli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"imgview/internal/core/order"
	"imgview/internal/core/scheduler"
	"imgview/internal/core/scroll"
	"imgview/internal/core/walk"
	"imgview/internal/core/watch"
	"imgview/internal/model"
	"imgview/internal/viewer"
)

var errQuit = errors.New("quit")

var browseCommands = []string{
	"next", "prev", "nf", "pf", "jump", "step", "pgup", "pgdn", "home", "end",
	"scroll", "settle", "sort", "cycle", "policy", "resize", "reload", "refresh",
	"show", "status", "help", "quit",
}

func newBrowseCommand() *cobra.Command {
	var (
		width, height int
		watchFolder   bool
	)
	cmd := &cobra.Command{
		Use:   "browse [path]",
		Short: "Step through a folder interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := optionsFrom(cmd)
			if opts == nil {
				return fmt.Errorf("options missing")
			}
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			out := &syncWriter{w: cmd.OutOrStdout()}
			ex := newCollector(opts)
			wopts := opts.walk()
			v, err := viewer.New(viewer.Options{
				Config:     opts.Config,
				Walk:       &wopts,
				Logger:     opts.Logger,
				Explain:    ex,
				OnFrame:    func(f model.Frame, _ scheduler.Frame) { out.Println(renderFrame(f)) },
				OnBoundary: func(b model.Boundary) { out.Println(renderBoundary(b)) },
			})
			if err != nil {
				return err
			}
			defer v.Close()

			if width > 0 && height > 0 {
				if err := v.Resize(width, height); err != nil {
					return err
				}
			}
			if err := v.Open(path); err != nil {
				return err
			}
			b := &browser{v: v, out: out, ctx: cmd.Context()}
			b.wait()
			if st := v.Status(); st.Err != "" {
				return fmt.Errorf("open %s: %s", path, st.Err)
			}

			if watchFolder {
				stop, err := b.watch(path, wopts, opts.Logger)
				if err != nil {
					return err
				}
				defer stop()
			}

			in := cmd.InOrStdin()
			if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				err = b.runLiner()
			} else {
				err = b.runPlain(in)
			}
			if ex != nil {
				_ = ex.Emit(cmd.ErrOrStderr())
			}
			return err
		},
	}
	cmd.Flags().IntVar(&width, "width", 0, "viewport width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "viewport height in pixels")
	cmd.Flags().BoolVarP(&watchFolder, "watch", "w", false, "refresh when the folder changes")
	return cmd
}

type browser struct {
	v   *viewer.Viewer
	out *syncWriter
	ctx context.Context
}

func (b *browser) wait() {
	ctx, cancel := context.WithTimeout(b.ctx, 30*time.Second)
	defer cancel()
	_ = b.v.WaitIdle(ctx)
}

// watch refreshes the viewer when images under path's folder change.
func (b *browser) watch(path string, wopts walk.Options, logger *slog.Logger) (func(), error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if st, err := os.Stat(root); err == nil && !st.IsDir() {
		root = filepath.Dir(root)
	}
	w, err := watch.NewWatcher(root, wopts, watch.Options{
		AdaptiveDebounce: true,
		OnChange: func(rels []string) {
			b.out.Println(fmt.Sprintf("-- %d file(s) changed, refreshing --", len(rels)))
			_ = b.v.Refresh()
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(b.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	return func() {
		cancel()
		_ = w.Close()
		<-done
	}, nil
}

func (b *browser) runPlain(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := b.exec(sc.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			b.out.Println("error: " + err.Error())
		}
	}
	return sc.Err()
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".iv_history")
}

func (b *browser) runLiner() error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		var out []string
		lower := strings.ToLower(line)
		for _, c := range browseCommands {
			if strings.HasPrefix(c, lower) {
				out = append(out, c)
			}
		}
		return out
	})
	if f, err := os.Open(historyFile()); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if p := historyFile(); p != "" {
			if f, err := os.Create(p); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}
	}()

	for {
		line, err := ln.Prompt("iv> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			// Enter on an empty line advances, like a viewer's space bar.
			line = "next"
		} else {
			ln.AppendHistory(line)
		}
		if err := b.exec(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			b.out.Println("error: " + err.Error())
		}
	}
}

// exec runs one command line and waits for the viewer to settle.
func (b *browser) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	arg := func() (string, error) {
		if len(args) == 0 {
			return "", fmt.Errorf("%s: argument required", cmd)
		}
		return args[0], nil
	}
	intArg := func() (int, error) {
		s, err := arg()
		if err != nil {
			return 0, err
		}
		return strconv.Atoi(s)
	}

	var err error
	switch cmd {
	case "q", "quit", "exit":
		return errQuit
	case "help", "?":
		b.out.Println("commands: " + strings.Join(browseCommands, " "))
		return nil
	case "n", "next":
		err = b.v.Advance(true, false)
	case "p", "prev":
		err = b.v.Advance(false, false)
	case "nf":
		err = b.v.Advance(true, true)
	case "pf":
		err = b.v.Advance(false, true)
	case "j", "jump":
		var n int
		if n, err = intArg(); err == nil {
			if n < 1 {
				return fmt.Errorf("jump: position starts at 1")
			}
			err = b.v.Jump(n - 1)
		}
	case "step":
		var n int
		if n, err = intArg(); err == nil {
			err = b.v.Step(n)
		}
	case "pgdn":
		err = b.v.PageForward()
	case "pgup":
		err = b.v.PageBackward()
	case "home", "first":
		err = b.v.First()
	case "end", "last":
		err = b.v.Scheduler.Last()
	case "scroll":
		var n int
		if n, err = intArg(); err == nil {
			forward := n > 0
			for range max(n, -n) {
				if err = b.v.ScrollTick(forward); err != nil {
					break
				}
			}
		}
	case "settle":
		b.v.SettleNow()
	case "sort":
		var s string
		if s, err = arg(); err == nil {
			var o order.Order
			if o, err = order.Parse(s); err == nil {
				err = b.v.SetSort(o)
			}
		}
	case "cycle":
		var s string
		if s, err = arg(); err == nil {
			err = b.v.SetCycle(s == "on" || s == "true" || s == "1")
		}
	case "policy":
		var s string
		if s, err = arg(); err == nil {
			var p scroll.Policy
			if p, err = scroll.ParsePolicy(s); err == nil {
				b.v.SetScrollPolicy(p)
			}
		}
	case "resize":
		var s string
		if s, err = arg(); err == nil {
			var w, h int
			if _, err = fmt.Sscanf(s, "%dx%d", &w, &h); err == nil {
				err = b.v.Resize(w, h)
			}
		}
	case "show":
		// show toggles; show <seconds> starts at that interval; show off stops.
		switch {
		case len(args) == 0:
			var on bool
			if on, err = b.v.ToggleSlideShow(); err == nil {
				b.out.Println(fmt.Sprintf("slideshow %s", onOff(on)))
			}
		case args[0] == "off":
			err = b.v.SlideShow(0)
		default:
			var sec float64
			if sec, err = strconv.ParseFloat(args[0], 64); err == nil {
				if sec <= 0 {
					return fmt.Errorf("show: interval must be positive")
				}
				err = b.v.SlideShow(time.Duration(sec * float64(time.Second)))
			}
		}
		return err
	case "reload":
		err = b.v.Reload()
	case "refresh":
		err = b.v.Refresh()
	case "status":
		b.out.Println(renderStatus(b.v.Status()))
		return nil
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	if err != nil {
		return err
	}
	b.wait()
	return nil
}
