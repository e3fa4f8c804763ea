package ivcli

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"imgview/internal/core/scheduler"
	"imgview/internal/model"
	"imgview/internal/viewer"
)

type benchResult struct {
	Policy     string  `json:"policy"`
	Ticks      int     `json:"ticks"`
	Files      int     `json:"files"`
	Frames     uint64  `json:"frames"`
	Direct     uint64  `json:"direct"`
	Discarded  uint64  `json:"discarded"`
	Dropped    uint64  `json:"dropped"`
	Final      int     `json:"final"`
	ElapsedMS  int64   `json:"elapsed_ms"`
	FramesPerS float64 `json:"frames_per_s"`
}

func newBenchCommand() *cobra.Command {
	var (
		ticks    int
		interval time.Duration
		backward bool
	)
	cmd := &cobra.Command{
		Use:   "bench [path]",
		Short: "Simulate a fast scroll through a folder and report what was shown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := optionsFrom(cmd)
			if opts == nil {
				return fmt.Errorf("options missing")
			}
			if ticks <= 0 {
				return fmt.Errorf("ticks must be > 0")
			}
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			var frames atomic.Uint64
			wopts := opts.walk()
			ex := newCollector(opts)
			v, err := viewer.New(viewer.Options{
				Config:  opts.Config,
				Walk:    &wopts,
				Logger:  opts.Logger,
				Explain: ex,
				OnFrame: func(model.Frame, scheduler.Frame) { frames.Add(1) },
			})
			if err != nil {
				return err
			}
			defer v.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			if err := v.Open(path); err != nil {
				return err
			}
			if err := v.WaitIdle(ctx); err != nil {
				return err
			}
			if st := v.Status(); st.Err != "" {
				return fmt.Errorf("open %s: %s", path, st.Err)
			}
			before := v.Stats()
			frames.Store(0)

			start := time.Now()
			tk := time.NewTicker(max(interval, time.Millisecond))
			for i := 0; i < ticks; i++ {
				if err := v.ScrollTick(!backward); err != nil {
					tk.Stop()
					return err
				}
				<-tk.C
			}
			tk.Stop()
			v.SettleNow()
			if err := v.WaitIdle(ctx); err != nil {
				return err
			}
			elapsed := time.Since(start)

			after := v.Stats()
			st := v.Status()
			res := benchResult{
				Policy:    opts.Config.Policy().String(),
				Ticks:     ticks,
				Files:     st.Total,
				Frames:    frames.Load(),
				Direct:    after.Direct - before.Direct,
				Discarded: after.Discarded - before.Discarded,
				Dropped:   st.Dropped,
				Final:     st.Index,
				ElapsedMS: elapsed.Milliseconds(),
			}
			if s := elapsed.Seconds(); s > 0 {
				res.FramesPerS = float64(res.Frames) / s
			}

			out := cmd.OutOrStdout()
			if opts.Jsonl {
				return json.NewEncoder(out).Encode(res)
			}
			_, _ = fmt.Fprintf(out, "policy=%s ticks=%d files=%d frames=%d direct=%d discarded=%d dropped=%d final=%d elapsed=%s fps=%.1f\n",
				res.Policy, res.Ticks, res.Files, res.Frames, res.Direct, res.Discarded, res.Dropped, res.Final+1,
				elapsed.Round(time.Millisecond), res.FramesPerS)
			if ex != nil {
				_ = ex.Emit(cmd.ErrOrStderr())
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&ticks, "ticks", "n", 50, "scroll ticks to send")
	cmd.Flags().DurationVar(&interval, "interval", 16*time.Millisecond, "time between ticks")
	cmd.Flags().BoolVar(&backward, "backward", false, "scroll backward")
	return cmd
}

