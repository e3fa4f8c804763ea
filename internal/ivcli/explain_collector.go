package ivcli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"imgview/internal/core/explain"
)

var _ explain.Explain = (*ExplainCollector)(nil)

type ExplainOptions struct {
	Format string
}

// ExplainCollector gathers key/values and phase timings from one command
// run and prints them on stderr when it ends. Phases such as decode,
// rescale or scroll.settle fire once per file or gesture, so each keeps a
// call count, a total and its slowest run.
type ExplainCollector struct {
	mu     sync.Mutex
	format string
	kv     map[string]any
	phases map[string]*phase
}

type phase struct {
	calls int
	total time.Duration
	max   time.Duration
}

type PhaseReport struct {
	Calls   int   `json:"calls"`
	TotalMS int64 `json:"total_ms"`
	MaxMS   int64 `json:"max_ms"`
}

type ExplainReport struct {
	KV     map[string]any         `json:"kv,omitempty"`
	Phases map[string]PhaseReport `json:"phases,omitempty"`
}

func NewExplainCollector(opts ExplainOptions) *ExplainCollector {
	format := strings.TrimSpace(opts.Format)
	if format == "" {
		format = "text"
	}
	return &ExplainCollector{
		format: format,
		kv:     map[string]any{},
		phases: map[string]*phase{},
	}
}

func (e *ExplainCollector) KV(key string, value any) {
	if e == nil {
		return
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	e.mu.Lock()
	e.kv[key] = value
	e.mu.Unlock()
}

func (e *ExplainCollector) Timer(name string) func() {
	if e == nil {
		return func() {}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return func() {}
	}
	start := time.Now()
	return func() {
		e.observe(name, time.Since(start))
	}
}

func (e *ExplainCollector) observe(name string, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.phases[name]
	if p == nil {
		p = &phase{}
		e.phases[name] = p
	}
	p.calls++
	p.total += d
	p.max = max(p.max, d)
}

func (e *ExplainCollector) Report() ExplainReport {
	var r ExplainReport
	if e == nil {
		return r
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.kv) > 0 {
		r.KV = make(map[string]any, len(e.kv))
		for k, v := range e.kv {
			r.KV[k] = v
		}
	}
	if len(e.phases) > 0 {
		r.Phases = make(map[string]PhaseReport, len(e.phases))
		for k, p := range e.phases {
			r.Phases[k] = PhaseReport{Calls: p.calls, TotalMS: p.total.Milliseconds(), MaxMS: p.max.Milliseconds()}
		}
	}
	return r
}

func (e *ExplainCollector) Emit(w io.Writer) error {
	if e == nil || w == nil {
		return nil
	}
	r := e.Report()
	if e.format == "json" {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	_, _ = fmt.Fprintln(w, "explain:")
	for _, k := range slices.Sorted(maps.Keys(r.KV)) {
		_, _ = fmt.Fprintf(w, "  %s: %v\n", k, r.KV[k])
	}
	for _, k := range slices.Sorted(maps.Keys(r.Phases)) {
		p := r.Phases[k]
		if p.Calls == 1 {
			_, _ = fmt.Fprintf(w, "  %s: %dms\n", k, p.TotalMS)
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s: %dms over %d (max %dms)\n", k, p.TotalMS, p.Calls, p.MaxMS)
	}
	return nil
}
