package ivcli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"imgview/internal/model"
)

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func renderEntry(e model.Entry, root string) string {
	rel := e.Path
	if r, err := filepath.Rel(root, e.Path); err == nil {
		rel = filepath.ToSlash(r)
	}
	dims := ""
	if e.Width > 0 {
		dims = fmt.Sprintf("  %dx%d", e.Width, e.Height)
	}
	return fmt.Sprintf("%5d  %8s  %s%s", e.Index, humanSize(e.Size), rel, dims)
}

func renderFrame(f model.Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d/%d] %s", f.Index+1, f.Total, filepath.Base(f.Path))
	switch {
	case f.Unavailable:
		b.WriteString("  unavailable")
		if f.Err != "" {
			fmt.Fprintf(&b, " (%s)", f.Err)
		}
	case f.Width > 0:
		fmt.Fprintf(&b, "  %dx%d %s", f.Width, f.Height, f.Format)
	}
	if f.Fast {
		b.WriteString("  fast")
	}
	return b.String()
}

func renderBoundary(b model.Boundary) string {
	if b.Wrapped {
		return fmt.Sprintf("-- wrapped to %d --", b.Index+1)
	}
	if b.Forward {
		return "-- end of folder --"
	}
	return "-- start of folder --"
}

func renderStatus(st model.Status) string {
	s := fmt.Sprintf("%d/%d  order=%s cycle=%v scroll=%s policy=%s window=%v quality=%v frames=%d",
		st.Index+1, st.Total, st.Order, st.Cycle, st.Scroll, st.Policy, st.Window, st.Quality, st.Frames)
	if st.SlideShowMS > 0 {
		s += fmt.Sprintf("  slideshow=%dms", st.SlideShowMS)
	}
	if st.Err != "" {
		s += "  err=" + st.Err
	}
	return s
}

// syncWriter serialises lines written from the dispatcher and the prompt.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, line)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
