package ivcli

import (
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"imgview/internal/model"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewNRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "b.png"), 8, 8)
	writePNG(t, filepath.Join(root, "a.png"), 2, 1)
	writePNG(t, filepath.Join(root, "c.png"), 4, 4)
	_ = os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644)
	return root
}

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	if stdin != "" {
		cmd.SetIn(strings.NewReader(stdin))
	}
	out, _, err := ExecuteForTest(cmd)
	if err != nil {
		t.Fatalf("execute %v: %v\n%s", args, err, out)
	}
	return out
}

func TestHelpContainsSubcommands(t *testing.T) {
	out := run(t, "", "--help")
	for _, want := range []string{"iv", "ls", "index", "browse", "bench"} {
		if !strings.Contains(out, want) {
			t.Fatalf("help missing %q: %s", want, out)
		}
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"ls", t.TempDir(), "--sort", "size", "--cycle=false", "--radius", "2", "--explain"})
	_, opts, err := ExecuteForTest(cmd)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if opts.Config.Sort != "size" || opts.Config.Cycle || opts.Config.Radius != 2 || opts.Config.Step != 10 {
		t.Fatalf("config=%+v", opts.Config)
	}
	if opts.Explain != "text" {
		t.Fatalf("Explain=%q", opts.Explain)
	}
}

func TestInvalidFlags(t *testing.T) {
	for _, args := range [][]string{
		{"ls", "--explain=yaml"},
		{"ls", "--sort", "taken"},
		{"ls", "--radius", "0"},
	} {
		cmd := NewRootCommand()
		cmd.SetArgs(args)
		if _, _, err := ExecuteForTest(cmd); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}

func TestLs_Orders(t *testing.T) {
	root := fixture(t)

	out := run(t, "", "ls", root)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.Contains(lines[0], "a.png") || !strings.Contains(lines[2], "c.png") {
		t.Fatalf("name order:\n%s", out)
	}

	out = run(t, "", "ls", root, "--sort", "pixels", "--jsonl")
	var got []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var e model.Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
		got = append(got, filepath.Base(e.Path)+":"+string(rune('0'+e.Width)))
	}
	if diff := cmp.Diff([]string{"a.png:2", "c.png:4", "b.png:8"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestIndexBuildAndStatus(t *testing.T) {
	root := fixture(t)
	for _, store := range []string{"sqlite", "bolt"} {
		out := run(t, "", "index", "build", root, "--store", store)
		if !strings.Contains(out, "scanned=3 updated=3") {
			t.Fatalf("%s build: %s", store, out)
		}
		out = run(t, "", "index", "status", root, "--store", store)
		if !strings.Contains(out, "records=3") || !strings.Contains(out, "backend="+store) {
			t.Fatalf("%s status: %s", store, out)
		}
	}
}

func TestBrowse_Script(t *testing.T) {
	root := fixture(t)
	script := strings.Join([]string{"next", "next", "next", "status", "home", "bogus", "quit"}, "\n")
	out := run(t, script, "browse", root, "--cycle=false")

	for _, want := range []string{"[1/3] a.png", "[2/3] b.png", "[3/3] c.png", "-- end of folder --", "3/3  order=name", "unknown command"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestBrowse_SlideShowToggle(t *testing.T) {
	root := fixture(t)
	script := strings.Join([]string{"show 60", "status", "show", "status", "show", "show off", "quit"}, "\n")
	out := run(t, script, "browse", root)

	if n := strings.Count(out, "slideshow=60000ms"); n != 1 {
		t.Fatalf("slideshow shown in %d status lines:\n%s", n, out)
	}
	for _, want := range []string{"slideshow off", "slideshow on"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestBench(t *testing.T) {
	root := fixture(t)
	out := run(t, "", "bench", root, "--ticks", "2", "--interval", "1ms", "--jsonl")
	var res benchResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &res); err != nil {
		t.Fatalf("bench output %q: %v", out, err)
	}
	if res.Ticks != 2 || res.Files != 3 || res.Policy != "strict" {
		t.Fatalf("result=%+v", res)
	}
}

func TestExplainCollector_Emit(t *testing.T) {
	ex := NewExplainCollector(ExplainOptions{})
	ex.KV("files", 3)
	ex.observe("decode", 4*time.Millisecond)
	ex.observe("decode", 10*time.Millisecond)
	ex.observe("walk", 2*time.Millisecond)

	want := ExplainReport{
		KV: map[string]any{"files": 3},
		Phases: map[string]PhaseReport{
			"decode": {Calls: 2, TotalMS: 14, MaxMS: 10},
			"walk":   {Calls: 1, TotalMS: 2, MaxMS: 2},
		},
	}
	if diff := cmp.Diff(want, ex.Report()); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	var b strings.Builder
	if err := ex.Emit(&b); err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{"  files: 3", "  decode: 14ms over 2 (max 10ms)", "  walk: 2ms"} {
		if !strings.Contains(b.String(), line+"\n") {
			t.Fatalf("missing %q in:\n%s", line, b.String())
		}
	}

	js := NewExplainCollector(ExplainOptions{Format: "json"})
	stop := js.Timer("scroll.settle")
	stop()
	b.Reset()
	if err := js.Emit(&b); err != nil {
		t.Fatal(err)
	}
	var got ExplainReport
	if err := json.Unmarshal([]byte(b.String()), &got); err != nil {
		t.Fatalf("json %q: %v", b.String(), err)
	}
	if got.Phases["scroll.settle"].Calls != 1 {
		t.Fatalf("report=%+v", got)
	}
}
