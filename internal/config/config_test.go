package config

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, src, err := Load(t.TempDir(), "", Layer{}, []string{"XDG_CONFIG_HOME=" + t.TempDir()})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if src != (Sources{}) {
		t.Fatalf("sources=%+v", src)
	}
}

func TestLoad_Layering(t *testing.T) {
	xdg := t.TempDir()
	work := t.TempDir()
	write(t, filepath.Join(xdg, "iv", "config.json"), `{
		// global
		"sort": "size",
		"radius": 2,
		"cycle": false,
	}`)
	write(t, filepath.Join(work, FileName), `{"radius": 3, "scroll_policy": "latest", "slideshow_ms": 1500}`)

	step := 25
	cfg, src, err := Load(work, "", Layer{Step: &step}, []string{"XDG_CONFIG_HOME=" + xdg})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	want.Sort = "size"
	want.Cycle = false
	want.Radius = 3
	want.ScrollPolicy = "latest"
	want.Step = 25
	want.SlideShowMS = 1500
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if src.Global == "" || src.Project == "" {
		t.Fatalf("sources=%+v", src)
	}
}

func TestLoad_ExplicitMissing(t *testing.T) {
	_, _, err := Load(t.TempDir(), "nope.json", Layer{}, []string{"XDG_CONFIG_HOME=" + t.TempDir()})
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"syntax":  `{"radius": }`,
		"unknown": `{"colour": "red"}`,
		"radius":  `{"radius": 0}`,
		"sort":    `{"sort": "taken"}`,
		"rotate":  `{"rotate": 45}`,
		"bg":      `{"background": "#12"}`,
		"store":   `{"catalog_store": "bleve"}`,
		"show":    `{"slideshow_ms": -1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			work := t.TempDir()
			write(t, filepath.Join(work, FileName), body)
			_, _, err := Load(work, "", Layer{}, []string{"XDG_CONFIG_HOME=" + t.TempDir()})
			if !errors.Is(err, ErrConfigInvalid) {
				t.Fatalf("err=%v", err)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#f80")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(color.NRGBA{R: 0xff, G: 0x88, B: 0x00, A: 0xff}, c); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestSchedulerOptions(t *testing.T) {
	c := Default()
	c.Sort = "pixels"
	c.ScrollPolicy = "latest-ready"
	o := c.SchedulerOptions()
	if o.Order != "pixels" || o.Settle.Milliseconds() != 500 || o.Step != 10 || !o.Cycle || o.SlideShow.Seconds() != 3 {
		t.Fatalf("options=%+v", o)
	}
}
