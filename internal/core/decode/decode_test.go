package decode

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return p
}

func TestService_Decode(t *testing.T) {
	p := writePNG(t, t.TempDir(), "a.png", 4, 2)
	prober := NewProber(8)
	s := NewService(ServiceOptions{Prober: prober})

	d, err := s.Decode(context.Background(), p, Options{ColorManage: true, Profile: "sRGB"})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Meta.Format != "png" || d.Meta.Width != 4 || d.Meta.Height != 2 || d.Meta.Profile != "sRGB" {
		t.Fatalf("meta=%+v", d.Meta)
	}
	if d.Meta.Fingerprint == 0 {
		t.Fatal("expected fingerprint")
	}
	if _, ok := d.Display.(*image.NRGBA); !ok {
		t.Fatalf("display type=%T", d.Display)
	}
	if prober.Len() != 1 {
		t.Fatalf("prober not seeded")
	}
}

func TestService_FastSkipsTransform(t *testing.T) {
	p := writePNG(t, t.TempDir(), "a.png", 2, 2)
	d, err := NewService(ServiceOptions{}).Decode(context.Background(), p, Options{ColorManage: true, Fast: true})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Display != d.Original {
		t.Fatal("fast decode should reuse the original")
	}
}

func TestService_CancelledAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	p := writePNG(t, dir, "a.png", 2, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewService(ServiceOptions{})
	if _, err := s.Decode(ctx, p, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	// cancelled before any file access: a missing file is never stat'ed
	if _, err := s.Decode(ctx, filepath.Join(dir, "missing.png"), Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("missing file with cancelled ctx: err=%v", err)
	}

	bad := filepath.Join(dir, "bad.png")
	_ = os.WriteFile(bad, []byte("not an image"), 0o644)
	if _, err := s.Decode(context.Background(), bad, Options{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err=%v", err)
	}
}

func TestRotate(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.NRGBA{R: 0xff, A: 0xff})

	r := Rotate(img, 90)
	if b := r.Bounds(); b.Dx() != 1 || b.Dy() != 3 {
		t.Fatalf("bounds=%v", b)
	}
	if c := color.NRGBAModel.Convert(r.At(0, 0)).(color.NRGBA); c.R != 0xff {
		t.Fatalf("pixel=%v", c)
	}
	if Rotate(img, -360) != image.Image(img) {
		t.Fatal("full turn should be identity")
	}
}

func TestUnavailable(t *testing.T) {
	d := Unavailable("/x.png", errors.New("boom"))
	if d.Meta.Err != "boom" || d.Display == nil {
		t.Fatalf("placeholder=%+v", d.Meta)
	}
}

func TestProber_Memoises(t *testing.T) {
	p := writePNG(t, t.TempDir(), "a.png", 7, 3)
	pr := NewProber(4)
	w, h, ok := pr.Dimensions(p)
	if !ok || w != 7 || h != 3 {
		t.Fatalf("dims=%d,%d,%v", w, h, ok)
	}
	if _, _, ok := pr.Dimensions(p + ".missing"); ok {
		t.Fatal("missing file should not probe")
	}
	if pr.Len() != 1 {
		t.Fatalf("len=%d", pr.Len())
	}
}
