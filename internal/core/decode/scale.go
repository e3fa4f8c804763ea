package decode

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

type ScaleOptions struct {
	// Fast trades quality for speed while scrolling.
	Fast       bool
	Background color.Color
	// ScaleToFit enlarges images smaller than the viewport.
	ScaleToFit bool
}

// Scaler fits images into a viewport, preserving aspect ratio and
// centring the result on a background canvas.
type Scaler struct{}

func NewScaler() *Scaler { return &Scaler{} }

func (s *Scaler) Scale(img image.Image, w, h int, opts ScaleOptions) image.Image {
	if img == nil || w <= 0 || h <= 0 {
		return img
	}
	b := img.Bounds()
	fw, fh := FitSize(b.Dx(), b.Dy(), w, h, opts.ScaleToFit)

	interp := resize.Lanczos3
	if opts.Fast {
		interp = resize.Bilinear
		if b.Dx() > 4*fw {
			interp = resize.NearestNeighbor
		}
	}
	scaled := img
	if fw != b.Dx() || fh != b.Dy() {
		scaled = resize.Resize(uint(fw), uint(fh), img, interp)
	}

	bg := opts.Background
	if bg == nil {
		bg = color.Black
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	off := image.Pt((w-fw)/2, (h-fh)/2)
	sb := scaled.Bounds()
	draw.Draw(canvas, image.Rectangle{Min: off, Max: off.Add(sb.Size())}, scaled, sb.Min, draw.Over)
	return canvas
}

// FitSize returns the largest size with the source aspect ratio that fits
// in w×h. Without upscale, sources that already fit keep their size.
func FitSize(sw, sh, w, h int, upscale bool) (int, int) {
	if sw <= 0 || sh <= 0 || w <= 0 || h <= 0 {
		return 0, 0
	}
	if !upscale && sw <= w && sh <= h {
		return sw, sh
	}
	// Compare sw/sh with w/h without floats.
	if int64(sw)*int64(h) >= int64(sh)*int64(w) {
		fh := int(int64(sh) * int64(w) / int64(sw))
		return w, max(fh, 1)
	}
	fw := int(int64(sw) * int64(h) / int64(sh))
	return max(fw, 1), h
}
