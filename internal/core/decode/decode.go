package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrUnsupported = errors.New("unsupported image format")

type Options struct {
	// ColorManage converts the original into the display colour space.
	ColorManage bool
	// Profile names the display profile; it is recorded, not discovered.
	Profile string
	// Rotate is a clockwise rotation in degrees, a multiple of 90.
	Rotate int
	// Fast skips the transform phase; the entry is reloaded at full
	// quality once navigation settles.
	Fast bool
}

type Meta struct {
	Path        string
	Format      string
	Width       int
	Height      int
	Size        int64
	ModTime     time.Time
	Fingerprint uint64
	Profile     string
	Err         string
}

type Decoded struct {
	Original image.Image
	Display  image.Image
	Meta     Meta
}

// Service is the default decoder: stdlib and x/image codecs plus an
// optional transform into NRGBA.
type Service struct {
	logger *slog.Logger
	prober *Prober
}

type ServiceOptions struct {
	Logger *slog.Logger
	// Prober, when set, is seeded with the dimensions of every decode.
	Prober *Prober
}

func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{logger: logger, prober: opts.Prober}
}

func (s *Service) Decode(ctx context.Context, path string, opts Options) (Decoded, error) {
	if s == nil {
		return Decoded{}, fmt.Errorf("decoder is nil")
	}
	if strings.TrimSpace(path) == "" {
		return Decoded{}, fmt.Errorf("path is required")
	}
	if err := ctx.Err(); err != nil {
		return Decoded{}, err
	}

	st, err := os.Stat(path)
	if err != nil {
		return Decoded{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Decoded{}, err
	}
	if err := ctx.Err(); err != nil {
		return Decoded{}, err
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Decoded{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
		}
		return Decoded{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if err := ctx.Err(); err != nil {
		return Decoded{}, err
	}

	img = Rotate(img, opts.Rotate)
	display := img
	if opts.ColorManage && !opts.Fast {
		display = toNRGBA(img)
	}
	if err := ctx.Err(); err != nil {
		return Decoded{}, err
	}

	b := img.Bounds()
	meta := Meta{
		Path:        path,
		Format:      format,
		Width:       b.Dx(),
		Height:      b.Dy(),
		Size:        st.Size(),
		ModTime:     st.ModTime(),
		Fingerprint: xxhash.Sum64(raw),
		Profile:     opts.Profile,
	}
	if s.prober != nil {
		s.prober.Seed(path, st.Size(), st.ModTime(), Info{Width: b.Dx(), Height: b.Dy(), Format: format})
	}
	return Decoded{Original: img, Display: display, Meta: meta}, nil
}

// Unavailable is the placeholder stored for a file that failed to decode.
func Unavailable(path string, cause error) Decoded {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA{A: 0xff})
	meta := Meta{Path: path, Width: 1, Height: 1}
	if cause != nil {
		meta.Err = cause.Error()
	}
	return Decoded{Original: img, Display: img, Meta: meta}
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Rotate turns img clockwise by deg, normalised to 0, 90, 180 or 270.
func Rotate(img image.Image, deg int) image.Image {
	deg = ((deg % 360) + 360) % 360
	if img == nil || deg == 0 || deg%90 != 0 {
		return img
	}
	src := toNRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dw, dh := w, h
	if deg != 180 {
		dw, dh = h, w
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch deg {
			case 90:
				dx, dy = h-1-y, x
			case 180:
				dx, dy = w-1-x, h-1-y
			case 270:
				dx, dy = y, w-1-x
			}
			si := src.PixOffset(x, y)
			di := dst.PixOffset(dx, dy)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}
