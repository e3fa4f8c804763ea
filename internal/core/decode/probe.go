package decode

import (
	"encoding/binary"
	"image"
	"os"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"imgview/internal/core/cache"
)

type Info struct {
	Width  int
	Height int
	Format string
}

// Prober reads image headers and memoises the result per path, size and
// modification time. Concurrent probes of one file share a read.
type Prober struct {
	lru   *cache.LRU[uint64, Info]
	group singleflight.Group
}

func NewProber(capacity int) *Prober {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Prober{lru: cache.NewLRU[uint64, Info](capacity)}
}

func Key(path string, size int64, mtime time.Time) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(path)
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(size))
	binary.LittleEndian.PutUint64(buf[8:], uint64(mtime.UnixNano()))
	_, _ = d.Write(buf[:])
	return d.Sum64()
}

func (p *Prober) Probe(path string) (Info, error) {
	if p == nil {
		return probeFile(path)
	}
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	key := Key(path, st.Size(), st.ModTime())
	if info, ok := p.lru.Get(key); ok {
		return info, nil
	}
	v, err, _ := p.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		info, err := probeFile(path)
		if err != nil {
			return Info{}, err
		}
		p.lru.Put(key, info)
		return info, nil
	})
	if err != nil {
		return Info{}, err
	}
	return v.(Info), nil
}

// Dimensions adapts Probe to a sort-order dimension lookup.
func (p *Prober) Dimensions(path string) (int, int, bool) {
	info, err := p.Probe(path)
	if err != nil {
		return 0, 0, false
	}
	return info.Width, info.Height, true
}

func (p *Prober) Seed(path string, size int64, mtime time.Time, info Info) {
	if p == nil {
		return
	}
	p.lru.Put(Key(path, size, mtime), info)
}

func (p *Prober) Len() int {
	if p == nil {
		return 0
	}
	return p.lru.Len()
}

func probeFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, err
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}
