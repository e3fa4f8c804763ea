// Package window holds the sliding window of decoded images around the
// current file. All slot state lives behind one mutex; decode results enter
// only through Publish, which rejects work from an older epoch or for a
// file that has left the window.
package window

import (
	"fmt"
	"image"
	"sync"

	"imgview/internal/core/decode"
	"imgview/internal/core/epoch"
	"imgview/internal/core/indexspace"
)

type Quality int

const (
	QualityNone Quality = iota
	QualityFast
	QualityFull
)

func (q Quality) String() string {
	switch q {
	case QualityFast:
		return "fast"
	case QualityFull:
		return "full"
	default:
		return "none"
	}
}

type Size struct {
	W int
	H int
}

func (s Size) Empty() bool { return s.W <= 0 || s.H <= 0 }

type Entry struct {
	Index       int
	Path        string
	Original    image.Image
	Display     image.Image
	Scaled      image.Image
	Meta        decode.Meta
	Generation  uint64
	Quality     Quality
	Unavailable bool
	// Viewport is the size Scaled was produced for.
	Viewport Size
}

// Target names the file a slot is waiting for.
type Target struct {
	Slot  int
	Index int
	Path  string
}

type Move struct {
	From     int
	To       int
	Wrapped  bool
	Boundary bool
	// Evicted lists the slots whose entry was dropped.
	Evicted []int
	// Targets lists slots that now need a decode.
	Targets []Target
}

type Options struct {
	Radius int
	Cycle  bool
	Epoch  *epoch.Token
}

type Cache struct {
	mu sync.Mutex

	epoch  *epoch.Token
	radius int
	cycle  bool

	space       *indexspace.Space
	center      int
	current     int
	targets     []int
	slots       []*Entry
	viewport    Size
	loaded      bool
	fullyLoaded bool
}

func New(opts Options) *Cache {
	radius := opts.Radius
	if radius <= 0 {
		radius = 1
	}
	tok := opts.Epoch
	if tok == nil {
		tok = epoch.New()
	}
	c := &Cache{
		epoch:  tok,
		radius: radius,
		cycle:  opts.Cycle,
		space:  indexspace.Empty(),
	}
	c.targets, c.current = Layout(0, 0, radius, opts.Cycle)
	c.slots = make([]*Entry, len(c.targets))
	return c
}

func (c *Cache) Epoch() *epoch.Token { return c.epoch }

func (c *Cache) Width() int { return Width(c.radius) }

// BumpEpoch invalidates in-flight work. It takes the window mutex so no
// publish can straddle the bump.
func (c *Cache) BumpEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch.Bump()
}

// MarkScroll flips the scroll flags of the epoch under the window mutex,
// bumping the epoch when a scroll starts.
func (c *Cache) MarkScroll(scrolling bool) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch.Mark(scrolling)
}

// Reset installs a new index space and empties every slot.
func (c *Cache) Reset(space *indexspace.Space, center int) (uint64, []Target) {
	if space == nil {
		space = indexspace.Empty()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.epoch.Bump()
	c.space = space
	c.center = indexspace.Clamp(center, space.Len())
	c.targets, c.current = Layout(c.center, space.Len(), c.radius, c.cycle)
	c.slots = make([]*Entry, len(c.targets))
	c.loaded = false
	c.fullyLoaded = false
	return gen, c.missingLocked()
}

// Rebase installs a rebuilt index space, keeping resident entries whose
// file is still present.
func (c *Cache) Rebase(space *indexspace.Space, center int) Move {
	if space == nil {
		space = indexspace.Empty()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byPath := map[string]*Entry{}
	for _, e := range c.slots {
		if e != nil {
			byPath[e.Path] = e
		}
	}
	from := c.center
	c.space = space
	c.center = indexspace.Clamp(center, space.Len())
	targets, current := Layout(c.center, space.Len(), c.radius, c.cycle)
	slots := make([]*Entry, len(targets))
	for i, idx := range targets {
		f, ok := space.At(idx)
		if !ok {
			continue
		}
		if e, ok := byPath[f.Path]; ok {
			e.Index = idx
			slots[i] = e
			delete(byPath, f.Path)
		}
	}
	var evicted []int
	for i, e := range c.slots {
		if e != nil {
			if _, gone := byPath[e.Path]; gone {
				evicted = append(evicted, i)
			}
		}
	}
	c.targets, c.current, c.slots = targets, current, slots
	return Move{From: from, To: c.center, Evicted: evicted, Targets: c.missingLocked()}
}

// Rotate moves the window one file forward or backward. At the end of a
// non-cycling list the move is blocked and reported as a boundary.
func (c *Cache) Rotate(forward bool) Move {
	return c.Offset(direction(forward))
}

// Offset moves the window by delta files, clamping (or wrapping when
// cycling) at the ends.
func (c *Cache) Offset(delta int) Move {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, moved, wrapped := c.space.Offset(c.center, delta, c.cycle)
	if !moved {
		return Move{From: c.center, To: c.center, Boundary: !c.cycle && c.space.Len() > 0 && delta != 0}
	}
	m := c.recenterLocked(next)
	m.Wrapped = wrapped
	return m
}

// Recenter places center in the window, keeping entries that still map.
func (c *Cache) Recenter(center int) Move {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recenterLocked(indexspace.Clamp(center, c.space.Len()))
}

func (c *Cache) SetCycle(cycle bool) Move {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycle = cycle
	return c.recenterLocked(c.center)
}

func (c *Cache) Cycle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle
}

func (c *Cache) recenterLocked(center int) Move {
	from := c.center
	targets, current := Layout(center, c.space.Len(), c.radius, c.cycle)

	resident := map[int]*Entry{}
	for _, e := range c.slots {
		if e != nil {
			resident[e.Index] = e
		}
	}
	slots := make([]*Entry, len(targets))
	for i, idx := range targets {
		if e, ok := resident[idx]; ok && idx >= 0 {
			slots[i] = e
			delete(resident, idx)
		}
	}
	var evicted []int
	for i, e := range c.slots {
		if e == nil {
			continue
		}
		if _, gone := resident[e.Index]; gone {
			evicted = append(evicted, i)
		}
	}

	c.center, c.targets, c.current, c.slots = center, targets, current, slots
	return Move{From: from, To: center, Evicted: evicted, Targets: c.missingLocked()}
}

// Publish stores e for the file t.Index. The write is discarded when gen is
// no longer the current epoch, when the file has left the window, or when a
// higher-quality entry for the same file is already resident.
func (c *Cache) Publish(gen uint64, t Target, e Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.epoch.Valid(gen) {
		return false
	}
	slot, ok := c.slotLocked(t)
	if !ok {
		return false
	}
	if old := c.slots[slot]; old != nil && old.Index == t.Index && old.Quality > e.Quality {
		return false
	}
	e.Index = t.Index
	e.Generation = gen
	if e.Path == "" {
		if f, ok := c.space.At(t.Index); ok {
			e.Path = f.Path
		}
	}
	c.slots[slot] = &e
	return true
}

// PublishScaled replaces the scaled image of the entry for index, provided
// the entry is still the one the scale was computed from and the viewport
// has not changed since.
func (c *Cache) PublishScaled(index int, from image.Image, scaled image.Image, vp Size) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if vp != c.viewport {
		return false
	}
	slot, ok := c.slotLocked(Target{Slot: -1, Index: index})
	if !ok {
		return false
	}
	e := c.slots[slot]
	if e == nil || e.Display != from {
		return false
	}
	cp := *e
	cp.Scaled = scaled
	cp.Viewport = vp
	c.slots[slot] = &cp
	return true
}

func (c *Cache) slotLocked(t Target) (int, bool) {
	if t.Index < 0 {
		return 0, false
	}
	if t.Slot >= 0 && t.Slot < len(c.targets) && c.targets[t.Slot] == t.Index {
		return t.Slot, true
	}
	for i, idx := range c.targets {
		if idx == t.Index {
			return i, true
		}
	}
	return 0, false
}

func (c *Cache) SlotFor(index int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slotLocked(Target{Slot: -1, Index: index})
}

func (c *Cache) Current() (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.slots[c.current]
	if e == nil {
		return Entry{Index: c.center}, false
	}
	return *e, true
}

func (c *Cache) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.center
}

func (c *Cache) CurrentFile() (indexspace.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.space.At(c.center)
}

func (c *Cache) Entry(index int) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.slotLocked(Target{Slot: -1, Index: index})
	if !ok || c.slots[slot] == nil || c.slots[slot].Index != index {
		return Entry{}, false
	}
	return *c.slots[slot], true
}

func (c *Cache) Space() *indexspace.Space {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.space
}

func (c *Cache) Missing() []Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.missingLocked()
}

func (c *Cache) missingLocked() []Target {
	var out []Target
	for _, i := range c.order() {
		idx := c.targets[i]
		if idx < 0 || c.slots[i] != nil {
			continue
		}
		f, _ := c.space.At(idx)
		out = append(out, Target{Slot: i, Index: idx, Path: f.Path})
	}
	return out
}

// NeedsQuality lists resident entries decoded in fast mode.
func (c *Cache) NeedsQuality() []Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Target
	for _, i := range c.order() {
		e := c.slots[i]
		if e == nil || e.Unavailable || e.Quality >= QualityFull {
			continue
		}
		out = append(out, Target{Slot: i, Index: e.Index, Path: e.Path})
	}
	return out
}

// NeedsScale lists resident entries whose scaled image does not match the
// current viewport.
func (c *Cache) NeedsScale() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.viewport.Empty() {
		return nil
	}
	var out []Entry
	for _, i := range c.order() {
		if e := c.slots[i]; e != nil && e.Viewport != c.viewport {
			out = append(out, *e)
		}
	}
	return out
}

// order yields slot positions starting at the current slot and fanning
// outwards, so the nearest neighbours are decoded first.
func (c *Cache) order() []int {
	out := make([]int, 0, len(c.targets))
	out = append(out, c.current)
	for d := 1; len(out) < len(c.targets); d++ {
		if i := c.current + d; i < len(c.targets) {
			out = append(out, i)
		}
		if i := c.current - d; i >= 0 {
			out = append(out, i)
		}
	}
	return out
}

// Resize records the viewport and reports whether it changed. Slot mapping
// is untouched; scaled images are rewritten through PublishScaled.
func (c *Cache) Resize(vp Size) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if vp == c.viewport {
		return false
	}
	c.viewport = vp
	return true
}

func (c *Cache) Viewport() Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

func (c *Cache) SetLoaded(v bool) {
	c.mu.Lock()
	c.loaded = v
	c.mu.Unlock()
}

func (c *Cache) SetFullyLoaded(v bool) {
	c.mu.Lock()
	c.fullyLoaded = v
	c.mu.Unlock()
}

func (c *Cache) Loaded() (loaded, fullyLoaded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded, c.fullyLoaded
}

func (c *Cache) Resident() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.slots {
		if e != nil {
			n++
		}
	}
	return n
}

type Snapshot struct {
	Center      int
	Total       int
	Cycle       bool
	Radius      int
	CurrentSlot int
	Targets     []int
	Quality     []Quality
	Loaded      bool
	FullyLoaded bool
	Viewport    Size
	Epoch       uint64
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Center:      c.center,
		Total:       c.space.Len(),
		Cycle:       c.cycle,
		Radius:      c.radius,
		CurrentSlot: c.current,
		Targets:     append([]int(nil), c.targets...),
		Quality:     make([]Quality, len(c.slots)),
		Loaded:      c.loaded,
		FullyLoaded: c.fullyLoaded,
		Viewport:    c.viewport,
		Epoch:       c.epoch.Current(),
	}
	for i, e := range c.slots {
		if e != nil {
			s.Quality[i] = e.Quality
		}
	}
	return s
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%d/%d slots=%v quality=%v epoch=%d", s.Center+1, s.Total, s.Targets, s.Quality, s.Epoch)
}

func direction(forward bool) int {
	if forward {
		return 1
	}
	return -1
}
