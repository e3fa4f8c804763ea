package window

import (
	"fmt"
	"image"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"imgview/internal/core/epoch"
	"imgview/internal/core/indexspace"
)

func space(n int) *indexspace.Space {
	files := make([]indexspace.File, n)
	for i := range files {
		files[i] = indexspace.File{Path: fmt.Sprintf("/p/%03d.png", i)}
	}
	return indexspace.New("/p", files, nil)
}

func fill(t *testing.T, c *Cache) {
	t.Helper()
	gen := c.Epoch().Current()
	for _, tg := range c.Missing() {
		if !c.Publish(gen, tg, Entry{Quality: QualityFull}) {
			t.Fatalf("publish %+v rejected", tg)
		}
	}
}

func TestLayout(t *testing.T) {
	cases := []struct {
		center, n, r int
		cycle        bool
		want         []int
		cur          int
	}{
		{0, 5, 1, true, []int{4, 0, 1}, 1},
		{4, 5, 1, true, []int{3, 4, 0}, 1},
		{0, 5, 1, false, []int{0, 1, 2}, 0},
		{2, 3, 1, false, []int{0, 1, 2}, 2},
		{1, 2, 1, true, []int{0, 1, -1}, 1},
		{0, 0, 1, false, []int{-1, -1, -1}, 0},
		{9, 10, 2, false, []int{5, 6, 7, 8, 9}, 4},
	}
	for _, tc := range cases {
		got, cur := Layout(tc.center, tc.n, tc.r, tc.cycle)
		if diff := cmp.Diff(tc.want, got); diff != "" || cur != tc.cur {
			t.Fatalf("Layout(%d,%d,%d,%v) cur=%d want %d (-want +got):\n%s", tc.center, tc.n, tc.r, tc.cycle, cur, tc.cur, diff)
		}
	}
}

func TestRotate_CyclingScenario(t *testing.T) {
	c := New(Options{Radius: 1, Cycle: true})
	c.Reset(space(5), 0)
	if diff := cmp.Diff([]int{4, 0, 1}, c.Snapshot().Targets); diff != "" {
		t.Fatalf("initial (-want +got):\n%s", diff)
	}
	fill(t, c)

	m := c.Rotate(true)
	if diff := cmp.Diff([]int{0, 1, 2}, c.Snapshot().Targets); diff != "" {
		t.Fatalf("after advance (-want +got):\n%s", diff)
	}
	if len(m.Evicted) != 1 || m.Evicted[0] != 0 {
		t.Fatalf("evicted=%v want slot 0 (file 4)", m.Evicted)
	}
	if len(m.Targets) != 1 || m.Targets[0].Index != 2 {
		t.Fatalf("targets=%+v want file 2", m.Targets)
	}
	if _, ok := c.Entry(0); !ok {
		t.Fatal("file 0 should stay resident")
	}

	fill(t, c)
	m = c.Rotate(false)
	if diff := cmp.Diff([]int{4, 0, 1}, c.Snapshot().Targets); diff != "" {
		t.Fatalf("after back (-want +got):\n%s", diff)
	}
	if len(m.Targets) != 1 || m.Targets[0].Index != 4 {
		t.Fatalf("targets=%+v want file 4", m.Targets)
	}
}

func TestRotate_CycleReturnsToStart(t *testing.T) {
	const n = 7
	c := New(Options{Radius: 2, Cycle: true})
	c.Reset(space(n), 3)
	start := c.Snapshot().Targets
	wraps := 0
	for i := 0; i < n; i++ {
		if c.Rotate(true).Wrapped {
			wraps++
		}
	}
	if diff := cmp.Diff(start, c.Snapshot().Targets); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if c.CurrentIndex() != 3 || wraps != 1 {
		t.Fatalf("center=%d wraps=%d", c.CurrentIndex(), wraps)
	}
}

func TestRotate_BoundaryWithoutCycle(t *testing.T) {
	c := New(Options{Radius: 1})
	c.Reset(space(3), 2)
	fill(t, c)
	before := c.Snapshot()

	m := c.Rotate(true)
	if !m.Boundary || m.To != 2 || len(m.Targets) != 0 {
		t.Fatalf("move=%+v", m)
	}
	if diff := cmp.Diff(before, c.Snapshot()); diff != "" {
		t.Fatalf("state changed at boundary (-want +got):\n%s", diff)
	}

	c.Reset(space(3), 0)
	if m := c.Rotate(false); !m.Boundary {
		t.Fatalf("backward at 0: %+v", m)
	}
}

func TestRotate_RandomSequenceMatchesLayout(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, cycle := range []bool{true, false} {
		for _, n := range []int{1, 2, 3, 5, 11} {
			c := New(Options{Radius: 2, Cycle: cycle})
			c.Reset(space(n), rng.Intn(n))
			for step := 0; step < 200; step++ {
				switch rng.Intn(4) {
				case 0:
					c.Offset(rng.Intn(21) - 10)
				case 1:
					c.Recenter(rng.Intn(n))
				default:
					c.Rotate(rng.Intn(2) == 0)
				}
				fill(t, c)
				s := c.Snapshot()
				want, cur := Layout(s.Center, n, 2, cycle)
				if diff := cmp.Diff(want, s.Targets); diff != "" || cur != s.CurrentSlot {
					t.Fatalf("n=%d cycle=%v step=%d (-want +got):\n%s", n, cycle, step, diff)
				}
				if r := c.Resident(); r > c.Width() {
					t.Fatalf("resident=%d > W", r)
				}
				for slot, idx := range s.Targets {
					if idx < 0 {
						continue
					}
					e, ok := c.Entry(idx)
					if !ok || e.Index != idx {
						t.Fatalf("slot %d: entry for %d missing", slot, idx)
					}
				}
			}
		}
	}
}

func TestPublish_StaleEpochDiscarded(t *testing.T) {
	tok := epoch.NewAt(5)
	c := New(Options{Radius: 1, Epoch: tok})
	c.Reset(space(20), 7) // Reset bumps to 6
	if tok.Current() != 6 {
		t.Fatalf("epoch=%d", tok.Current())
	}
	slot, ok := c.SlotFor(7)
	if !ok {
		t.Fatal("7 not in window")
	}
	if c.Publish(5, Target{Slot: slot, Index: 7}, Entry{Quality: QualityFull}) {
		t.Fatal("publish with epoch 5 accepted after bump to 6")
	}
	if _, ok := c.Current(); ok {
		t.Fatal("stale result became visible")
	}

	first := Entry{Path: "first.png", Quality: QualityFast}
	if !c.Publish(6, Target{Slot: slot, Index: 7}, first) {
		t.Fatal("current-epoch publish rejected")
	}
	want, _ := c.Current()

	// a task captured at 6 finishes after the jump that bumped to 7
	if gen := c.BumpEpoch(); gen != 7 {
		t.Fatalf("epoch=%d", gen)
	}
	if c.Publish(6, Target{Slot: slot, Index: 7}, Entry{Path: "late.png", Quality: QualityFull}) {
		t.Fatal("publish with epoch 6 accepted after bump to 7")
	}
	got, ok := c.Current()
	if !ok {
		t.Fatal("resident entry lost")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("slot changed by a cancelled task (-want +got):\n%s", diff)
	}
}

func TestPublish_RejectsEvictedAndDowngrade(t *testing.T) {
	c := New(Options{Radius: 1})
	gen, targets := c.Reset(space(10), 0)
	if len(targets) != 3 {
		t.Fatalf("targets=%+v", targets)
	}
	if c.Publish(gen, Target{Slot: 0, Index: 5}, Entry{}) {
		t.Fatal("publish for file outside window accepted")
	}
	full := Entry{Quality: QualityFull}
	if !c.Publish(gen, targets[0], full) {
		t.Fatal("full publish rejected")
	}
	if c.Publish(gen, targets[0], Entry{Quality: QualityFast}) {
		t.Fatal("fast publish replaced full entry")
	}
	e, _ := c.Entry(targets[0].Index)
	if e.Path == "" || e.Generation != gen {
		t.Fatalf("entry=%+v", e)
	}
}

func TestPublishScaled_RequiresSameSourceAndViewport(t *testing.T) {
	c := New(Options{Radius: 1})
	gen, targets := c.Reset(space(3), 0)
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	c.Publish(gen, targets[0], Entry{Display: src, Quality: QualityFull})
	c.Resize(Size{W: 10, H: 10})

	scaled := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	if c.PublishScaled(0, src, scaled, Size{W: 9, H: 9}) {
		t.Fatal("scale for old viewport accepted")
	}
	if c.PublishScaled(0, image.NewNRGBA(image.Rect(0, 0, 1, 1)), scaled, Size{W: 10, H: 10}) {
		t.Fatal("scale from replaced source accepted")
	}
	if len(c.NeedsScale()) != 1 {
		t.Fatal("expected one entry needing scale")
	}
	if !c.PublishScaled(0, src, scaled, Size{W: 10, H: 10}) {
		t.Fatal("valid scale rejected")
	}
	if len(c.NeedsScale()) != 0 {
		t.Fatal("entry still needs scale")
	}
}

func TestRebase_KeepsSurvivingEntries(t *testing.T) {
	c := New(Options{Radius: 1})
	c.Reset(space(5), 2)
	fill(t, c)

	files := space(5).Files()
	rebuilt := indexspace.New("/p", append([]indexspace.File{{Path: "/p/000a.png"}}, files...), nil)
	m := c.Rebase(rebuilt, 3)
	if diff := cmp.Diff([]int{2, 3, 4}, c.Snapshot().Targets); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if len(m.Targets) != 0 {
		t.Fatalf("all three files were resident, targets=%+v", m.Targets)
	}
	e, ok := c.Entry(3)
	if !ok || e.Path != "/p/002.png" {
		t.Fatalf("entry=%+v ok=%v", e, ok)
	}
}

func TestNeedsQuality_FansOutFromCurrent(t *testing.T) {
	c := New(Options{Radius: 2})
	gen, targets := c.Reset(space(10), 5)
	for _, tg := range targets {
		c.Publish(gen, tg, Entry{Quality: QualityFast})
	}
	var got []int
	for _, tg := range c.NeedsQuality() {
		got = append(got, tg.Index)
	}
	if diff := cmp.Diff([]int{5, 6, 4, 7, 3}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestMarkScroll_BumpsWithFlags(t *testing.T) {
	tok := epoch.New()
	c := New(Options{Radius: 1, Epoch: tok})
	gen, targets := c.Reset(space(5), 0)

	started := c.MarkScroll(true)
	if started != gen+1 || !tok.Scrolling() || tok.Settled() {
		t.Fatalf("start: gen=%d scrolling=%v settled=%v", started, tok.Scrolling(), tok.Settled())
	}
	if c.Publish(gen, targets[0], Entry{Quality: QualityFull}) {
		t.Fatal("pre-scroll task published after the scroll started")
	}
	if ended := c.MarkScroll(false); ended != started || tok.Scrolling() || !tok.Settled() {
		t.Fatalf("end: gen=%d scrolling=%v", ended, tok.Scrolling())
	}
}
