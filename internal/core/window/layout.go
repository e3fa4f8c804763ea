package window

import "imgview/internal/core/indexspace"

// Width is the slot count for a preload radius.
func Width(radius int) int {
	if radius < 0 {
		radius = 0
	}
	return 2*radius + 1
}

// Layout maps every slot to a file index for the window centred on center.
// With cycling and n >= W the window wraps around the list and the current
// file sits in slot radius. Otherwise the window is clamped to the list:
// it starts at clamp(center-radius, 0, max(0, n-W)) and slots past the end
// hold -1. The second result is the slot of center.
func Layout(center, n, radius int, cycle bool) ([]int, int) {
	w := Width(radius)
	out := make([]int, w)
	if n <= 0 {
		for i := range out {
			out[i] = -1
		}
		return out, 0
	}
	center = indexspace.Clamp(center, n)

	if cycle && n >= w {
		for i := range out {
			out[i] = indexspace.Wrap(center-radius+i, n)
		}
		return out, radius
	}

	start := center - radius
	if start > n-w {
		start = n - w
	}
	if start < 0 {
		start = 0
	}
	for i := range out {
		if idx := start + i; idx < n {
			out[i] = idx
		} else {
			out[i] = -1
		}
	}
	return out, center - start
}
