package model

// Frame describes an image handed to the display, without the pixels.
type Frame struct {
	Index       int    `json:"index"`
	Total       int    `json:"total"`
	Path        string `json:"path"`
	Width       int    `json:"w,omitempty"`
	Height      int    `json:"h,omitempty"`
	Format      string `json:"format,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Fast        bool   `json:"fast,omitempty"`
	Transition  bool   `json:"transition,omitempty"`
	Forward     bool   `json:"forward,omitempty"`
	Unavailable bool   `json:"unavailable,omitempty"`
	Err         string `json:"err,omitempty"`
}

type Boundary struct {
	Index   int  `json:"index"`
	Forward bool `json:"forward"`
	Wrapped bool `json:"wrapped,omitempty"`
}

type Status struct {
	SessionID    string    `json:"session_id,omitempty"`
	Path         string    `json:"path"`
	Order        string    `json:"order"`
	Current      string    `json:"current,omitempty"`
	Index        int       `json:"index"`
	Total        int       `json:"total"`
	Cycle        bool      `json:"cycle"`
	Window       []int     `json:"window"`
	Quality      []string  `json:"quality"`
	Loaded       bool      `json:"loaded"`
	FullyLoaded  bool      `json:"fully_loaded"`
	Scroll       string    `json:"scroll"`
	Policy       string    `json:"policy"`
	Frames       uint64    `json:"frames"`
	Boundaries   uint64    `json:"boundaries"`
	Unavailable  uint64    `json:"unavailable"`
	Discarded    uint64    `json:"discarded"`
	Dropped      uint64    `json:"dropped"`
	Watching     bool      `json:"watching"`
	SlideShowMS  int64     `json:"slideshow_ms,omitempty"`
	LastFrame    *Frame    `json:"last_frame,omitempty"`
	LastBoundary *Boundary `json:"last_boundary,omitempty"`
	Err          string    `json:"err,omitempty"`
}

// Entry is one listed image.
type Entry struct {
	Index   int    `json:"index"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mtime"`
	Width   int    `json:"w,omitempty"`
	Height  int    `json:"h,omitempty"`
}
