package ivd

import "encoding/json"

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParse          = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServer         = -32000
)

// SessionOpenParams opens Path (a folder or an image in one). Unset
// fields fall back to the daemon's config.
type SessionOpenParams struct {
	Path         string `json:"path"`
	Sort         string `json:"sort,omitempty"`
	Cycle        *bool  `json:"cycle,omitempty"`
	Recursive    *bool  `json:"recursive,omitempty"`
	Radius       int    `json:"radius,omitempty"`
	Workers      int    `json:"workers,omitempty"`
	ScrollPolicy string `json:"scroll_policy,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	// Wait blocks the reply until the initial load has settled.
	Wait bool `json:"wait,omitempty"`
}

type SessionParams struct {
	SessionID string `json:"session_id"`
}

type NavParams struct {
	SessionID string `json:"session_id"`
	Fast      bool   `json:"fast,omitempty"`
	Wait      bool   `json:"wait,omitempty"`
}

type JumpParams struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
	Wait      bool   `json:"wait,omitempty"`
}

type StepParams struct {
	SessionID string `json:"session_id"`
	// Delta of zero pages forward by the configured step.
	Delta int  `json:"delta"`
	Wait  bool `json:"wait,omitempty"`
}

type ScrollTickParams struct {
	SessionID string `json:"session_id"`
	Forward   bool   `json:"forward"`
	// Ticks repeats the tick; defaults to 1.
	Ticks int `json:"ticks,omitempty"`
	// Settle ends the gesture right away instead of waiting for the timer.
	Settle bool `json:"settle,omitempty"`
	Wait   bool `json:"wait,omitempty"`
}

type ResizeParams struct {
	SessionID string `json:"session_id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Wait      bool   `json:"wait,omitempty"`
}

type SortSetParams struct {
	SessionID string `json:"session_id"`
	Sort      string `json:"sort"`
	Wait      bool   `json:"wait,omitempty"`
}

type ScrollPolicyParams struct {
	SessionID string `json:"session_id"`
	Policy    string `json:"policy"`
}

type SlideShowParams struct {
	SessionID string `json:"session_id"`
	// IntervalMS starts (or retimes) the show; zero stops it unless Toggle
	// is set, which flips it at the configured interval.
	IntervalMS int  `json:"interval_ms,omitempty"`
	Toggle     bool `json:"toggle,omitempty"`
}

type WatchStartParams struct {
	SessionID  string `json:"session_id"`
	DebounceMS int    `json:"debounce_ms,omitempty"`
}

type WatchStatusResult struct {
	Running bool `json:"running"`
}

type SessionOpenResult struct {
	SessionID string `json:"session_id"`
}
