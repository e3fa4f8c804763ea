package explain

import "time"

// Explain receives diagnostic key/values and phase timings. Implementations
// must be safe for concurrent use.
type Explain interface {
	KV(key string, value any)
	Timer(name string) func()
}

type nop struct{}

func (nop) KV(string, any) {}
func (nop) Timer(string) func() { return func() {} }

func Nop() Explain { return nop{} }

// Or returns e, or a no-op when e is nil.
func Or(e Explain) Explain {
	if e == nil {
		return nop{}
	}
	return e
}

// Since records the elapsed time since start under key, in milliseconds.
func Since(e Explain, key string, start time.Time) {
	Or(e).KV(key, time.Since(start).Milliseconds())
}
