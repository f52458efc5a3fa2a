// Package linktest provides an in-memory link.Link for tests.
package linktest

import (
	"context"
	"sync"

	"drone-facade/internal/link"
	"drone-facade/internal/types"
)

type LedCall struct {
	Index   int
	R, G, B float64
}

// Fake records every call it receives. Err fields, when set, are returned
// by the matching method.
type Fake struct {
	mu sync.Mutex

	Calls   []string
	Leds    []LedCall
	Targets []types.Target
	Closed  bool

	Frame    []byte
	FrameErr error
	CmdErr   error
	Reached  bool

	// OnGoToPoint runs inside GoToPoint before it returns.
	OnGoToPoint func()
}

var _ link.Link = (*Fake)(nil)

func (f *Fake) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, name)
	return f.CmdErr
}

func (f *Fake) Arm() error     { return f.record("arm") }
func (f *Fake) Disarm() error  { return f.record("disarm") }
func (f *Fake) Takeoff() error { return f.record("takeoff") }
func (f *Fake) Land() error    { return f.record("land") }

func (f *Fake) GoToPoint(target types.Target) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, "goto")
	f.Targets = append(f.Targets, target)
	f.Reached = false
	err := f.CmdErr
	hook := f.OnGoToPoint
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *Fake) LedControl(index int, r, g, b float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "led")
	if f.CmdErr != nil {
		return f.CmdErr
	}
	f.Leds = append(f.Leds, LedCall{Index: index, R: r, G: g, B: b})
	return nil
}

func (f *Fake) GetRawVideoFrame() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "frame")
	if f.FrameErr != nil {
		return nil, f.FrameErr
	}
	return f.Frame, nil
}

func (f *Fake) PointReached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Reached
}

func (f *Fake) SetReached(v bool) {
	f.mu.Lock()
	f.Reached = v
	f.mu.Unlock()
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// CallCount returns how many times name was called.
func (f *Fake) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == name {
			n++
		}
	}
	return n
}

// LedCalls returns a copy of the recorded LED commands.
func (f *Fake) LedCalls() []LedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LedCall(nil), f.Leds...)
}

// Dialer returns a link.Dialer yielding f, or err when err is non-nil.
// Dials counts the attempts.
func Dialer(f *Fake, err error, dials *int) link.Dialer {
	var mu sync.Mutex
	return func(ctx context.Context) (link.Link, error) {
		mu.Lock()
		if dials != nil {
			*dials++
		}
		mu.Unlock()
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// Recorder collects diagnostic entries in memory.
type Recorder struct {
	mu      sync.Mutex
	Entries [][]string
}

func (r *Recorder) Log(messages ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, append([]string(nil), messages...))
}

// Has reports whether any entry starts with first.
func (r *Recorder) Has(first string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Entries {
		if len(e) > 0 && e[0] == first {
			return true
		}
	}
	return false
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Entries)
}
