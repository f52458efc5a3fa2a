package movement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	movementfsm "drone-facade/internal/fsm"
	"drone-facade/internal/link"
	"drone-facade/internal/link/linktest"
	"drone-facade/internal/logger"
	"drone-facade/internal/types"
)

// fakeRunner hands out a fixed link, or ErrNotConnected when it has none.
type fakeRunner struct {
	link  link.Link
	after func()
}

func (r *fakeRunner) Do(fn func(link.Link) error) error {
	if r.link == nil {
		return types.ErrNotConnected
	}
	err := fn(r.link)
	if r.after != nil {
		r.after()
	}
	return err
}

func newTestTracker(l link.Link) (*Tracker, *fakeRunner) {
	r := &fakeRunner{link: l}
	return NewTracker(r, time.Millisecond, logger.NewLogger(nil, logger.LogLevelNone)), r
}

func sendTo(f *linktest.Fake) func() error {
	return func() error { return f.GoToPoint(types.Target{X: types.Float(1)}) }
}

func TestIdleInitially(t *testing.T) {
	tr, _ := newTestTracker(&linktest.Fake{})

	if tr.Current() != movementfsm.StateIdle {
		t.Errorf("state = %s, want idle", tr.Current())
	}
	if tr.Moving() {
		t.Error("moving before any request")
	}
}

func TestRequestThenArrival(t *testing.T) {
	fake := &linktest.Fake{}
	tr, _ := newTestTracker(fake)

	if err := tr.Request(sendTo(fake)); err != nil {
		t.Fatalf("Request() = %v", err)
	}
	if tr.Current() != movementfsm.StateRequested || !tr.Moving() {
		t.Fatalf("after request: state=%s moving=%v", tr.Current(), tr.Moving())
	}

	tr.PollOnce()
	if !tr.Moving() {
		t.Fatal("arrival observed before the vehicle reported it")
	}

	fake.SetReached(true)
	tr.PollOnce()

	snap := tr.Snapshot()
	if snap.Requested || !snap.Reached || snap.Moving() {
		t.Errorf("after arrival: %+v", snap)
	}
	if tr.Current() != movementfsm.StateIdle {
		t.Errorf("state = %s, want idle", tr.Current())
	}
}

// "Moving" is requested AND NOT reached. The raw "reached AND requested"
// combination would report true only at the instant of arrival; callers
// needing that can read Snapshot directly.
func TestMovingPredicateIsRequestedAndNotReached(t *testing.T) {
	cases := []struct {
		snap types.MovementSnapshot
		want bool
	}{
		{types.MovementSnapshot{Requested: false, Reached: false}, false},
		{types.MovementSnapshot{Requested: true, Reached: false}, true},
		{types.MovementSnapshot{Requested: true, Reached: true}, false},
		{types.MovementSnapshot{Requested: false, Reached: true}, false},
	}
	for _, c := range cases {
		if got := c.snap.Moving(); got != c.want {
			t.Errorf("%+v.Moving() = %v, want %v", c.snap, got, c.want)
		}
	}
}

func TestFailedSendReturnsToIdle(t *testing.T) {
	fake := &linktest.Fake{}
	tr, _ := newTestTracker(fake)
	sendErr := errors.New("denied")

	err := tr.Request(func() error { return sendErr })
	if !errors.Is(err, sendErr) {
		t.Fatalf("Request() = %v", err)
	}
	if tr.Moving() || tr.Current() != movementfsm.StateIdle {
		t.Errorf("after failed send: state=%s moving=%v", tr.Current(), tr.Moving())
	}
}

func TestRerequestWhileMoving(t *testing.T) {
	fake := &linktest.Fake{}
	tr, _ := newTestTracker(fake)

	_ = tr.Request(sendTo(fake))
	_ = tr.Request(sendTo(fake))

	if !tr.Moving() || tr.Current() != movementfsm.StateRequested {
		t.Errorf("state=%s moving=%v", tr.Current(), tr.Moving())
	}
	if n := fake.CallCount("goto"); n != 2 {
		t.Errorf("goto calls = %d, want 2", n)
	}
}

func TestDeniedRerequestKeepsMoving(t *testing.T) {
	fake := &linktest.Fake{}
	tr, _ := newTestTracker(fake)

	if err := tr.Request(sendTo(fake)); err != nil {
		t.Fatalf("first Request() = %v", err)
	}
	denied := fmt.Errorf("go to point: %w", types.ErrTransportDenied)
	if err := tr.Request(func() error { return denied }); !errors.Is(err, types.ErrTransportDenied) {
		t.Fatalf("second Request() = %v", err)
	}

	// The first target is still being flown to.
	if !tr.Moving() || tr.Current() != movementfsm.StateRequested {
		t.Fatalf("after denied re-request: state=%s moving=%v", tr.Current(), tr.Moving())
	}

	fake.SetReached(true)
	tr.PollOnce()
	if tr.Moving() || tr.Current() != movementfsm.StateIdle || !tr.Snapshot().Reached {
		t.Errorf("after arrival: state=%s snap=%+v", tr.Current(), tr.Snapshot())
	}
}

func TestStaleArrivalIsDiscarded(t *testing.T) {
	fake := &linktest.Fake{}
	tr, runner := newTestTracker(fake)

	_ = tr.Request(sendTo(fake))
	fake.SetReached(true)

	// A new target goes out between the point-reached sample and its use.
	runner.after = func() {
		runner.after = nil
		_ = tr.Request(func() error { return nil })
	}
	tr.PollOnce()

	if !tr.Moving() {
		t.Fatal("arrival for the old target settled the new one")
	}
}

func TestPollWhileDisconnected(t *testing.T) {
	fake := &linktest.Fake{}
	tr, runner := newTestTracker(fake)
	_ = tr.Request(sendTo(fake))

	runner.link = nil
	tr.PollOnce()

	if !tr.Moving() {
		t.Error("request cleared without an arrival report")
	}
}

func TestOnChange(t *testing.T) {
	fake := &linktest.Fake{}
	tr, _ := newTestTracker(fake)

	var snaps []types.MovementSnapshot
	tr.OnChange = func(s types.MovementSnapshot) { snaps = append(snaps, s) }

	_ = tr.Request(sendTo(fake))
	fake.SetReached(true)
	tr.PollOnce()

	if len(snaps) != 2 || !snaps[0].Moving() || snaps[1].Moving() {
		t.Errorf("snapshots = %+v", snaps)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	fake := &linktest.Fake{}
	tr, _ := newTestTracker(fake)
	_ = tr.Request(sendTo(fake))
	fake.SetReached(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for tr.Moving() {
		select {
		case <-deadline:
			t.Fatal("loop never observed arrival")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
