// Package movement tracks whether the last commanded movement has
// finished. A poll loop reconciles the outstanding request with the
// vehicle's point-reached report.
package movement

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/looplab/fsm"

	movementfsm "drone-facade/internal/fsm"
	"drone-facade/internal/link"
	"drone-facade/internal/logger"
	"drone-facade/internal/types"
)

const DefaultPollInterval = 50 * time.Millisecond

// LinkRunner runs a function against the live vehicle link.
type LinkRunner interface {
	Do(fn func(link.Link) error) error
}

type Tracker struct {
	conn     LinkRunner
	interval time.Duration
	logger   *logger.Logger

	mu         sync.Mutex
	machine    *fsm.FSM
	requested  bool
	reached    bool
	generation uint64

	// OnChange, when set, receives every new snapshot. It is called
	// without the tracker lock held.
	OnChange func(types.MovementSnapshot)
}

var _ movementfsm.Actions = (*Tracker)(nil)

func NewTracker(conn LinkRunner, interval time.Duration, l *logger.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := &Tracker{
		conn:     conn,
		interval: interval,
		logger:   l.WithTag("movement"),
	}
	t.machine = movementfsm.NewDefinition(t)
	return t
}

// Request marks a movement as outstanding and runs send, which delivers
// the target to the vehicle. Both happen under the tracker lock so a poll
// can never pair the new request with a stale arrival. A failed send
// returns the tracker to idle unless an earlier movement is still
// outstanding, in which case that movement keeps the tracker requested.
func (t *Tracker) Request(send func() error) error {
	t.mu.Lock()
	wasRequested := t.requested
	t.generation++
	t.fire(movementfsm.EvRequest)
	// Re-requesting while requested is not a transition; reset by hand.
	t.requested, t.reached = true, false

	err := send()
	if err != nil && !wasRequested {
		t.fire(movementfsm.EvCancel)
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(snap)
	return err
}

// PollOnce samples point-reached once and settles an outstanding request
// when the vehicle reports arrival. It does nothing while idle or
// disconnected.
func (t *Tracker) PollOnce() {
	t.mu.Lock()
	gen, pending := t.generation, t.requested
	t.mu.Unlock()

	if !pending {
		return
	}

	var reached bool
	if err := t.conn.Do(func(l link.Link) error {
		reached = l.PointReached()
		return nil
	}); err != nil {
		t.logger.Debugf("Point-reached poll skipped: %v", err)
		return
	}
	if !reached {
		return
	}

	t.mu.Lock()
	if gen != t.generation || !t.requested {
		// A new target was sent while polling; this sample belongs to the old one.
		t.mu.Unlock()
		return
	}
	t.fire(movementfsm.EvArrive)
	t.fire(movementfsm.EvSettle)
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.logger.Infof("Target reached")
	t.publish(snap)
}

// Run polls until ctx is cancelled. One poll at a time, no retries.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.PollOnce()
		}
	}
}

// Snapshot returns the movement flags as one consistent read.
func (t *Tracker) Snapshot() types.MovementSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Moving reports whether a movement is outstanding and not yet reached.
func (t *Tracker) Moving() bool {
	return t.Snapshot().Moving()
}

// Current returns the state machine state.
func (t *Tracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.machine.Current()
}

func (t *Tracker) EnterRequested(ctx context.Context, e *fsm.Event) error {
	t.requested, t.reached = true, false
	return nil
}

func (t *Tracker) EnterArrived(ctx context.Context, e *fsm.Event) error {
	t.requested, t.reached = false, true
	return nil
}

func (t *Tracker) EnterIdle(ctx context.Context, e *fsm.Event) error {
	t.requested = false
	return nil
}

// fire sends event to the state machine. Caller holds t.mu.
func (t *Tracker) fire(event string) {
	err := t.machine.Event(context.Background(), event)
	if err == nil {
		return
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return
	}
	t.logger.Warnf("Movement event %s rejected in state %s: %v", event, t.machine.Current(), err)
}

func (t *Tracker) snapshotLocked() types.MovementSnapshot {
	return types.MovementSnapshot{Requested: t.requested, Reached: t.reached}
}

func (t *Tracker) publish(snap types.MovementSnapshot) {
	if t.OnChange != nil {
		t.OnChange(snap)
	}
}
