package fsm

import (
	"context"

	"github.com/looplab/fsm"
)

// Actions defines the state entry hooks of the movement state machine.
// The movement tracker implements this interface and keeps its flags in
// step with the current state.
type Actions interface {
	EnterRequested(ctx context.Context, e *fsm.Event) error
	EnterArrived(ctx context.Context, e *fsm.Event) error
	EnterIdle(ctx context.Context, e *fsm.Event) error
}

// WrapEvent adapts an error-returning hook to a looplab callback, storing
// the error on the event.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}
