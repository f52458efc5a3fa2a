package fsm

import (
	"github.com/looplab/fsm"
)

// NewDefinition creates the movement state machine, starting in idle.
func NewDefinition(actions Actions) *fsm.FSM {
	events := fsm.Events{
		// A new target replaces any outstanding one.
		{Name: EvRequest, Src: []string{StateIdle, StateArrived, StateRequested}, Dst: StateRequested},
		{Name: EvCancel, Src: []string{StateRequested}, Dst: StateIdle},

		{Name: EvArrive, Src: []string{StateRequested}, Dst: StateArrived},
		{Name: EvSettle, Src: []string{StateArrived}, Dst: StateIdle},
	}

	callbacks := fsm.Callbacks{
		"enter_" + StateRequested: WrapEvent(actions.EnterRequested),
		"enter_" + StateArrived:   WrapEvent(actions.EnterArrived),
		"enter_" + StateIdle:      WrapEvent(actions.EnterIdle),
	}

	return fsm.NewFSM(StateIdle, events, callbacks)
}
