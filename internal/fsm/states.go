package fsm

// Movement states
const (
	StateIdle      = "idle"      // no movement outstanding
	StateRequested = "requested" // target sent, waiting for the vehicle to report arrival
	StateArrived   = "arrived"   // arrival observed, request cleared
)

// Movement events
const (
	// Commands
	EvRequest = "request"
	EvCancel  = "cancel" // the target could not be delivered

	// Observations from the poll loop
	EvArrive = "arrive"
	EvSettle = "settle"
)
