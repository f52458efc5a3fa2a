package types

import (
	"errors"
	"math"
	"time"
)

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnected    ConnectionState = "connected"
)

// LED addressing. Slots 0..LedSlotCount-1 are individually addressable,
// LedBroadcast applies a color to every slot at once.
const (
	LedSlotCount = 3
	LedBroadcast = 255

	ColorMin = 0.0
	ColorMax = 255.0
)

var (
	ErrNotConnected    = errors.New("drone not connected")
	ErrTransportDenied = errors.New("transport denied request")
	ErrInvalidLedIndex = errors.New("invalid led index")
	ErrInvalidLedColor = errors.New("invalid led color")
	ErrDecodeFailure   = errors.New("frame decode failure")
	ErrLinkLost        = errors.New("vehicle link lost")
)

type Color struct {
	R, G, B float64
}

// Valid reports whether every channel lies in [ColorMin, ColorMax].
func (c Color) Valid() bool {
	for _, v := range [...]float64{c.R, c.G, c.B} {
		if math.IsNaN(v) || v < ColorMin || v > ColorMax {
			return false
		}
	}
	return true
}

// ValidLedIndex reports whether idx names a slot or the broadcast index.
func ValidLedIndex(idx int) bool {
	return (idx >= 0 && idx < LedSlotCount) || idx == LedBroadcast
}

// Target is a go-to-point request in the local NED frame: position in
// meters, velocity in m/s, acceleration in m/s², Angle as yaw in radians.
// Every field is optional; nil leaves that component to the vehicle.
type Target struct {
	X, Y, Z    *float32
	VX, VY, VZ *float32
	AX, AY, AZ *float32
	Angle      *float32
}

// Float returns a pointer to v, for filling Target fields.
func Float(v float32) *float32 {
	return &v
}

// MovementSnapshot is one consistent read of the movement flags.
type MovementSnapshot struct {
	Requested bool // a movement was commanded and not yet confirmed
	Reached   bool // last poll saw the vehicle report arrival
}

// Moving holds while a request is outstanding and the vehicle has not
// reported arrival.
func (s MovementSnapshot) Moving() bool {
	return s.Requested && !s.Reached
}

type LogEntry struct {
	Time     time.Time
	Messages []string
}
