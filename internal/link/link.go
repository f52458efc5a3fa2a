package link

import (
	"context"

	"drone-facade/internal/types"
)

// Link is a live connection to the vehicle. Implementations return errors
// wrapping types.ErrTransportDenied when the vehicle refuses a request and
// types.ErrLinkLost when the transport is gone for good.
type Link interface {
	Arm() error
	Disarm() error
	Takeoff() error
	Land() error
	GoToPoint(target types.Target) error
	LedControl(index int, r, g, b float64) error

	// GetRawVideoFrame returns one encoded camera image.
	GetRawVideoFrame() ([]byte, error)

	// PointReached reports whether the vehicle arrived at the last target.
	PointReached() bool

	Close() error
}

// Dialer establishes a new Link.
type Dialer func(ctx context.Context) (Link, error)
