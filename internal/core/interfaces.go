package core

import (
	"drone-facade/internal/messaging"
	"drone-facade/internal/types"
)

// MessagingClient defines the Redis operations needed by Drone
type MessagingClient interface {
	SetCallbacks(callbacks messaging.Callbacks)
	Connect() error
	StartListening() error
	Close() error

	PublishDroneState(state types.ConnectionState) error
	PublishMovement(snapshot types.MovementSnapshot) error
	PublishTarget(target types.Target) error
}

var _ MessagingClient = (*messaging.RedisClient)(nil)
