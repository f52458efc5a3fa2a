package core

import (
	"context"
	"fmt"
	"time"

	"drone-facade/internal/link"
	"drone-facade/internal/messaging"
	"drone-facade/internal/types"
)

const redisConnectTimeout = 10 * time.Second

func (d *Drone) callbacks() messaging.Callbacks {
	return messaging.Callbacks{
		CommandCallback: d.handleCommandRequest,
		LedCallback:     d.handleLedRequest,
		GotoCallback:    d.handleGotoRequest,
	}
}

// handleCommandRequest handles drone commands from Redis
func (d *Drone) handleCommandRequest(cmd string) error {
	d.logger.Debugf("Handling command request: %s", cmd)
	switch cmd {
	case "arm":
		return d.command(cmd, link.Link.Arm)
	case "disarm":
		return d.command(cmd, link.Link.Disarm)
	case "takeoff":
		return d.command(cmd, link.Link.Takeoff)
	case "land":
		return d.command(cmd, link.Link.Land)
	case "connect":
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()
		if d.Connect(ctx) != types.StateConnected {
			return fmt.Errorf("connect: %w", types.ErrNotConnected)
		}
		return nil
	default:
		return fmt.Errorf("invalid command: %s", cmd)
	}
}

// handleLedRequest handles LED requests from Redis
func (d *Drone) handleLedRequest(index int, color types.Color) error {
	d.logger.Debugf("Handling LED request: %d %v", index, color)
	err := d.leds.SetLed(index, color)
	d.record("led", err)
	return err
}

// handleGotoRequest handles go-to-point requests from Redis
func (d *Drone) handleGotoRequest(target types.Target) error {
	d.logger.Debugf("Handling goto request: %s", messaging.FormatTarget(target))
	return d.goToPoint(target)
}
