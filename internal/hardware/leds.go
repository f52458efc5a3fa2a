package hardware

import (
	"errors"
	"fmt"
	"sync"

	"drone-facade/internal/diaglog"
	"drone-facade/internal/link"
	"drone-facade/internal/logger"
	"drone-facade/internal/types"
)

// Diagnostics receives entries for the diagnostic log.
type Diagnostics interface {
	Log(messages ...string)
}

// LinkRunner runs a function against the live vehicle link.
type LinkRunner interface {
	Do(fn func(link.Link) error) error
}

// LedController validates LED commands and forwards them to the vehicle.
// It remembers the last color applied to each slot.
type LedController struct {
	conn   LinkRunner
	diag   Diagnostics
	logger *logger.Logger

	lock  sync.Mutex
	slots [LedCount]types.Color
}

func NewLedController(conn LinkRunner, diag Diagnostics, l *logger.Logger) *LedController {
	return &LedController{
		conn:   conn,
		diag:   diag,
		logger: l.WithTag("LED"),
	}
}

// SetLed sets one slot, or every slot for LedBroadcast. Invalid indices
// and colors are logged and never reach the vehicle.
func (c *LedController) SetLed(index int, color types.Color) error {
	if !types.ValidLedIndex(index) {
		c.logger.Warnf("Rejected LED index %d", index)
		c.diag.Log(diaglog.MsgLedIncorrectIndex...)
		return fmt.Errorf("%w: %d", types.ErrInvalidLedIndex, index)
	}
	if !color.Valid() {
		c.logger.Warnf("Rejected LED color %v for index %d", color, index)
		c.diag.Log(diaglog.MsgLedIncorrectColor...)
		return fmt.Errorf("%w: %v", types.ErrInvalidLedColor, color)
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	err := c.conn.Do(func(l link.Link) error {
		return l.LedControl(index, color.R, color.G, color.B)
	})
	if err != nil {
		return fmt.Errorf("set led %d: %w", index, err)
	}

	if index == LedBroadcast {
		for i := range c.slots {
			c.slots[i] = color
		}
	} else {
		c.slots[index] = color
	}
	c.logger.Debugf("LED %d set to %v", index, color)
	return nil
}

// SetLeds applies colors to slots 0, 1, 2 in order. Colors beyond the
// third are ignored. Every slot is attempted; the errors are joined.
func (c *LedController) SetLeds(colors []types.Color) error {
	if len(colors) > MaxBulkLeds {
		colors = colors[:MaxBulkLeds]
	}

	var errs []error
	for i, color := range colors {
		if err := c.SetLed(i, color); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Colors returns the last color applied to each slot.
func (c *LedController) Colors() [LedCount]types.Color {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.slots
}
