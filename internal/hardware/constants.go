package hardware

import "drone-facade/internal/types"

const (
	LedCount     = types.LedSlotCount
	LedBroadcast = types.LedBroadcast

	// MaxBulkLeds caps how many colors SetLeds applies.
	MaxBulkLeds = LedCount
)
