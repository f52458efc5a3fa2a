package diaglog

// Entries written for recovered failures.
var (
	MsgDisconnected = []string{
		"Drone is not connected.",
		"Connect to drone Wi-Fi and call Connect()",
	}
	MsgFrameDenied      = []string{"Camera frame getting denied"}
	MsgFrameUndecodable = []string{"Camera frame could not be decoded"}
	MsgLedIncorrectIndex = []string{
		"Incorrect led index or color",
		"Led index must be 0, 1, 2, or 255 for set all led",
	}
	MsgLedIncorrectColor = []string{
		"Incorrect led color format",
		"Color must have format [r, g, b], when each item is float in range from 0 to 255.0",
	}
)
