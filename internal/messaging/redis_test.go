package messaging

import (
	"errors"
	"testing"

	"drone-facade/internal/logger"
	"drone-facade/internal/types"
)

func TestParseLedCommand(t *testing.T) {
	tests := []struct {
		value     string
		wantIndex int
		wantColor types.Color
		wantErr   bool
	}{
		{"0:255:0:0", 0, types.Color{R: 255}, false},
		{"255:1.5:2:3", 255, types.Color{R: 1.5, G: 2, B: 3}, false},
		// Out of range values parse; the controller rejects them.
		{"7:300:0:0", 7, types.Color{R: 300}, false},
		{"", 0, types.Color{}, true},
		{"1:2:3", 0, types.Color{}, true},
		{"a:1:2:3", 0, types.Color{}, true},
		{"1:x:2:3", 0, types.Color{}, true},
		{"1:2:3:4:5", 0, types.Color{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			index, color, err := ParseLedCommand(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if index != tt.wantIndex || color != tt.wantColor {
				t.Errorf("got %d %v, want %d %v", index, color, tt.wantIndex, tt.wantColor)
			}
		})
	}
}

func TestParseGotoCommand(t *testing.T) {
	target, err := ParseGotoCommand("1.5:-2:0")
	if err != nil {
		t.Fatalf("ParseGotoCommand() = %v", err)
	}
	if target.X == nil || *target.X != 1.5 || *target.Y != -2 || *target.Z != 0 {
		t.Errorf("target = %s", FormatTarget(target))
	}
	if target.VX != nil || target.Angle != nil {
		t.Error("unexpected non-position fields")
	}

	partial, err := ParseGotoCommand("::3")
	if err != nil {
		t.Fatalf("ParseGotoCommand(::3) = %v", err)
	}
	if partial.X != nil || partial.Y != nil || partial.Z == nil || *partial.Z != 3 {
		t.Errorf("partial = %s", FormatTarget(partial))
	}

	for _, bad := range []string{"", "1:2", "1:2:3:4", "a:b:c"} {
		if _, err := ParseGotoCommand(bad); err == nil {
			t.Errorf("ParseGotoCommand(%q) accepted", bad)
		}
	}
}

func TestFormatTarget(t *testing.T) {
	target := types.Target{X: types.Float(1), Z: types.Float(-0.5)}
	if got := FormatTarget(target); got != "1::-0.5" {
		t.Errorf("FormatTarget() = %q", got)
	}
}

func TestHandlersDispatch(t *testing.T) {
	var gotCmd string
	var gotIndex int
	var gotTarget types.Target

	r := NewRedisClient("127.0.0.1:0", logger.NewLogger(nil, logger.LogLevelNone), Callbacks{
		CommandCallback: func(c string) error { gotCmd = c; return nil },
		LedCallback:     func(i int, _ types.Color) error { gotIndex = i; return nil },
		GotoCallback:    func(t types.Target) error { gotTarget = t; return nil },
	})
	defer r.client.Close()

	if err := r.handleCommand("takeoff"); err != nil || gotCmd != "takeoff" {
		t.Errorf("handleCommand(takeoff) = %v, got %q", err, gotCmd)
	}
	if err := r.handleCommand("flip"); err == nil {
		t.Error("handleCommand(flip) accepted")
	}
	if err := r.handleLedCommand("2:1:1:1"); err != nil || gotIndex != 2 {
		t.Errorf("handleLedCommand() = %v, index %d", err, gotIndex)
	}
	if err := r.handleGotoCommand("1:1:1"); err != nil || gotTarget.X == nil {
		t.Errorf("handleGotoCommand() = %v", err)
	}

	wantErr := errors.New("busy")
	r.callbacks.CommandCallback = func(string) error { return wantErr }
	if err := r.handleCommand("land"); !errors.Is(err, wantErr) {
		t.Errorf("callback error not returned: %v", err)
	}
}

func TestHandlersWithoutCallbacks(t *testing.T) {
	r := NewRedisClient("127.0.0.1:0", logger.NewLogger(nil, logger.LogLevelNone), Callbacks{})
	defer r.client.Close()

	if err := r.handleCommand("nonsense"); err != nil {
		t.Errorf("handleCommand without callback = %v", err)
	}
	if err := r.handleLedCommand("bad"); err != nil {
		t.Errorf("handleLedCommand without callback = %v", err)
	}
}
