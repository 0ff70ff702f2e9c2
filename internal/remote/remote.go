// Package remote defines the control commands accepted from the remote
// keypad bridge (MQTT) and the web page, and applies them to the window
// supervisor.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/vent-controller/internal/window"
)

// Op is a control operation.
type Op string

const (
	OpOpen   Op = "open"
	OpClose  Op = "close"
	OpCancel Op = "cancel"
	// OpLimits replaces the open/close thresholds of an axis.
	OpLimits Op = "limits"
	// OpTiming replaces the motor run and lockout durations. It applies
	// to both windows; Axis is ignored.
	OpTiming Op = "timing"
	// OpStall replaces the stall current cutoff of a driven axis.
	OpStall Op = "stall"
)

// Command is one request from a UI layer.
type Command struct {
	Axis window.Axis
	Op   Op

	// Open and Close are the new thresholds for OpLimits.
	Open  float64
	Close float64

	// Run and Lockout are the new durations for OpTiming. Zero leaves a
	// setting unchanged.
	Run     time.Duration
	Lockout time.Duration

	// Stall is the new cutoff for OpStall in raw ADC counts. Zero
	// disables stall detection.
	Stall int
}

// Parse builds a movement command from its string form.
func Parse(axis, op string) (Command, error) {
	a, ok := window.ParseAxis(axis)
	if !ok {
		return Command{}, fmt.Errorf("unknown axis %q", axis)
	}
	switch Op(op) {
	case OpOpen, OpClose, OpCancel:
	default:
		return Command{}, fmt.Errorf("unknown operation %q", op)
	}
	if !a.Driven() {
		return Command{}, fmt.Errorf("axis %s has no motor", a)
	}
	return Command{Axis: a, Op: Op(op)}, nil
}

// Timing builds an OpTiming command from duration strings such as "30s".
// An empty string leaves that setting unchanged; at least one is needed.
func Timing(run, lockout string) (Command, error) {
	if run == "" && lockout == "" {
		return Command{}, errors.New("timing command needs run or lockout")
	}
	cmd := Command{Op: OpTiming}
	var err error
	if run != "" {
		if cmd.Run, err = time.ParseDuration(run); err != nil {
			return Command{}, fmt.Errorf("run: %w", err)
		}
		if cmd.Run <= 0 {
			return Command{}, fmt.Errorf("run must be positive, got %v", cmd.Run)
		}
	}
	if lockout != "" {
		if cmd.Lockout, err = time.ParseDuration(lockout); err != nil {
			return Command{}, fmt.Errorf("lockout: %w", err)
		}
		if cmd.Lockout <= 0 {
			return Command{}, fmt.Errorf("lockout must be positive, got %v", cmd.Lockout)
		}
	}
	return cmd, nil
}

// Stall builds an OpStall command for a driven axis.
func Stall(axis string, cutoff int) (Command, error) {
	a, ok := window.ParseAxis(axis)
	if !ok {
		return Command{}, fmt.Errorf("unknown axis %q", axis)
	}
	if !a.Driven() {
		return Command{}, fmt.Errorf("axis %s has no motor", a)
	}
	if cutoff < 0 {
		return Command{}, fmt.Errorf("stall cutoff must not be negative, got %d", cutoff)
	}
	return Command{Axis: a, Op: OpStall, Stall: cutoff}, nil
}

type wireCommand struct {
	Axis    string   `json:"axis"`
	Op      string   `json:"op"`
	Open    *float64 `json:"open,omitempty"`
	Close   *float64 `json:"close,omitempty"`
	Run     string   `json:"run,omitempty"`
	Lockout string   `json:"lockout,omitempty"`
	Stall   *int     `json:"stall,omitempty"`
}

// Decode parses a JSON command:
//
//	{"axis":"low","op":"open"}
//	{"axis":"high","op":"limits","open":28,"close":20}
//	{"op":"timing","run":"40s","lockout":"1h"}
//	{"axis":"low","op":"stall","stall":600}
func Decode(payload []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(payload, &w); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	switch Op(w.Op) {
	case OpTiming:
		return Timing(w.Run, w.Lockout)
	case OpStall:
		if w.Stall == nil {
			return Command{}, errors.New("stall command needs stall")
		}
		return Stall(w.Axis, *w.Stall)
	case OpLimits:
	default:
		return Parse(w.Axis, w.Op)
	}

	a, ok := window.ParseAxis(w.Axis)
	if !ok {
		return Command{}, fmt.Errorf("unknown axis %q", w.Axis)
	}
	if w.Open == nil || w.Close == nil {
		return Command{}, fmt.Errorf("limits command needs open and close")
	}
	return Command{Axis: a, Op: OpLimits, Open: *w.Open, Close: *w.Close}, nil
}

// Controller is the manual control surface of the window supervisor.
type Controller interface {
	ManualOpen(a window.Axis) []window.Change
	ManualClose(a window.Axis) []window.Change
	ManualCancel(a window.Axis) []window.Change
}

// Apply forwards a movement command to the supervisor. Settings commands
// are not movements and return nil.
func Apply(c Controller, cmd Command) []window.Change {
	switch cmd.Op {
	case OpOpen:
		return c.ManualOpen(cmd.Axis)
	case OpClose:
		return c.ManualClose(cmd.Axis)
	case OpCancel:
		return c.ManualCancel(cmd.Axis)
	}
	return nil
}
