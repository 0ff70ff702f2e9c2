// Package window contains the vent window motor state machine and the
// supervisor that drives it. This package has NO hardware dependencies:
// motors, temperature limits, stall currents and time are all injected.
package window

import "time"

// Axis identifies a temperature sensor and, for Low and High, the window
// motor it controls.
type Axis int

const (
	AxisLow  Axis = 0
	AxisHigh Axis = 1
	// AxisOut is the outside sensor. It is monitored but never driven.
	AxisOut Axis = 2
)

const (
	// NumDriven is the number of motorised axes.
	NumDriven = 2
	// NumAxes counts every sensor axis.
	NumAxes = 3
)

// Axes lists every sensor axis in display order.
var Axes = []Axis{AxisLow, AxisHigh, AxisOut}

// Driven reports whether the axis has a motor.
func (a Axis) Driven() bool {
	return a == AxisLow || a == AxisHigh
}

func (a Axis) String() string {
	switch a {
	case AxisLow:
		return "low"
	case AxisHigh:
		return "high"
	case AxisOut:
		return "out"
	}
	return "unknown"
}

// ParseAxis converts "low", "high" or "out" to an Axis.
func ParseAxis(s string) (Axis, bool) {
	for _, a := range Axes {
		if a.String() == s {
			return a, true
		}
	}
	return 0, false
}

// State is the position/mode of one window.
type State int

const (
	ManualOpening State = iota
	ManualClosing
	ManualOpen
	ManualClosed
	AutoOpening
	AutoClosing
	AutoOpen
	AutoClosed

	numStates
)

var stateNames = [numStates]string{
	ManualOpening: "MANUAL_OPENING",
	ManualClosing: "MANUAL_CLOSING",
	ManualOpen:    "MANUAL_OPEN",
	ManualClosed:  "MANUAL_CLOSED",
	AutoOpening:   "AUTO_OPENING",
	AutoClosing:   "AUTO_CLOSING",
	AutoOpen:      "AUTO_OPEN",
	AutoClosed:    "AUTO_CLOSED",
}

func (s State) String() string {
	if s < 0 || s >= numStates {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Moving reports whether the motor is energised in this state.
func (s State) Moving() bool {
	switch s {
	case ManualOpening, ManualClosing, AutoOpening, AutoClosing:
		return true
	}
	return false
}

// Manual reports whether the state belongs to the manual bucket.
func (s State) Manual() bool {
	return s <= ManualClosed
}

// Direction returns the motor direction implied by the state.
func (s State) Direction() Direction {
	switch s {
	case ManualOpening, AutoOpening:
		return Opening
	case ManualClosing, AutoClosing:
		return Closing
	}
	return Stopped
}

// Event is an input to the state machine.
type Event int

const (
	TempAboveUpper Event = iota
	TempBelowLower
	ManualOpenRequest
	ManualCloseRequest
	ManualCancelRequest
	Timeout

	numEvents
)

var eventNames = [numEvents]string{
	TempAboveUpper:      "TEMP_ABOVE_UPPER",
	TempBelowLower:      "TEMP_BELOW_LOWER",
	ManualOpenRequest:   "MANUAL_OPEN_REQUEST",
	ManualCloseRequest:  "MANUAL_CLOSE_REQUEST",
	ManualCancelRequest: "MANUAL_CANCEL_REQUEST",
	Timeout:             "TIMEOUT",
}

func (e Event) String() string {
	if e < 0 || e >= numEvents {
		return "UNKNOWN"
	}
	return eventNames[e]
}

// Direction is the commanded motor output for one axis.
type Direction int

const (
	Stopped Direction = iota
	Opening
	Closing
)

func (d Direction) String() string {
	switch d {
	case Opening:
		return "OPENING"
	case Closing:
		return "CLOSING"
	}
	return "STOPPED"
}

// Change records a single state machine step.
type Change struct {
	Timestamp time.Time
	Axis      Axis
	Event     Event
	From      State
	To        State
	Action    Action
}

// Changed reports whether the step did anything observable.
func (c Change) Changed() bool {
	return c.From != c.To || c.Action != ActionNone
}
