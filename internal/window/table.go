package window

import "fmt"

// Action tags the side effect attached to a transition.
type Action int

const (
	ActionNone Action = iota
	ActionOpen
	ActionClose
	ActionStop
	// ActionStopLockout stops the motor and arms the lockout timer.
	ActionStopLockout
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "motor:open"
	case ActionClose:
		return "motor:close"
	case ActionStop:
		return "motor:stop"
	case ActionStopLockout:
		return "motor:stop,lockout"
	}
	return "none"
}

// CancelPolicy selects how a manual cancel treats an axis that is moving
// under automatic control.
type CancelPolicy string

const (
	// CancelHold ignores cancel while the window is moving automatically.
	CancelHold CancelPolicy = "hold"
	// CancelStop stops the motor and settles in the matching auto state.
	CancelStop CancelPolicy = "stop"
)

// ParseCancelPolicy validates a policy name. Empty means CancelHold.
func ParseCancelPolicy(s string) (CancelPolicy, error) {
	switch CancelPolicy(s) {
	case "", CancelHold:
		return CancelHold, nil
	case CancelStop:
		return CancelStop, nil
	}
	return "", fmt.Errorf("unknown cancel policy %q (want hold or stop)", s)
}

// Transition is one table cell.
type Transition struct {
	Next   State
	Action Action
}

// Table maps (State, Event) to a Transition. It is filled once by NewTable
// and only read afterwards, so one Table may be shared by every axis.
type Table struct {
	cells [numStates][numEvents]Transition
}

func stay(s State) Transition         { return Transition{Next: s} }
func to(s State, a Action) Transition { return Transition{Next: s, Action: a} }

// NewTable builds the transition table for the given cancel policy.
func NewTable(policy CancelPolicy) *Table {
	t := &Table{}

	// Columns: TempAboveUpper, TempBelowLower, ManualOpenRequest,
	// ManualCloseRequest, ManualCancelRequest, Timeout.
	t.cells = [numStates][numEvents]Transition{
		ManualOpening: {
			stay(ManualOpening),
			stay(ManualOpening),
			stay(ManualOpening),
			to(ManualClosing, ActionClose),
			to(ManualOpen, ActionStopLockout),
			to(ManualOpen, ActionStopLockout),
		},
		ManualClosing: {
			stay(ManualClosing),
			stay(ManualClosing),
			to(ManualOpening, ActionOpen),
			stay(ManualClosing),
			to(ManualClosed, ActionStopLockout),
			to(ManualClosed, ActionStopLockout),
		},
		ManualOpen: {
			stay(ManualOpen),
			stay(ManualOpen),
			stay(ManualOpen),
			to(ManualClosing, ActionClose),
			stay(ManualOpen),
			to(AutoOpen, ActionNone),
		},
		ManualClosed: {
			stay(ManualClosed),
			stay(ManualClosed),
			to(ManualOpening, ActionOpen),
			stay(ManualClosed),
			stay(ManualClosed),
			to(AutoClosed, ActionNone),
		},
		AutoOpening: {
			stay(AutoOpening),
			to(AutoClosing, ActionClose),
			stay(AutoOpening),
			to(ManualClosing, ActionClose),
			stay(AutoOpening),
			to(AutoOpen, ActionStop),
		},
		AutoClosing: {
			to(AutoOpening, ActionOpen),
			stay(AutoClosing),
			to(ManualOpening, ActionOpen),
			stay(AutoClosing),
			stay(AutoClosing),
			to(AutoClosed, ActionStop),
		},
		AutoOpen: {
			stay(AutoOpen),
			to(AutoClosing, ActionClose),
			stay(AutoOpen),
			to(ManualClosing, ActionClose),
			stay(AutoOpen),
			stay(AutoOpen),
		},
		AutoClosed: {
			to(AutoOpening, ActionOpen),
			stay(AutoClosed),
			to(ManualOpening, ActionOpen),
			stay(AutoClosed),
			stay(AutoClosed),
			stay(AutoClosed),
		},
	}

	if policy == CancelStop {
		t.cells[AutoOpening][ManualCancelRequest] = to(AutoOpen, ActionStop)
		t.cells[AutoClosing][ManualCancelRequest] = to(AutoClosed, ActionStop)
	}

	return t
}

// Lookup returns the transition for a state and event.
// Out-of-range inputs leave the state unchanged.
func (t *Table) Lookup(s State, e Event) Transition {
	if s < 0 || s >= numStates || e < 0 || e >= numEvents {
		return stay(s)
	}
	return t.cells[s][e]
}
