package window

import "time"

// Actions performs transition side effects for one axis.
type Actions interface {
	MotorOpen(a Axis)
	MotorClose(a Axis)
	MotorStop(a Axis)
	Lockout(a Axis)
}

// AxisRuntime is the mutable per-axis record.
type AxisRuntime struct {
	State State
	// Expiry is the uptime at which the timer fires. Only valid when Armed.
	Expiry time.Duration
	Armed  bool
}

// Arm sets the timer to fire after d from now.
func (r *AxisRuntime) Arm(now, d time.Duration) {
	r.Expiry = now + d
	r.Armed = true
}

// Disarm clears the timer.
func (r *AxisRuntime) Disarm() {
	r.Expiry = 0
	r.Armed = false
}

// Fire runs one state machine step: look up the transition, perform its
// action and move to the next state.
func Fire(t *Table, rt *AxisRuntime, a Axis, e Event, acts Actions) Change {
	from := rt.State
	tr := t.Lookup(from, e)

	switch tr.Action {
	case ActionOpen:
		acts.MotorOpen(a)
	case ActionClose:
		acts.MotorClose(a)
	case ActionStop:
		acts.MotorStop(a)
	case ActionStopLockout:
		acts.MotorStop(a)
		acts.Lockout(a)
	}

	rt.State = tr.Next
	return Change{
		Axis:   a,
		Event:  e,
		From:   from,
		To:     tr.Next,
		Action: tr.Action,
	}
}
