package window

import "time"

// MotorDriver sets the output direction of one axis motor.
// Implementations must treat a repeat of the current direction as a no-op.
type MotorDriver interface {
	SetDirection(a Axis, d Direction) error
}

// LimitSource reports the current temperature and the open/close thresholds
// for an axis. ok is false when the axis has no usable reading.
type LimitSource interface {
	Limits(a Axis) (now, openAt, closeAt float64, ok bool)
}

// CurrentSource reports the raw motor current sample for an axis.
type CurrentSource interface {
	Current(a Axis) int
}

// Clock is a monotonic uptime source.
type Clock interface {
	Now() time.Duration
}

// Settings exposes the live tuning values. They are read on every use so
// changes made by the UI take effect without a restart.
type Settings interface {
	RunDuration() time.Duration
	LockoutDuration() time.Duration
	StallCutoff(a Axis) int
}

// Deps bundles the collaborators of a Supervisor.
type Deps struct {
	Table    *Table
	Motor    MotorDriver
	Limits   LimitSource
	Currents CurrentSource // optional; nil disables stall detection
	Clock    Clock
	Settings Settings

	// Wall stamps Change records. Defaults to time.Now.
	Wall func() time.Time

	// OnMotorError is called when the driver rejects a command.
	OnMotorError func(a Axis, d Direction, err error)
}

// Supervisor owns the two driven axes and runs their state machines.
// It is not safe for concurrent use; callers serialise access.
type Supervisor struct {
	deps Deps
	axes [NumDriven]AxisRuntime

	changes     []Change
	motorErrors int
}

// New creates a Supervisor with both windows assumed closed and both motors
// commanded off.
func New(deps Deps) *Supervisor {
	if deps.Table == nil {
		deps.Table = NewTable(CancelHold)
	}
	if deps.Wall == nil {
		deps.Wall = time.Now
	}
	s := &Supervisor{deps: deps}
	for i := range s.axes {
		s.axes[i] = AxisRuntime{State: AutoClosed}
		s.drive(Axis(i), Stopped)
	}
	return s
}

// Tick evaluates temperature, stall current and timers for each driven axis
// and returns the steps that changed something.
func (s *Supervisor) Tick() []Change {
	s.changes = nil
	for i := range s.axes {
		a := Axis(i)
		rt := &s.axes[i]

		if now, up, down, ok := s.deps.Limits.Limits(a); ok {
			if now >= up {
				s.fire(a, TempAboveUpper)
			} else if now <= down {
				s.fire(a, TempBelowLower)
			}
		}

		if s.stalled(a) {
			rt.Disarm()
			s.fire(a, Timeout)
		}

		if rt.Armed && s.deps.Clock.Now() > rt.Expiry {
			rt.Disarm()
			s.fire(a, Timeout)
		}
	}
	return s.changes
}

func (s *Supervisor) stalled(a Axis) bool {
	if s.deps.Currents == nil || !s.axes[a].State.Moving() {
		return false
	}
	cutoff := s.deps.Settings.StallCutoff(a)
	if cutoff <= 0 {
		return false
	}
	return s.deps.Currents.Current(a) > cutoff
}

// ManualOpen requests the window to open under manual control.
func (s *Supervisor) ManualOpen(a Axis) []Change {
	return s.inject(a, ManualOpenRequest)
}

// ManualClose requests the window to close under manual control.
func (s *Supervisor) ManualClose(a Axis) []Change {
	return s.inject(a, ManualCloseRequest)
}

// ManualCancel stops a manual movement.
func (s *Supervisor) ManualCancel(a Axis) []Change {
	return s.inject(a, ManualCancelRequest)
}

func (s *Supervisor) inject(a Axis, e Event) []Change {
	s.changes = nil
	if !a.Driven() {
		return nil
	}
	s.fire(a, e)
	return s.changes
}

// IsIdle reports whether the axis is not in a manual movement.
// The outside axis is always idle.
func (s *Supervisor) IsIdle(a Axis) bool {
	if !a.Driven() {
		return true
	}
	st := s.axes[a].State
	return st != ManualOpening && st != ManualClosing
}

// CurrentState returns the state of a driven axis. The outside axis reports
// AutoClosed.
func (s *Supervisor) CurrentState(a Axis) State {
	if !a.Driven() {
		return AutoClosed
	}
	return s.axes[a].State
}

// Expiry returns the armed timer deadline for an axis.
func (s *Supervisor) Expiry(a Axis) (time.Duration, bool) {
	if !a.Driven() {
		return 0, false
	}
	rt := s.axes[a]
	return rt.Expiry, rt.Armed
}

// MotorErrors returns the number of rejected motor commands since start.
func (s *Supervisor) MotorErrors() int {
	return s.motorErrors
}

// StopAll de-energises every motor without changing state. Used at shutdown.
func (s *Supervisor) StopAll() {
	for i := range s.axes {
		s.drive(Axis(i), Stopped)
	}
}

func (s *Supervisor) fire(a Axis, e Event) {
	c := Fire(s.deps.Table, &s.axes[a], a, e, s)
	if c.Changed() {
		c.Timestamp = s.deps.Wall()
		s.changes = append(s.changes, c)
	}
}

func (s *Supervisor) drive(a Axis, d Direction) {
	if err := s.deps.Motor.SetDirection(a, d); err != nil {
		s.motorErrors++
		if s.deps.OnMotorError != nil {
			s.deps.OnMotorError(a, d, err)
		}
	}
}

// MotorOpen implements Actions.
func (s *Supervisor) MotorOpen(a Axis) {
	s.axes[a].Arm(s.deps.Clock.Now(), s.deps.Settings.RunDuration())
	s.drive(a, Opening)
}

// MotorClose implements Actions.
func (s *Supervisor) MotorClose(a Axis) {
	s.axes[a].Arm(s.deps.Clock.Now(), s.deps.Settings.RunDuration())
	s.drive(a, Closing)
}

// MotorStop implements Actions.
func (s *Supervisor) MotorStop(a Axis) {
	s.axes[a].Disarm()
	s.drive(a, Stopped)
}

// Lockout implements Actions.
func (s *Supervisor) Lockout(a Axis) {
	s.axes[a].Arm(s.deps.Clock.Now(), s.deps.Settings.LockoutDuration())
}
