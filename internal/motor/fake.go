package motor

import (
	"fmt"
	"sync"

	"github.com/sweeney/vent-controller/internal/window"
)

// Call is one command accepted by the Fake driver.
type Call struct {
	Axis      window.Axis
	Direction window.Direction
}

// Fake is a test double that records relay changes.
type Fake struct {
	mu sync.Mutex

	// Calls contains every command that changed an output, in order.
	// Repeats of the current direction are not recorded.
	Calls []Call

	// Outputs is the current relay state per axis.
	Outputs [window.NumDriven]Relays

	// SetError, if set, will be returned by SetDirection.
	SetError error

	// Closed tracks if Close was called.
	Closed bool

	last tracker
}

// NewFake creates a Fake with every relay released.
func NewFake() *Fake {
	return &Fake{}
}

// SetDirection records the command.
func (f *Fake) SetDirection(a window.Axis, d window.Direction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !a.Driven() {
		return fmt.Errorf("axis %s has no motor", a)
	}
	if f.SetError != nil {
		return f.SetError
	}
	if !f.last.changed(a, d) {
		return nil
	}
	f.Calls = append(f.Calls, Call{Axis: a, Direction: d})
	f.Outputs[a] = RelaysFor(d)
	return nil
}

// Direction returns the last direction commanded on a.
func (f *Fake) Direction(a window.Axis) window.Direction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last.dirs[a]
}

// Close releases every relay.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Outputs = [window.NumDriven]Relays{}
	f.Closed = true
	return nil
}

// Reset clears recorded calls.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
	f.SetError = nil
	f.Closed = false
}
