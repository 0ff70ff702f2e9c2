// Package motor drives the window motor relays.
//
// Each window has two relays: a direction relay and a power relay. The
// direction relay is energised for opening and released for closing; the
// power relay switches the motor supply. Both relay boards are active low.
// The real drivers use the Linux GPIO character device (gpiocdev) or
// /dev/gpiomem (rpio). The fake driver records commands for tests.
package motor

import (
	"fmt"

	"github.com/sweeney/vent-controller/internal/config"
	"github.com/sweeney/vent-controller/internal/window"
)

// Driver is a window.MotorDriver that also owns hardware resources.
type Driver interface {
	window.MotorDriver

	// Close de-energises every relay and releases the hardware.
	Close() error
}

// Relays is the output level of one axis.
type Relays struct {
	Direction bool // true = energised (opening)
	Power     bool // true = energised (motor running)
}

// RelaysFor maps a direction to relay levels.
func RelaysFor(d window.Direction) Relays {
	switch d {
	case window.Opening:
		return Relays{Direction: true, Power: true}
	case window.Closing:
		return Relays{Direction: false, Power: true}
	}
	return Relays{}
}

// level converts a logical relay state to an active-low line value.
func level(on bool) int {
	if on {
		return 0
	}
	return 1
}

// New creates the driver selected by cfg.Type.
func New(cfg config.MotorConfig) (Driver, error) {
	switch cfg.Type {
	case "gpiocdev":
		return NewGPIO(cfg)
	case "rpio":
		return NewRPIO(cfg)
	case "none", "":
		return &Noop{}, nil
	}
	return nil, fmt.Errorf("unknown motor driver %q", cfg.Type)
}

// pins returns the configured relay lines for a driven axis.
func pins(cfg config.MotorConfig, a window.Axis) (config.AxisPins, error) {
	switch a {
	case window.AxisLow:
		return cfg.Low, nil
	case window.AxisHigh:
		return cfg.High, nil
	}
	return config.AxisPins{}, fmt.Errorf("axis %s has no motor", a)
}

// tracker remembers the last commanded direction so repeats are skipped.
type tracker struct {
	dirs  [window.NumDriven]window.Direction
	known [window.NumDriven]bool
}

// changed reports whether d differs from the last command on a, and
// records it.
func (t *tracker) changed(a window.Axis, d window.Direction) bool {
	if t.known[a] && t.dirs[a] == d {
		return false
	}
	t.dirs[a] = d
	t.known[a] = true
	return true
}

// forget clears the record for a so the next command is always written.
func (t *tracker) forget(a window.Axis) {
	t.known[a] = false
}

// Noop accepts every command and does nothing. Used for bench runs.
type Noop struct{}

// SetDirection implements window.MotorDriver.
func (n *Noop) SetDirection(a window.Axis, d window.Direction) error {
	if !a.Driven() {
		return fmt.Errorf("axis %s has no motor", a)
	}
	return nil
}

// Close implements Driver.
func (n *Noop) Close() error {
	return nil
}
