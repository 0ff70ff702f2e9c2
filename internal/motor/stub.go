//go:build !linux

package motor

import (
	"errors"

	"github.com/sweeney/vent-controller/internal/config"
	"github.com/sweeney/vent-controller/internal/window"
)

// GPIO is not available on non-Linux platforms.
type GPIO struct{}

// NewGPIO returns an error on non-Linux platforms.
func NewGPIO(cfg config.MotorConfig) (*GPIO, error) {
	return nil, errors.New("motor: gpiocdev not supported on this platform (requires Linux)")
}

// SetDirection is not implemented on non-Linux platforms.
func (g *GPIO) SetDirection(a window.Axis, d window.Direction) error {
	return errors.New("motor: not supported")
}

// Close is not implemented on non-Linux platforms.
func (g *GPIO) Close() error {
	return nil
}

// RPIO is not available on non-Linux platforms.
type RPIO struct{}

// NewRPIO returns an error on non-Linux platforms.
func NewRPIO(cfg config.MotorConfig) (*RPIO, error) {
	return nil, errors.New("motor: rpio not supported on this platform (requires Linux)")
}

// SetDirection is not implemented on non-Linux platforms.
func (r *RPIO) SetDirection(a window.Axis, d window.Direction) error {
	return errors.New("motor: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RPIO) Close() error {
	return nil
}
