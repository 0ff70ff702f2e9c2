//go:build linux

package motor

import (
	"fmt"
	"sync"

	rpio "github.com/stianeikeland/go-rpio/v4"

	"github.com/sweeney/vent-controller/internal/config"
	"github.com/sweeney/vent-controller/internal/window"
)

// rpio maps one process-wide register window; Open/Close are not reentrant.
var rpioMu sync.Mutex

// RPIO drives the relays through /dev/gpiomem register access. It suits
// older kernels without the GPIO character device.
type RPIO struct {
	dir   [window.NumDriven]rpio.Pin
	power [window.NumDriven]rpio.Pin
	last  tracker
}

// NewRPIO maps the GPIO registers and sets the relay pins as outputs with
// every relay released.
func NewRPIO(cfg config.MotorConfig) (*RPIO, error) {
	rpioMu.Lock()
	defer rpioMu.Unlock()

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}

	r := &RPIO{}
	for _, a := range []window.Axis{window.AxisLow, window.AxisHigh} {
		p, _ := pins(cfg, a)
		r.power[a] = rpio.Pin(p.Power)
		r.dir[a] = rpio.Pin(p.Direction)

		write(r.power[a], false)
		r.power[a].Output()
		write(r.dir[a], false)
		r.dir[a].Output()
	}
	return r, nil
}

func write(p rpio.Pin, on bool) {
	if level(on) == 0 {
		p.Low()
	} else {
		p.High()
	}
}

// SetDirection implements window.MotorDriver. Register writes cannot fail
// once the memory is mapped.
func (r *RPIO) SetDirection(a window.Axis, d window.Direction) error {
	if !a.Driven() {
		return fmt.Errorf("axis %s has no motor", a)
	}
	if !r.last.changed(a, d) {
		return nil
	}
	rl := RelaysFor(d)
	write(r.power[a], false)
	write(r.dir[a], rl.Direction)
	if rl.Power {
		write(r.power[a], true)
	}
	return nil
}

// Close releases every relay and unmaps the registers.
func (r *RPIO) Close() error {
	rpioMu.Lock()
	defer rpioMu.Unlock()

	for i := range r.power {
		write(r.power[i], false)
		write(r.dir[i], false)
		r.power[i].Input()
		r.dir[i].Input()
	}
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close gpiomem: %w", err)
	}
	return nil
}
