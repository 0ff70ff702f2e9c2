//go:build linux

package motor

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/vent-controller/internal/config"
	"github.com/sweeney/vent-controller/internal/window"
)

// GPIO drives the relays through the Linux GPIO character device.
type GPIO struct {
	chip  *gpiocdev.Chip
	dir   [window.NumDriven]*gpiocdev.Line
	power [window.NumDriven]*gpiocdev.Line
	last  tracker
}

// NewGPIO requests the relay lines as outputs with every relay released.
func NewGPIO(cfg config.MotorConfig) (*GPIO, error) {
	name := cfg.Chip
	if name == "" {
		name = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer("vent-controller"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	g := &GPIO{chip: chip}
	for _, a := range []window.Axis{window.AxisLow, window.AxisHigh} {
		p, _ := pins(cfg, a)

		// Power first so the motor cannot start while direction settles.
		power, err := chip.RequestLine(p.Power, gpiocdev.AsOutput(level(false)))
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("request %s power pin %d: %w", a, p.Power, err)
		}
		g.power[a] = power

		dir, err := chip.RequestLine(p.Direction, gpiocdev.AsOutput(level(false)))
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("request %s direction pin %d: %w", a, p.Direction, err)
		}
		g.dir[a] = dir
	}
	return g, nil
}

// SetDirection implements window.MotorDriver.
func (g *GPIO) SetDirection(a window.Axis, d window.Direction) error {
	if !a.Driven() {
		return fmt.Errorf("axis %s has no motor", a)
	}
	if !g.last.changed(a, d) {
		return nil
	}
	r := RelaysFor(d)

	// Never switch direction under power: drop power, set direction,
	// then apply power if required.
	if err := g.power[a].SetValue(level(false)); err != nil {
		g.last.forget(a)
		return fmt.Errorf("%s power off: %w", a, err)
	}
	if err := g.dir[a].SetValue(level(r.Direction)); err != nil {
		g.last.forget(a)
		return fmt.Errorf("%s direction: %w", a, err)
	}
	if r.Power {
		if err := g.power[a].SetValue(level(true)); err != nil {
			g.last.forget(a)
			return fmt.Errorf("%s power on: %w", a, err)
		}
	}
	return nil
}

// Close releases both relays on each axis and frees the lines. Lines are
// left as inputs so the relay boards fall back to their pull-ups.
func (g *GPIO) Close() error {
	var errs []error
	for i := range g.power {
		for _, l := range []*gpiocdev.Line{g.power[i], g.dir[i]} {
			if l == nil {
				continue
			}
			if err := l.SetValue(level(false)); err != nil {
				errs = append(errs, fmt.Errorf("release line %d: %w", l.Offset(), err))
			}
			if err := l.Reconfigure(gpiocdev.AsInput); err != nil {
				errs = append(errs, fmt.Errorf("reconfigure line %d: %w", l.Offset(), err))
			}
			if err := l.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close line %d: %w", l.Offset(), err))
			}
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
