// Package measure collects temperatures and motor currents and presents them
// to the window supervisor as limits and stall inputs.
package measure

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/vent-controller/internal/window"
)

const (
	numSensors  = window.NumAxes
	dayBuckets  = 24
	bucketWidth = time.Hour
)

// ThresholdSource supplies the live open/close thresholds.
type ThresholdSource interface {
	Thresholds(a window.Axis) (open, close float64)
}

// Reading is the state of one sensor.
type Reading struct {
	Axis     window.Axis
	Now      float64
	Valid    bool
	Min      float64
	Max      float64
	Open     float64
	Close    float64
	Current  int
	Failures int
}

// Supply is the state of the supply voltage input.
type Supply struct {
	Configured bool
	Valid      bool
	Raw        int
	Volts      float64
	Failures   int
}

// Bank holds the latest sensor values. It is owned by the run loop and is
// not safe for concurrent use.
type Bank struct {
	limits   ThresholdSource
	temps    [numSensors]TempReader
	currents [window.NumDriven]CurrentReader

	now      [numSensors]float64
	valid    [numSensors]bool
	failures [numSensors]int
	dayMax   [numSensors]*MinMax
	dayMin   [numSensors]*MinMax
	current  [window.NumDriven]int

	supplyReader SupplyReader
	supplyScale  float64
	supply       Supply

	rotate     int
	lastBucket time.Duration
	started    bool
}

// Sensors holds the readers for each input. Nil readers are skipped.
// SupplyScale converts raw supply samples to volts.
type Sensors struct {
	Low, High, Out          TempReader
	CurrentLow, CurrentHigh CurrentReader
	Supply                  SupplyReader
	SupplyScale             float64
}

// NewBank creates a Bank reading from the given sensors.
func NewBank(limits ThresholdSource, s Sensors) *Bank {
	b := &Bank{
		limits:   limits,
		temps:    [numSensors]TempReader{s.Low, s.High, s.Out},
		currents: [window.NumDriven]CurrentReader{s.CurrentLow, s.CurrentHigh},

		supplyReader: s.Supply,
		supplyScale:  s.SupplyScale,
		supply:       Supply{Configured: s.Supply != nil},
	}
	for i := range b.dayMax {
		b.dayMax[i] = NewMinMax(dayBuckets, true)
		b.dayMin[i] = NewMinMax(dayBuckets, false)
	}
	return b
}

// Poll reads one temperature sensor, rotating low, high, out on
// successive calls, and samples both motor currents and the supply
// voltage. now is the uptime, used to roll the daily min/max buckets each
// hour.
func (b *Bank) Poll(now time.Duration) error {
	if !b.started {
		b.started = true
		b.lastBucket = now
	}
	for now-b.lastBucket >= bucketWidth {
		b.lastBucket += bucketWidth
		for i := range b.dayMax {
			b.dayMax[i].Tick()
			b.dayMin[i].Tick()
		}
	}

	var errs []error

	i := b.rotate % numSensors
	b.rotate++
	if r := b.temps[i]; r != nil {
		v, err := r.ReadTemp()
		if err != nil {
			b.failures[i]++
			errs = append(errs, fmt.Errorf("%s temperature: %w", window.Axis(i), err))
		} else {
			b.now[i] = v
			b.valid[i] = true
			b.dayMax[i].Add(v)
			b.dayMin[i].Add(v)
		}
	}

	for a, r := range b.currents {
		if r == nil {
			continue
		}
		v, err := r.ReadCurrent()
		if err != nil {
			// A stale sample could trip the stall check on the next move.
			b.current[a] = 0
			errs = append(errs, fmt.Errorf("%s current: %w", window.Axis(a), err))
			continue
		}
		b.current[a] = v
	}

	if r := b.supplyReader; r != nil {
		v, err := r.ReadSupply()
		if err != nil {
			b.supply.Failures++
			errs = append(errs, fmt.Errorf("supply voltage: %w", err))
		} else {
			b.supply.Raw = v
			b.supply.Volts = float64(v) * b.supplyScale
			b.supply.Valid = true
		}
	}

	return errors.Join(errs...)
}

// Limits implements window.LimitSource. The outside sensor and any sensor
// without a reading report ok=false.
func (b *Bank) Limits(a window.Axis) (now, openAt, closeAt float64, ok bool) {
	if !a.Driven() || !b.valid[a] {
		return 0, 0, 0, false
	}
	openAt, closeAt = b.limits.Thresholds(a)
	return b.now[a], openAt, closeAt, true
}

// Current implements window.CurrentSource.
func (b *Bank) Current(a window.Axis) int {
	if !a.Driven() {
		return 0
	}
	return b.current[a]
}

// Supply returns the latest supply voltage reading.
func (b *Bank) Supply() Supply {
	return b.supply
}

// Readings returns a copy of every sensor's state in display order.
func (b *Bank) Readings() []Reading {
	out := make([]Reading, 0, numSensors)
	for _, a := range window.Axes {
		r := Reading{
			Axis:     a,
			Now:      b.now[a],
			Valid:    b.valid[a],
			Failures: b.failures[a],
		}
		r.Min, _ = b.dayMin[a].Get()
		r.Max, _ = b.dayMax[a].Get()
		r.Open, r.Close = b.limits.Thresholds(a)
		if a.Driven() {
			r.Current = b.current[a]
		}
		out = append(out, r)
	}
	return out
}
