package config

import (
	"sync"
	"time"

	"github.com/sweeney/vent-controller/internal/window"
)

// Store holds the live configuration. The run loop, HTTP handlers and MQTT
// callbacks share one Store; every read sees the latest value.
type Store struct {
	mu   sync.RWMutex
	cfg  Config
	path string
}

// NewStore wraps cfg. path is where Persist writes; empty disables it.
func NewStore(cfg Config, path string) *Store {
	return &Store{cfg: cfg, path: path}
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// RunDuration implements window.Settings.
func (s *Store) RunDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Window.RunDuration
}

// LockoutDuration implements window.Settings.
func (s *Store) LockoutDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Window.LockoutDuration
}

// StallCutoff implements window.Settings.
func (s *Store) StallCutoff(a window.Axis) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Window.StallCutoff.For(a)
}

// Thresholds returns the open and close temperatures for an axis.
func (s *Store) Thresholds(a window.Axis) (open, close float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := s.cfg.Limits.For(a)
	return l.Open, l.Close
}

// SetLimit replaces the thresholds of one axis.
func (s *Store) SetLimit(a window.Axis, l Limit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch a {
	case window.AxisLow:
		s.cfg.Limits.Low = l
	case window.AxisHigh:
		s.cfg.Limits.High = l
	case window.AxisOut:
		s.cfg.Limits.Out = l
	}
}

// SetTiming replaces the motor run and lockout durations. Non-positive
// values leave the current setting unchanged.
func (s *Store) SetTiming(run, lockout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run > 0 {
		s.cfg.Window.RunDuration = run
	}
	if lockout > 0 {
		s.cfg.Window.LockoutDuration = lockout
	}
}

// SetStallCutoff replaces the stall current cutoff of a driven axis.
func (s *Store) SetStallCutoff(a window.Axis, cutoff int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch a {
	case window.AxisLow:
		s.cfg.Window.StallCutoff.Low = cutoff
	case window.AxisHigh:
		s.cfg.Window.StallCutoff.High = cutoff
	}
}

// Persist writes the current configuration back to its file.
func (s *Store) Persist() error {
	if s.path == "" {
		return nil
	}
	return Save(s.path, s.Get())
}
