package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/vent-controller/internal/window"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vent.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Window.RunDuration != 30*time.Second {
		t.Errorf("RunDuration: got %v, want 30s", cfg.Window.RunDuration)
	}
	if cfg.Window.LockoutDuration != 30*time.Minute {
		t.Errorf("LockoutDuration: got %v, want 30m", cfg.Window.LockoutDuration)
	}
	if len(cfg.Warnings()) != 0 {
		t.Errorf("default config has warnings: %v", cfg.Warnings())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Motor.Type != "gpiocdev" {
		t.Errorf("Motor.Type: got %q, want gpiocdev", cfg.Motor.Type)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
window:
  run_duration: 45s
  cancel_from_auto: stop
  stall_cutoff:
    low: 600
limits:
  high:
    open: 30.5
    close: 21
sensors:
  supply: /sys/bus/iio/devices/iio:device0/in_voltage2_raw
motor:
  type: rpio
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Window.RunDuration != 45*time.Second {
		t.Errorf("RunDuration: got %v, want 45s", cfg.Window.RunDuration)
	}
	// Not in file: default kept
	if cfg.Window.LockoutDuration != 30*time.Minute {
		t.Errorf("LockoutDuration: got %v, want 30m", cfg.Window.LockoutDuration)
	}
	if cfg.Window.CancelFromAuto != "stop" {
		t.Errorf("CancelFromAuto: got %q, want stop", cfg.Window.CancelFromAuto)
	}
	if cfg.Window.StallCutoff.Low != 600 || cfg.Window.StallCutoff.High != 0 {
		t.Errorf("StallCutoff: got %+v", cfg.Window.StallCutoff)
	}
	if cfg.Limits.High.Open != 30.5 || cfg.Limits.High.Close != 21 {
		t.Errorf("Limits.High: got %+v", cfg.Limits.High)
	}
	if cfg.Limits.Low.Open != 25 {
		t.Errorf("Limits.Low.Open: got %v, want default 25", cfg.Limits.Low.Open)
	}
	if cfg.Motor.Type != "rpio" {
		t.Errorf("Motor.Type: got %q, want rpio", cfg.Motor.Type)
	}
	if cfg.Sensors.Supply == "" || cfg.Sensors.SupplyScale != 0.01 {
		t.Errorf("Sensors: got %+v, want supply path with default scale", cfg.Sensors)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero run", "window:\n  run_duration: 0s\n", "run_duration"},
		{"negative lockout", "window:\n  lockout_duration: -1m\n", "lockout_duration"},
		{"bad policy", "window:\n  cancel_from_auto: lockout\n", "cancel_from_auto"},
		{"bad motor", "motor:\n  type: stepper\n", "motor.type"},
		{"negative stall", "window:\n  stall_cutoff:\n    high: -5\n", "stall_cutoff"},
		{"negative supply scale", "sensors:\n  supply_scale: -1\n", "supply_scale"},
		{"bad yaml", "window: [\n", "decode config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestMalformedThresholdsWarnOnly(t *testing.T) {
	cfg, err := Load(writeFile(t, "limits:\n  low:\n    open: 18\n    close: 22\n"))
	if err != nil {
		t.Fatalf("malformed thresholds should load: %v", err)
	}
	w := cfg.Warnings()
	if len(w) != 1 || !strings.HasPrefix(w[0], "low:") {
		t.Errorf("Warnings: got %v, want one low warning", w)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vent.yaml")
	cfg := Default()
	cfg.Limits.Low = Limit{Open: 26.5, Close: 17}
	cfg.Window.LockoutDuration = 10 * time.Minute

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Limits.Low != cfg.Limits.Low {
		t.Errorf("Limits.Low: got %+v, want %+v", got.Limits.Low, cfg.Limits.Low)
	}
	if got.Window.LockoutDuration != 10*time.Minute {
		t.Errorf("LockoutDuration: got %v, want 10m", got.Window.LockoutDuration)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "lockout_duration: 10m0s") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}
}

func TestStoreSettings(t *testing.T) {
	cfg := Default()
	cfg.Window.StallCutoff = AxisInts{Low: 400, High: 450}
	s := NewStore(cfg, "")

	var _ window.Settings = s

	if s.RunDuration() != 30*time.Second {
		t.Errorf("RunDuration: got %v", s.RunDuration())
	}
	if s.StallCutoff(window.AxisHigh) != 450 {
		t.Errorf("StallCutoff(high): got %d, want 450", s.StallCutoff(window.AxisHigh))
	}
	if s.StallCutoff(window.AxisOut) != 0 {
		t.Errorf("StallCutoff(out): got %d, want 0", s.StallCutoff(window.AxisOut))
	}

	s.SetLimit(window.AxisHigh, Limit{Open: 31, Close: 24})
	open, closeAt := s.Thresholds(window.AxisHigh)
	if open != 31 || closeAt != 24 {
		t.Errorf("Thresholds(high): got %v/%v, want 31/24", open, closeAt)
	}

	s.SetTiming(time.Minute, 0)
	if s.RunDuration() != time.Minute {
		t.Errorf("RunDuration after SetTiming: got %v", s.RunDuration())
	}
	if s.LockoutDuration() != 30*time.Minute {
		t.Errorf("LockoutDuration should be unchanged, got %v", s.LockoutDuration())
	}

	s.SetStallCutoff(window.AxisHigh, 0)
	s.SetStallCutoff(window.AxisOut, 900)
	if s.StallCutoff(window.AxisHigh) != 0 {
		t.Errorf("high cutoff after SetStallCutoff: got %d, want 0", s.StallCutoff(window.AxisHigh))
	}
	if s.StallCutoff(window.AxisLow) != 400 {
		t.Errorf("low cutoff should be unchanged, got %d", s.StallCutoff(window.AxisLow))
	}
	if s.StallCutoff(window.AxisOut) != 0 {
		t.Error("out axis has no cutoff")
	}
}

func TestStorePersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vent.yaml")
	s := NewStore(Default(), path)
	s.SetLimit(window.AxisLow, Limit{Open: 24, Close: 16})

	if err := s.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Limits.Low.Open != 24 {
		t.Errorf("persisted Limits.Low.Open: got %v, want 24", cfg.Limits.Low.Open)
	}

	if err := NewStore(Default(), "").Persist(); err != nil {
		t.Errorf("Persist without path: %v", err)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore(Default(), "")
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.SetLimit(window.AxisLow, Limit{Open: float64(i), Close: 0})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.Thresholds(window.AxisLow)
			_ = s.RunDuration()
		}
	}()

	wg.Wait()
}
