// Package config loads and persists the vent controller settings.
// The file format is YAML; durations are written as Go duration strings
// ("30s", "30m").
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sweeney/vent-controller/internal/window"
)

// Config is the top-level configuration file.
type Config struct {
	LogLevel  string        `yaml:"log_level"`
	Poll      time.Duration `yaml:"poll"`
	Heartbeat time.Duration `yaml:"heartbeat"`

	Window  WindowConfig  `yaml:"window"`
	Limits  LimitsConfig  `yaml:"limits"`
	Sensors SensorsConfig `yaml:"sensors"`
	Motor   MotorConfig   `yaml:"motor"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// WindowConfig holds motor timing and safety settings.
type WindowConfig struct {
	RunDuration     time.Duration `yaml:"run_duration"`
	LockoutDuration time.Duration `yaml:"lockout_duration"`
	CancelFromAuto  string        `yaml:"cancel_from_auto"` // "hold" or "stop"
	StallCutoff     AxisInts      `yaml:"stall_cutoff"`     // raw ADC counts, 0 disables
}

// AxisInts is a per-axis integer setting.
type AxisInts struct {
	Low  int `yaml:"low"`
	High int `yaml:"high"`
}

// Limit is a pair of window thresholds in degrees Celsius.
type Limit struct {
	Open  float64 `yaml:"open"`
	Close float64 `yaml:"close"`
}

// LimitsConfig holds the thresholds for each sensor. Out is kept for
// display only.
type LimitsConfig struct {
	Low  Limit `yaml:"low"`
	High Limit `yaml:"high"`
	Out  Limit `yaml:"out"`
}

// SensorsConfig holds sysfs paths for the temperature, current and supply
// voltage inputs.
type SensorsConfig struct {
	Low         string  `yaml:"low"`  // 1-Wire device directory
	High        string  `yaml:"high"` // 1-Wire device directory
	Out         string  `yaml:"out"`  // 1-Wire device directory
	CurrentLow  string  `yaml:"current_low"`
	CurrentHigh string  `yaml:"current_high"`
	Supply      string  `yaml:"supply"`       // IIO channel of the supply divider
	SupplyScale float64 `yaml:"supply_scale"` // volts per raw count
}

// MotorConfig selects and wires the relay driver.
type MotorConfig struct {
	Type string   `yaml:"type"` // "gpiocdev", "rpio" or "none"
	Chip string   `yaml:"chip"`
	Low  AxisPins `yaml:"low"`
	High AxisPins `yaml:"high"`
}

// AxisPins are the BCM line numbers of one motor's relays.
type AxisPins struct {
	Direction int `yaml:"direction"`
	Power     int `yaml:"power"`
}

// MQTTConfig holds broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
}

// HTTPConfig holds the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		Poll:      time.Second,
		Heartbeat: 15 * time.Minute,
		Window: WindowConfig{
			RunDuration:     30 * time.Second,
			LockoutDuration: 30 * time.Minute,
			CancelFromAuto:  string(window.CancelHold),
		},
		Limits: LimitsConfig{
			Low:  Limit{Open: 25, Close: 18},
			High: Limit{Open: 28, Close: 20},
		},
		Sensors: SensorsConfig{SupplyScale: 0.01},
		Motor: MotorConfig{
			Type: "gpiocdev",
			Chip: "gpiochip0",
			Low:  AxisPins{Direction: 17, Power: 27},
			High: AxisPins{Direction: 22, Power: 23},
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://192.168.1.200:1883",
			ClientID: "vent-controller",
		},
		HTTP: HTTPConfig{Addr: ":80"},
	}
}

// Load reads a config file over the defaults. A missing file is not an
// error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config atomically.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vent-config-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// Validate rejects settings the controller cannot run with.
func (c Config) Validate() error {
	if c.Poll <= 0 {
		return fmt.Errorf("poll must be positive, got %v", c.Poll)
	}
	if c.Window.RunDuration <= 0 {
		return fmt.Errorf("window.run_duration must be positive, got %v", c.Window.RunDuration)
	}
	if c.Window.LockoutDuration < 0 {
		return fmt.Errorf("window.lockout_duration must not be negative, got %v", c.Window.LockoutDuration)
	}
	if c.Sensors.SupplyScale < 0 {
		return fmt.Errorf("sensors.supply_scale must not be negative, got %v", c.Sensors.SupplyScale)
	}
	if c.Window.StallCutoff.Low < 0 || c.Window.StallCutoff.High < 0 {
		return errors.New("window.stall_cutoff must not be negative")
	}
	if _, err := window.ParseCancelPolicy(c.Window.CancelFromAuto); err != nil {
		return fmt.Errorf("window.cancel_from_auto: %w", err)
	}
	switch c.Motor.Type {
	case "gpiocdev", "rpio", "none":
	default:
		return fmt.Errorf("motor.type: unknown driver %q", c.Motor.Type)
	}
	return nil
}

// Warnings returns problems that do not stop the controller. A close
// threshold above the open threshold is allowed; the open check wins.
func (c Config) Warnings() []string {
	var w []string
	for _, a := range []window.Axis{window.AxisLow, window.AxisHigh} {
		l := c.Limits.For(a)
		if l.Close > l.Open {
			w = append(w, fmt.Sprintf("%s: close threshold %.2f is above open threshold %.2f", a, l.Close, l.Open))
		}
	}
	return w
}

// For returns the thresholds of an axis.
func (l LimitsConfig) For(a window.Axis) Limit {
	switch a {
	case window.AxisLow:
		return l.Low
	case window.AxisHigh:
		return l.High
	}
	return l.Out
}

// For returns the value of an axis. The outside axis has none.
func (v AxisInts) For(a window.Axis) int {
	switch a {
	case window.AxisLow:
		return v.Low
	case window.AxisHigh:
		return v.High
	}
	return 0
}
