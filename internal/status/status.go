// Package status provides a thread-safe status tracker for the vent
// controller. It is written by the run loop and read by the HTTP handlers
// and the websocket push.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/vent-controller/internal/measure"
	"github.com/sweeney/vent-controller/internal/window"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs         int64
	HeartbeatMs    int64
	RunSeconds     int64
	LockoutSeconds int64
	StallLow       int
	StallHigh      int
	CancelPolicy   string
	MotorType      string
	Broker         string
	HTTPAddr       string
}

// AxisStatus is the display view of one axis. State, Motor and Timer are
// only meaningful for driven axes.
type AxisStatus struct {
	Axis    window.Axis
	State   window.State
	Motor   window.Direction
	Armed   bool
	Timer   time.Duration // time left until the armed timer fires
	Reading measure.Reading
}

// Counts tallies motor actions since start.
type Counts struct {
	Opens    int
	Closes   int
	Stops    int
	Lockouts int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Axes          [window.NumAxes]AxisStatus
	Counts        Counts
	MotorErrors   int
	Supply        measure.Supply
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
// Driven axes start out reported as closed and stopped.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	t := &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
	for _, a := range window.Axes {
		t.snap.Axes[a] = AxisStatus{Axis: a, State: window.AutoClosed}
	}
	return t
}

// Update replaces the per-axis view and the motor error total.
// Called from runLoop on every tick.
func (t *Tracker) Update(axes [window.NumAxes]AxisStatus, motorErrors int) {
	t.mu.Lock()
	t.snap.Axes = axes
	t.snap.MotorErrors = motorErrors
	t.mu.Unlock()
}

// Record adds the motor actions of the given changes to the counts.
func (t *Tracker) Record(changes []window.Change) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range changes {
		switch c.Action {
		case window.ActionOpen:
			t.snap.Counts.Opens++
		case window.ActionClose:
			t.snap.Counts.Closes++
		case window.ActionStop:
			t.snap.Counts.Stops++
		case window.ActionStopLockout:
			t.snap.Counts.Stops++
			t.snap.Counts.Lockouts++
		}
	}
}

// SetWindowSettings records the live motor timing and stall cutoffs,
// which may change after start.
func (t *Tracker) SetWindowSettings(run, lockout time.Duration, stallLow, stallHigh int) {
	t.mu.Lock()
	t.snap.Config.RunSeconds = int64(run.Seconds())
	t.snap.Config.LockoutSeconds = int64(lockout.Seconds())
	t.snap.Config.StallLow = stallLow
	t.snap.Config.StallHigh = stallHigh
	t.mu.Unlock()
}

// SetSupply sets the latest supply voltage reading.
func (t *Tracker) SetSupply(s measure.Supply) {
	t.mu.Lock()
	t.snap.Supply = s
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
