package status

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/vent-controller/internal/measure"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Windows       []AxisJSON   `json:"windows"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"motor_counts"`
	MotorErrors   int          `json:"motor_errors"`
	Supply        *SupplyJSON  `json:"supply,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// AxisJSON is one sensor, plus its window for driven axes.
type AxisJSON struct {
	Axis         string   `json:"axis"`
	State        string   `json:"state,omitempty"`
	Motor        string   `json:"motor,omitempty"`
	TimerSeconds *int64   `json:"timer_seconds,omitempty"`
	Temp         *float64 `json:"temp"`
	Min          float64  `json:"min"`
	Max          float64  `json:"max"`
	Open         float64  `json:"open"`
	Close        float64  `json:"close"`
	Current      *int     `json:"current,omitempty"`
	Failures     int      `json:"failures"`
}

// SupplyJSON is the supply voltage. Volts is null until the first good
// sample.
type SupplyJSON struct {
	Volts    *float64 `json:"volts"`
	Raw      int      `json:"raw"`
	Failures int      `json:"failures"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of motor action counts.
type CountsJSON struct {
	Opens    int `json:"opens"`
	Closes   int `json:"closes"`
	Stops    int `json:"stops"`
	Lockouts int `json:"lockouts"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs         int64  `json:"poll_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	RunSeconds     int64  `json:"run_seconds"`
	LockoutSeconds int64  `json:"lockout_seconds"`
	StallLow       int    `json:"stall_cutoff_low"`
	StallHigh      int    `json:"stall_cutoff_high"`
	CancelPolicy   string `json:"cancel_policy"`
	MotorType      string `json:"motor_type"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

func buildAxis(as AxisStatus) AxisJSON {
	r := as.Reading
	out := AxisJSON{
		Axis:     as.Axis.String(),
		Min:      r.Min,
		Max:      r.Max,
		Open:     r.Open,
		Close:    r.Close,
		Failures: r.Failures,
	}
	if r.Valid {
		v := r.Now
		out.Temp = &v
	}
	if as.Axis.Driven() {
		out.State = as.State.String()
		out.Motor = as.Motor.String()
		cur := r.Current
		out.Current = &cur
		if as.Armed {
			secs := int64(as.Timer.Round(time.Second).Seconds())
			out.TimerSeconds = &secs
		}
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	windows := make([]AxisJSON, 0, len(snap.Axes))
	for _, as := range snap.Axes {
		windows = append(windows, buildAxis(as))
	}

	return StatusInner{
		Windows:       windows,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Opens:    snap.Counts.Opens,
			Closes:   snap.Counts.Closes,
			Stops:    snap.Counts.Stops,
			Lockouts: snap.Counts.Lockouts,
		},
		MotorErrors: snap.MotorErrors,
		Supply:      buildSupply(snap.Supply),
		Config: ConfigJSON{
			PollMs:         snap.Config.PollMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			RunSeconds:     snap.Config.RunSeconds,
			LockoutSeconds: snap.Config.LockoutSeconds,
			StallLow:       snap.Config.StallLow,
			StallHigh:      snap.Config.StallHigh,
			CancelPolicy:   snap.Config.CancelPolicy,
			MotorType:      snap.Config.MotorType,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
}

func buildSupply(s measure.Supply) *SupplyJSON {
	if !s.Configured {
		return nil
	}
	out := &SupplyJSON{Raw: s.Raw, Failures: s.Failures}
	if s.Valid {
		v := math.Round(s.Volts*100) / 100
		out.Volts = &v
	}
	return out
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact JSON status for an MQTT system
// event or a websocket push.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
