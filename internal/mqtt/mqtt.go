// Package mqtt publishes window events and receives remote control commands,
// with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/vent-controller/internal/remote"
	"github.com/sweeney/vent-controller/internal/window"
)

// Topic is the MQTT topic for window state changes.
const Topic = "tunnelhouse/vents/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "tunnelhouse/vents/system"

// TopicCommand is the MQTT topic the remote keypad bridge publishes to.
const TopicCommand = "tunnelhouse/vents/command"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a window change to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(change window.Change) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Window WindowPayload `json:"window"`
}

// WindowPayload contains the window change details.
type WindowPayload struct {
	Timestamp string `json:"timestamp"`
	Axis      string `json:"axis"`
	Event     string `json:"event"`
	From      string `json:"from"`
	To        string `json:"to"`
	Action    string `json:"action"`
	Motor     string `json:"motor"`
}

// FormatPayload creates the JSON payload for a window change.
func FormatPayload(c window.Change) ([]byte, error) {
	payload := Payload{
		Window: WindowPayload{
			Timestamp: c.Timestamp.UTC().Format(time.RFC3339),
			Axis:      c.Axis.String(),
			Event:     c.Event.String(),
			From:      c.From.String(),
			To:        c.To.String(),
			Action:    c.Action.String(),
			Motor:     c.To.Direction().String(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// HandleCommand decodes a command message and passes it to fn.
func HandleCommand(payload []byte, fn func(remote.Command)) error {
	cmd, err := remote.Decode(payload)
	if err != nil {
		return err
	}
	fn(cmd)
	return nil
}

// Disabled is a Publisher that discards everything. Used when no broker
// is configured.
var Disabled Publisher = disabled{}

type disabled struct{}

func (disabled) Publish(window.Change) error     { return nil }
func (disabled) PublishSystem(SystemEvent) error { return nil }
func (disabled) Close() error                    { return nil }
