package model

import "time"

// EventKind classifies what the simulator loop did.
type EventKind string

const (
	EventSessionStart EventKind = "session.start"
	EventReading      EventKind = "reading.sent"
	EventPumpCommand  EventKind = "pump.command"
	EventPumpStatus   EventKind = "pump.status"
	EventSessionEnd   EventKind = "session.end"
)

// Event is handed to telemetry sinks (MQTT mirror, Influx journal).
// The loop never reads events back.
type Event struct {
	Kind      EventKind      `json:"kind"`
	RunID     string         `json:"run_id"`
	DeviceID  string         `json:"device_id"`
	Cycle     int            `json:"cycle"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Reading   *SensorReading `json:"reading,omitempty"`
	Command   *PumpCommand   `json:"command,omitempty"`
	PumpOn    bool           `json:"pump_on"`
	Timestamp time.Time      `json:"timestamp"`
}
