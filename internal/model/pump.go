package model

import "time"

// PumpAction is the verb accepted by the control endpoint.
type PumpAction string

const (
	ActionActivate   PumpAction = "activate"
	ActionDeactivate PumpAction = "deactivate"
)

// Trigger records who asked for a pump action.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerAutomatic Trigger = "automatic"
)

// PumpCommand is the body of POST /pump/{device}/control.
type PumpCommand struct {
	Action      PumpAction `json:"action"`
	Reason      string     `json:"reason"`
	TriggeredBy Trigger    `json:"triggered_by"`
}

// PumpState is the simulator's local belief about the remote pump.
// The API is the source of truth; this is only used to pick the next action.
type PumpState struct {
	IsActive    bool
	ActivatedAt *time.Time
}

// PumpStatus is what GET /pump/{device}/status reports.
// Optional fields are nil when the server omitted them.
type PumpStatus struct {
	IsActive         bool     `json:"is_active"`
	DurationSeconds  *float64 `json:"duration_seconds,omitempty"`
	TotalActivations *int     `json:"total_activations,omitempty"`
}

// RunStatistics are the aggregate pump figures kept by the API.
type RunStatistics struct {
	TotalActivations     int     `json:"total_activations"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	AvgDurationSeconds   float64 `json:"avg_duration_seconds"`
}
