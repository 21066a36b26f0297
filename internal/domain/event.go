package domain

import "time"

// EventType identifies a rollout lifecycle event.
type EventType string

const (
	EventRunStarted       EventType = "run_started"
	EventRunFinished      EventType = "run_finished"
	EventDeviceTransition EventType = "device_transition"
	EventDeviceOutcome    EventType = "device_outcome"
	EventRollbackFailed   EventType = "rollback_failed"
)

// Event is one entry in the structured event stream the orchestrator emits.
// The core emits events; sinks own formatting.
type Event struct {
	Type     EventType `json:"type"`
	RunID    string    `json:"run_id"`
	DeviceID string    `json:"device_id,omitempty"`
	// State is the device workflow state for transition events
	// (validating, backing_up, applying, verifying, rolling_back, ...).
	State  string    `json:"state,omitempty"`
	Detail string    `json:"detail,omitempty"`
	Time   time.Time `json:"time"`
}
