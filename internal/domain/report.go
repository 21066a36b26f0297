package domain

import "time"

// RunMode selects between simulation and live application.
type RunMode string

const (
	ModeDryRun RunMode = "dry_run"
	ModeApply  RunMode = "apply"
)

// ValidMode reports whether m is a known run mode.
func ValidMode(m RunMode) bool {
	return m == ModeDryRun || m == ModeApply
}

// OutcomeStatus is the terminal state of one device's workflow.
type OutcomeStatus string

const (
	StatusApplied    OutcomeStatus = "applied"
	StatusDryRun     OutcomeStatus = "dry_run"
	StatusRolledBack OutcomeStatus = "rolled_back"
	StatusRejected   OutcomeStatus = "rejected"
	StatusSkipped    OutcomeStatus = "skipped"
)

// DeviceOutcome records how one device's workflow ended. Written exactly
// once, by that device's own workflow, and never mutated afterward.
type DeviceOutcome struct {
	DeviceID string        `json:"device_id"`
	Status   OutcomeStatus `json:"status"`
	Findings []Finding     `json:"findings,omitempty"`
	// Commands holds the rendered command sequence for dry runs.
	Commands []string `json:"commands,omitempty"`
	Error    string   `json:"error,omitempty"`
	BackupID string   `json:"backup_id,omitempty"`
	// RollbackFailed marks the one truly escalated condition: the device may
	// be left in an unknown state.
	RollbackFailed bool       `json:"rollback_failed,omitempty"`
	StartedAt      time.Time  `json:"started_at,omitzero"`
	FinishedAt     time.Time  `json:"finished_at,omitzero"`
}

// Ok reports whether the outcome counts as success for exit-status purposes.
func (o DeviceOutcome) Ok() bool {
	return o.Status == StatusApplied || o.Status == StatusDryRun
}

// RunReport is the sole artifact a rollout run produces. Outcomes are ordered
// by device input order and the report is immutable once the run finishes.
type RunReport struct {
	RunID      string          `json:"run_id"`
	Mode       RunMode         `json:"mode"`
	Actor      Actor           `json:"actor"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Outcomes   []DeviceOutcome `json:"outcomes"`
}

// Succeeded reports whether every device ended in applied or dry_run.
func (r *RunReport) Succeeded() bool {
	for _, o := range r.Outcomes {
		if !o.Ok() {
			return false
		}
	}
	return true
}

// Counts returns the number of outcomes per status.
func (r *RunReport) Counts() map[OutcomeStatus]int {
	counts := make(map[OutcomeStatus]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// RunRecord is the persisted form of a run: summary columns plus the full
// report as JSON, mirroring how rendered policy versions are stored.
type RunRecord struct {
	ID         string     `json:"id" db:"id"`
	Mode       string     `json:"mode" db:"mode"`
	ActorName  string     `json:"actor_name" db:"actor_name"`
	ActorRole  string     `json:"actor_role" db:"actor_role"`
	Status     string     `json:"status" db:"status"` // "running", "succeeded", "failed"
	Report     string     `json:"report" db:"report"` // JSON-encoded RunReport
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// Run record statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)
