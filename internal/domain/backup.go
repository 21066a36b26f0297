package domain

import "time"

// Backup is an immutable snapshot of a device's ACL configuration, taken
// immediately before the first mutating command of a run. It is only ever
// read afterward, and only by rollback.
type Backup struct {
	ID       string    `json:"id" db:"id"`
	DeviceID string    `json:"device_id" db:"device_id"`
	RunID    string    `json:"run_id" db:"run_id"`
	TakenAt  time.Time `json:"taken_at" db:"taken_at"`
	Config   string    `json:"config" db:"config"`
}
