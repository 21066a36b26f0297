package domain

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNoAPIKeys     = errors.New("no API keys configured")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// APIError is the JSON error body returned by the HTTP API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MalformedRuleError reports a rule record that could not be parsed into a
// normalized ACLRule. Index is the position of the offending record.
type MalformedRuleError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("rule %d: field %q: %s", e.Index, e.Field, e.Reason)
}

// AuthorizationError reports an actor attempting an action their role does
// not permit.
type AuthorizationError struct {
	Actor  Actor
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %q (role %s) is not authorized for %s", e.Actor.Name, e.Actor.Role, e.Action)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// ConnectionError reports a failure to establish a device session.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ReadError reports a failure reading a device's running configuration.
type ReadError struct {
	Host string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read running config from %s: %v", e.Host, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// CommandError reports a failure pushing configuration commands. Command is
// the first command of the failed batch.
type CommandError struct {
	Host    string
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("send %q to %s: %v", e.Command, e.Host, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// TimeoutError reports a blocking device operation exceeding its per-op
// timeout.
type TimeoutError struct {
	Host string
	Op   string
	Err  error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s on %s timed out: %v", e.Op, e.Host, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// BackupError reports a failed pre-change snapshot. A device is never
// mutated without a preceding successful backup.
type BackupError struct {
	DeviceID string
	Err      error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup %s: %v", e.DeviceID, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }

// VerificationMismatchError reports that the post-apply running configuration
// does not contain every intended rule. Diff is a unified diff of expected
// against observed access-list lines.
type VerificationMismatchError struct {
	DeviceID string
	Missing  []string
	Diff     string
}

func (e *VerificationMismatchError) Error() string {
	return fmt.Sprintf("verification failed on %s: %d rendered line(s) missing from running config", e.DeviceID, len(e.Missing))
}
