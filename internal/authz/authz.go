// Package authz is the role gate wrapping mutating operations. The check is
// pure and independent of any input mechanism; it runs once per run before
// any device is touched.
package authz

import "github.com/netops-tools/aclpush/internal/domain"

// Action is an operation subject to the role gate.
type Action string

const (
	// ActionDryRun renders and reports commands without contacting any
	// mutating interface.
	ActionDryRun Action = "dry_run"
	// ActionApply mutates device configuration.
	ActionApply Action = "apply"
)

// ForMode maps a run mode to the action it requires.
func ForMode(mode domain.RunMode) Action {
	if mode == domain.ModeApply {
		return ActionApply
	}
	return ActionDryRun
}

// Authorize reports whether the actor's role permits the action. Admins may
// do everything; users are limited to read-only operations and dry runs.
// Returns a *domain.AuthorizationError on rejection.
func Authorize(actor domain.Actor, action Action) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleUser:
		if action == ActionDryRun {
			return nil
		}
	}
	return &domain.AuthorizationError{Actor: actor, Action: string(action)}
}
