package authz

import (
	"errors"
	"testing"

	"github.com/netops-tools/aclpush/internal/domain"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		role    domain.Role
		action  Action
		wantErr bool
	}{
		{"admin apply", domain.RoleAdmin, ActionApply, false},
		{"admin dry run", domain.RoleAdmin, ActionDryRun, false},
		{"user dry run", domain.RoleUser, ActionDryRun, false},
		{"user apply", domain.RoleUser, ActionApply, true},
		{"unknown role apply", domain.Role("operator"), ActionApply, true},
		{"unknown role dry run", domain.Role("operator"), ActionDryRun, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(domain.Actor{Name: "alex", Role: tt.role}, tt.action)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Authorize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var authErr *domain.AuthorizationError
				if !errors.As(err, &authErr) {
					t.Errorf("expected AuthorizationError, got %T", err)
				}
				if !errors.Is(err, domain.ErrUnauthorized) {
					t.Error("expected error to unwrap to ErrUnauthorized")
				}
			}
		})
	}
}

func TestForMode(t *testing.T) {
	if ForMode(domain.ModeApply) != ActionApply {
		t.Error("apply mode should require the apply action")
	}
	if ForMode(domain.ModeDryRun) != ActionDryRun {
		t.Error("dry run mode should require the dry run action")
	}
}
