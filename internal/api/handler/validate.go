package handler

import (
	"net/http"

	"github.com/netops-tools/aclpush/internal/domain"
	"github.com/netops-tools/aclpush/internal/render"
	"github.com/netops-tools/aclpush/internal/ruleset"
	"github.com/netops-tools/aclpush/internal/validation"
)

// ValidateHandler checks rulesets without touching any device.
type ValidateHandler struct {
	validator *validation.Validator
}

// NewValidateHandler creates a new ValidateHandler.
func NewValidateHandler(policy validation.Policy) *ValidateHandler {
	return &ValidateHandler{validator: validation.New(policy)}
}

// ValidateRequest is the body for a validation check.
type ValidateRequest struct {
	Rules []domain.RawRule `json:"rules"`
}

// ValidateResponse carries the findings plus the commands the ruleset would
// render, so callers can preview exactly what an apply would push.
type ValidateResponse struct {
	Valid    bool             `json:"valid"`
	Findings []domain.Finding `json:"findings,omitempty"`
	Commands []string         `json:"commands,omitempty"`
}

// Check parses and validates a ruleset. Malformed rules are a 400; logical
// findings come back in the response body with a 200.
func (h *ValidateHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Rules) == 0 {
		respondError(w, http.StatusBadRequest, "rules is required")
		return
	}

	rules, err := ruleset.ParseRules(req.Rules)
	if err != nil {
		handleError(w, err)
		return
	}

	result := h.validator.Validate(rules)
	resp := ValidateResponse{
		Valid:    result.Valid,
		Findings: result.Findings,
	}
	if result.Valid {
		resp.Commands = render.RuleSet(rules)
	}
	respondJSON(w, http.StatusOK, resp)
}
