package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/netops-tools/aclpush/internal/api/middleware"
	"github.com/netops-tools/aclpush/internal/domain"
	"github.com/netops-tools/aclpush/internal/service"
	"github.com/netops-tools/aclpush/internal/storage"
)

// RunHandler handles rollout run endpoints.
type RunHandler struct {
	store   storage.Storage
	rollout *service.Rollout
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(store storage.Storage, rollout *service.Rollout) *RunHandler {
	return &RunHandler{store: store, rollout: rollout}
}

// CreateRunRequest is the body for starting a run. The actor is taken from
// the authenticated API key, not the body.
type CreateRunRequest struct {
	Devices       []domain.Device             `json:"devices"`
	Rules         []domain.RawRule            `json:"rules,omitempty"`
	RulesByDevice map[string][]domain.RawRule `json:"rules_by_device,omitempty"`
	Mode          domain.RunMode              `json:"mode"`
}

// Create starts a run and blocks until it completes, returning the report.
// Device-level failures land in the report's outcomes, not in the HTTP status.
func (h *RunHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Devices) == 0 {
		respondError(w, http.StatusBadRequest, "devices is required")
		return
	}

	report, err := h.rollout.Run(r.Context(), service.RunRequest{
		Devices:       req.Devices,
		Rules:         req.Rules,
		RulesByDevice: req.RulesByDevice,
		Mode:          req.Mode,
		Actor:         middleware.ActorFromContext(r.Context()),
	})
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, report)
}

// Get returns one persisted run record, report included.
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// List returns persisted runs, newest first.
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	runs, err := h.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
