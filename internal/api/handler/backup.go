package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netops-tools/aclpush/internal/backup"
	"github.com/netops-tools/aclpush/internal/storage"
)

// BackupHandler serves persisted device configuration backups.
type BackupHandler struct {
	backups *backup.Manager
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(store storage.Storage) *BackupHandler {
	return &BackupHandler{backups: backup.NewManager(store)}
}

// Get returns one backup by ID, full configuration included.
func (h *BackupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.backups.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// LatestForDevice returns a device's most recent backup.
func (h *BackupHandler) LatestForDevice(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	b, err := h.backups.Latest(r.Context(), host)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// ListForDevice returns a device's backups, newest first.
func (h *BackupHandler) ListForDevice(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	backups, err := h.backups.List(r.Context(), host)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, backups)
}
