package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netops-tools/aclpush/internal/api/handler"
	"github.com/netops-tools/aclpush/internal/api/middleware"
	"github.com/netops-tools/aclpush/internal/service"
	"github.com/netops-tools/aclpush/internal/storage"
	"github.com/netops-tools/aclpush/internal/validation"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(store storage.Storage, rollout *service.Rollout, bootstrapKey string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus metrics (no auth required)
	r.Handle("/metrics", promhttp.Handler())

	// API routes (auth required, JSON Content-Type)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(store, bootstrapKey))

		// API Keys
		keyHandler := handler.NewAPIKeyHandler(store)
		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Delete("/keys/{id}", keyHandler.Delete)

		// Ruleset validation (no devices touched)
		validateHandler := handler.NewValidateHandler(validation.DefaultPolicy())
		r.Post("/validate", validateHandler.Check)

		// Rollout runs
		runHandler := handler.NewRunHandler(store, rollout)
		r.Post("/runs", runHandler.Create)
		r.Get("/runs", runHandler.List)
		r.Get("/runs/{id}", runHandler.Get)

		// Configuration backups
		backupHandler := handler.NewBackupHandler(store)
		r.Get("/backups/{id}", backupHandler.Get)
		r.Get("/devices/{host}/backups", backupHandler.ListForDevice)
		r.Get("/devices/{host}/backups/latest", backupHandler.LatestForDevice)
	})

	return r
}
