package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/netops-tools/aclpush/internal/api"
	"github.com/netops-tools/aclpush/internal/config"
	"github.com/netops-tools/aclpush/internal/events"
	"github.com/netops-tools/aclpush/internal/service"
	"github.com/netops-tools/aclpush/internal/storage/sql"
	"github.com/netops-tools/aclpush/internal/transport"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		if dir := filepath.Dir(cfg.Database.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				log.Fatalf("Failed to create data directory: %v", err)
			}
		}
	}

	// Initialize storage
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Initialize the device transport (or file shim for testing)
	var dialer transport.Dialer
	if cfg.UseFileShim() {
		log.Printf("Using file shim for device sessions: %s", cfg.Device.FileShim)
		dialer = transport.NewFileDialer(cfg.Device.FileShim)
	} else {
		dialer = transport.NewSSHDialer(cfg.Device.SSHPort)
	}

	// Initialize the rollout service
	rollout := service.NewRollout(store, dialer, events.LogSink{}, service.Options{
		Fanout:    cfg.Rollout.Fanout,
		OpTimeout: cfg.Rollout.OpTimeout,
	})

	// Create router
	router := api.NewRouter(store, rollout, cfg.Auth.BootstrapAPIKey)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // run creation blocks for the whole rollout
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting aclpush on http://%s", cfg.Server.Addr())
	log.Printf("Press Ctrl+C to stop")

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
