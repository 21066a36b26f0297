package storage

import (
	"context"

	"github.com/netops-tools/aclpush/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use; backups and run records
// follow exclusive-append discipline — written once, never mutated, except
// for a run's single finishing update.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	CountAPIKeys(ctx context.Context) (int, error)

	// Backups
	CreateBackup(ctx context.Context, backup *domain.Backup) error
	GetBackup(ctx context.Context, id string) (*domain.Backup, error)
	LatestBackup(ctx context.Context, deviceID string) (*domain.Backup, error)
	ListBackups(ctx context.Context, deviceID string) ([]*domain.Backup, error)

	// Runs
	CreateRun(ctx context.Context, run *domain.RunRecord) error
	FinishRun(ctx context.Context, run *domain.RunRecord) error
	GetRun(ctx context.Context, id string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*domain.RunRecord, error)
}
