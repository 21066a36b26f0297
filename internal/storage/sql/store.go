package sql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/netops-tools/aclpush/internal/domain"
	"github.com/netops-tools/aclpush/internal/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

var _ storage.Storage = (*Store)(nil)

// New creates a new SQL store and runs migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO api_keys (id, name, role, key_hash, key_prefix, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		key.ID, key.Name, key.Role, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.LastUsedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := s.db.GetContext(ctx, &key,
		s.db.Rebind(`SELECT id, name, role, key_hash, key_prefix, created_at, last_used_at FROM api_keys WHERE key_hash = ?`),
		keyHash)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &key, err
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	var keys []*domain.APIKey
	err := s.db.SelectContext(ctx, &keys,
		`SELECT id, name, role, key_hash, key_prefix, created_at, last_used_at FROM api_keys ORDER BY created_at`)
	return keys, err
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM api_keys WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`), time.Now(), id)
	return err
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM api_keys`)
	return count, err
}

// ============================================
// Backups
// ============================================

func (s *Store) CreateBackup(ctx context.Context, backup *domain.Backup) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO backups (id, device_id, run_id, taken_at, config)
		 VALUES (?, ?, ?, ?, ?)`),
		backup.ID, backup.DeviceID, backup.RunID, backup.TakenAt, backup.Config)
	return wrapUniqueError(err)
}

func (s *Store) GetBackup(ctx context.Context, id string) (*domain.Backup, error) {
	var backup domain.Backup
	err := s.db.GetContext(ctx, &backup,
		s.db.Rebind(`SELECT id, device_id, run_id, taken_at, config FROM backups WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &backup, err
}

func (s *Store) LatestBackup(ctx context.Context, deviceID string) (*domain.Backup, error) {
	var backup domain.Backup
	err := s.db.GetContext(ctx, &backup,
		s.db.Rebind(`SELECT id, device_id, run_id, taken_at, config FROM backups
		 WHERE device_id = ? ORDER BY taken_at DESC LIMIT 1`), deviceID)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &backup, err
}

func (s *Store) ListBackups(ctx context.Context, deviceID string) ([]*domain.Backup, error) {
	var backups []*domain.Backup
	err := s.db.SelectContext(ctx, &backups,
		s.db.Rebind(`SELECT id, device_id, run_id, taken_at, config FROM backups
		 WHERE device_id = ? ORDER BY taken_at DESC`), deviceID)
	return backups, err
}

// ============================================
// Runs
// ============================================

func (s *Store) CreateRun(ctx context.Context, run *domain.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO runs (id, mode, actor_name, actor_role, status, report, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.Mode, run.ActorName, run.ActorRole, run.Status, run.Report, run.CreatedAt, run.FinishedAt)
	return wrapUniqueError(err)
}

func (s *Store) FinishRun(ctx context.Context, run *domain.RunRecord) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE runs SET status = ?, report = ?, finished_at = ? WHERE id = ?`),
		run.Status, run.Report, run.FinishedAt, run.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	var run domain.RunRecord
	err := s.db.GetContext(ctx, &run,
		s.db.Rebind(`SELECT id, mode, actor_name, actor_role, status, report, created_at, finished_at
		 FROM runs WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &run, err
}

func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []*domain.RunRecord
	err := s.db.SelectContext(ctx, &runs,
		s.db.Rebind(`SELECT id, mode, actor_name, actor_role, status, report, created_at, finished_at
		 FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`), limit, offset)
	return runs, err
}
