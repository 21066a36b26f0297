// Package backup snapshots a device's configuration before mutation and
// restores it during rollback. Backups are keyed by device and timestamp and
// are immutable once taken.
package backup

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/netops-tools/aclpush/internal/domain"
	"github.com/netops-tools/aclpush/internal/render"
	"github.com/netops-tools/aclpush/internal/storage"
	"github.com/netops-tools/aclpush/internal/transport"
)

// Manager persists and restores device configuration snapshots.
type Manager struct {
	store storage.Storage
}

// NewManager creates a backup manager over the given store.
func NewManager(store storage.Storage) *Manager {
	return &Manager{store: store}
}

// Snapshot reads the device's running configuration and persists it. It is
// invoked immediately before the first mutating command of a run; any failure
// is returned as a *domain.BackupError and the device must not be mutated.
func (m *Manager) Snapshot(ctx context.Context, device domain.Device, runID string, session transport.Session) (*domain.Backup, error) {
	config, err := session.RunningConfig(ctx)
	if err != nil {
		return nil, &domain.BackupError{DeviceID: device.ID(), Err: err}
	}

	b := &domain.Backup{
		ID:       uuid.New().String(),
		DeviceID: device.ID(),
		RunID:    runID,
		TakenAt:  time.Now(),
		Config:   config,
	}
	if err := m.store.CreateBackup(ctx, b); err != nil {
		return nil, &domain.BackupError{DeviceID: device.ID(), Err: err}
	}
	return b, nil
}

// Restore re-applies the backed-up configuration. touchedACLs lists the ACL
// numbers the failed apply may have modified; those are cleared first so the
// replayed backup lines fully define their contents.
func (m *Manager) Restore(ctx context.Context, session transport.Session, backup *domain.Backup, touchedACLs []int) error {
	commands := make([]string, 0, len(touchedACLs))
	for _, acl := range touchedACLs {
		commands = append(commands, render.ClearACL(acl))
	}
	commands = append(commands, ConfigLines(backup.Config)...)
	return session.Send(ctx, commands)
}

// Get returns one backup by ID.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Backup, error) {
	return m.store.GetBackup(ctx, id)
}

// Latest returns a device's most recent backup.
func (m *Manager) Latest(ctx context.Context, deviceID string) (*domain.Backup, error) {
	return m.store.LatestBackup(ctx, deviceID)
}

// List returns a device's backups, newest first.
func (m *Manager) List(ctx context.Context, deviceID string) ([]*domain.Backup, error) {
	return m.store.ListBackups(ctx, deviceID)
}

// ConfigLines splits a configuration into its access-list lines, dropping
// blanks and non-ACL content so restores replay only what this tool manages.
func ConfigLines(config string) []string {
	var out []string
	for _, line := range strings.Split(config, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(strings.TrimSpace(line), "access-list ") {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}
