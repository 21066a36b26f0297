package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/netops-tools/aclpush/internal/domain"
	"github.com/netops-tools/aclpush/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing.
type Store struct {
	mu sync.RWMutex

	apiKeys map[string]*domain.APIKey // key: id
	backups map[string]*domain.Backup // key: id
	runs    map[string]*domain.RunRecord
}

var _ storage.Storage = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		apiKeys: make(map[string]*domain.APIKey),
		backups: make(map[string]*domain.Backup),
		runs:    make(map[string]*domain.RunRecord),
	}
}

func (s *Store) Close() error { return nil }

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apiKeys[key.ID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, existing := range s.apiKeys {
		if existing.KeyHash == key.KeyHash {
			return domain.ErrAlreadyExists
		}
	}
	cp := *key
	s.apiKeys[key.ID] = &cp
	return nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.apiKeys {
		if key.KeyHash == keyHash {
			cp := *key
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.APIKey, 0, len(s.apiKeys))
	for _, key := range s.apiKeys {
		cp := *key
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apiKeys[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.apiKeys[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	return nil
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apiKeys), nil
}

// ============================================
// Backups
// ============================================

func (s *Store) CreateBackup(ctx context.Context, backup *domain.Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.backups[backup.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *backup
	s.backups[backup.ID] = &cp
	return nil
}

func (s *Store) GetBackup(ctx context.Context, id string) (*domain.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	backup, ok := s.backups[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *backup
	return &cp, nil
}

func (s *Store) LatestBackup(ctx context.Context, deviceID string) (*domain.Backup, error) {
	backups, err := s.ListBackups(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if len(backups) == 0 {
		return nil, domain.ErrNotFound
	}
	return backups[0], nil
}

func (s *Store) ListBackups(ctx context.Context, deviceID string) ([]*domain.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Backup
	for _, b := range s.backups {
		if b.DeviceID == deviceID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	return out, nil
}

// ============================================
// Runs
// ============================================

func (s *Store) CreateRun(ctx context.Context, run *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *Store) FinishRun(ctx context.Context, run *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.runs[run.ID]
	if !ok {
		return domain.ErrNotFound
	}
	existing.Status = run.Status
	existing.Report = run.Report
	existing.FinishedAt = run.FinishedAt
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
