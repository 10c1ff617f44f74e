package record

import (
	"context"
	"sync"
	"time"

	"procureflow/internal/workflow/models"
	id "procureflow/pkg/domain"
	"procureflow/pkg/platform/sentinel"
)

// MemoryStore keeps record snapshots in a map. Reads hand out clones so
// callers never alias store-owned memory; status updates compare-and-swap on
// the version field like the PostgreSQL store does.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.Record
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[id.RecordID]*models.Record)}
}

func (s *MemoryStore) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, recordID id.RecordID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, recordID id.RecordID, expectedVersion int64, to models.State, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if record.Version != expectedVersion {
		return sentinel.ErrVersionConflict
	}
	record.Status = to
	record.Version++
	record.UpdatedAt = updatedAt
	return nil
}

func (s *MemoryStore) AttachRiskAcceptance(_ context.Context, recordID id.RecordID, expectedVersion int64, acceptance *models.RiskAcceptance, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if record.Version != expectedVersion {
		return sentinel.ErrVersionConflict
	}
	if record.RiskAcceptance != nil {
		return sentinel.ErrInvalidState
	}
	ra := *acceptance
	record.RiskAcceptance = &ra
	record.Version++
	record.UpdatedAt = updatedAt
	return nil
}
