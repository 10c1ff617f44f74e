// Package audit persists the append-only transition trail. Sequence numbers
// are assigned at append time, strictly increasing per record with no gaps
// across applied and rejected entries.
package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"procureflow/internal/workflow/models"
	id "procureflow/pkg/domain"
)

// MemoryStore keeps audit trails in a map. Entries are value copies; nothing
// handed out can mutate what was appended.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[id.RecordID][]models.AuditEntry
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[id.RecordID][]models.AuditEntry)}
}

// Append assigns the entry's ID and the record's next sequence number, then
// stores a copy.
func (s *MemoryStore) Append(_ context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uuid.New()
	entry.SequenceNo = int64(len(s.entries[entry.RecordID])) + 1
	s.entries[entry.RecordID] = append(s.entries[entry.RecordID], *entry)
	return nil
}

// History returns the record's entries oldest first.
func (s *MemoryStore) History(_ context.Context, recordID id.RecordID) ([]models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditEntry(nil), s.entries[recordID]...), nil
}
