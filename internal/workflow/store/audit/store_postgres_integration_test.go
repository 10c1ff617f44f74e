//go:build integration

package audit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"procureflow/internal/workflow/models"
	"procureflow/internal/workflow/store/audit"
	id "procureflow/pkg/domain"
	"procureflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = audit.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "workflow_audit_entries")
	s.Require().NoError(err)
}

func newTestEntry(recordID id.RecordID, outcome models.Outcome) *models.AuditEntry {
	return &models.AuditEntry{
		RecordID:  recordID,
		Action:    models.ActionSubmit,
		FromState: models.StateDraft,
		ToState:   models.StatePendingOfficerReview,
		ActorID:   "officer-1",
		ActorRole: models.RoleOfficer,
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		Reason:    "initial submission",
		Outcome:   outcome,
		RequestID: uuid.NewString(),
	}
}

func (s *PostgresStoreSuite) TestAppendAssignsSequence() {
	ctx := context.Background()
	recordID := id.NewRecordID()

	entry := newTestEntry(recordID, models.OutcomeApplied)
	s.Require().NoError(s.store.Append(ctx, entry))
	s.NotEqual(uuid.Nil, entry.ID)
	s.Equal(int64(1), entry.SequenceNo)

	rejected := newTestEntry(recordID, models.OutcomeRejected)
	rejected.RejectionKind = models.RejectionUnauthorized
	rejected.RejectionReason = "role mismatch"
	s.Require().NoError(s.store.Append(ctx, rejected))
	s.Equal(int64(2), rejected.SequenceNo)
}

func (s *PostgresStoreSuite) TestHistoryRoundTrip() {
	ctx := context.Background()
	recordID := id.NewRecordID()

	entry := newTestEntry(recordID, models.OutcomeApplied)
	s.Require().NoError(s.store.Append(ctx, entry))

	history, err := s.store.History(ctx, recordID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	got := history[0]
	s.Equal(entry.ID, got.ID)
	s.Equal(recordID, got.RecordID)
	s.Equal(entry.Action, got.Action)
	s.Equal(entry.FromState, got.FromState)
	s.Equal(entry.ToState, got.ToState)
	s.Equal(entry.ActorID, got.ActorID)
	s.Equal(entry.ActorRole, got.ActorRole)
	s.Equal(entry.Reason, got.Reason)
	s.Equal(entry.Outcome, got.Outcome)
	s.Equal(entry.RequestID, got.RequestID)
}

func (s *PostgresStoreSuite) TestHistoryForUnknownRecordIsEmpty() {
	history, err := s.store.History(context.Background(), id.NewRecordID())
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *PostgresStoreSuite) TestConcurrentAppendsKeepSequenceDense() {
	ctx := context.Background()
	recordID := id.NewRecordID()
	const goroutines = 25

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.Append(ctx, newTestEntry(recordID, models.OutcomeApplied))
		}()
	}
	wg.Wait()
	close(errs)

	failures := 0
	for err := range errs {
		if err != nil {
			failures++
		}
	}

	history, err := s.store.History(ctx, recordID)
	s.Require().NoError(err)
	s.Len(history, goroutines-failures)
	for i, entry := range history {
		s.Equal(int64(i+1), entry.SequenceNo, "sequence must be dense and strictly increasing")
	}
}

func (s *PostgresStoreSuite) TestSequencesAreScopedPerRecord() {
	ctx := context.Background()
	first := id.NewRecordID()
	second := id.NewRecordID()

	entryA := newTestEntry(first, models.OutcomeApplied)
	s.Require().NoError(s.store.Append(ctx, entryA))
	entryB := newTestEntry(second, models.OutcomeApplied)
	s.Require().NoError(s.store.Append(ctx, entryB))

	s.Equal(int64(1), entryA.SequenceNo)
	s.Equal(int64(1), entryB.SequenceNo)
}
