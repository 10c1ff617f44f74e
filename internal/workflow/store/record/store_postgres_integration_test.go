//go:build integration

package record_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"procureflow/internal/workflow/models"
	"procureflow/internal/workflow/store/record"
	id "procureflow/pkg/domain"
	"procureflow/pkg/platform/sentinel"
	"procureflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *record.PostgresStore
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
	s.store = record.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "workflow_audit_entries", "workflow_records")
	s.Require().NoError(err)
}

func newTestRecord() *models.Record {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Record{
		ID:                id.NewRecordID(),
		Type:              models.RecordTypeVendorDD,
		Status:            models.StateDraft,
		Version:           1,
		RiskLevel:         models.RiskLevelHigh,
		RiskScore:         72.4,
		AssignedApprovers: []string{"approver-1", "approver-2"},
		CreatedBy:         "officer-1",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (s *PostgresStoreSuite) TestCreateAndLoadRoundTrip() {
	ctx := context.Background()
	rec := newTestRecord()

	s.Require().NoError(s.store.Create(ctx, rec))

	loaded, err := s.store.Load(ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(rec.ID, loaded.ID)
	s.Equal(rec.Type, loaded.Type)
	s.Equal(rec.Status, loaded.Status)
	s.Equal(rec.Version, loaded.Version)
	s.Equal(rec.RiskLevel, loaded.RiskLevel)
	s.InDelta(rec.RiskScore, loaded.RiskScore, 0.0001)
	s.Equal(rec.AssignedApprovers, loaded.AssignedApprovers)
	s.Nil(loaded.RiskAcceptance)
}

func (s *PostgresStoreSuite) TestCreateDuplicateConflicts() {
	ctx := context.Background()
	rec := newTestRecord()

	s.Require().NoError(s.store.Create(ctx, rec))
	s.ErrorIs(s.store.Create(ctx, rec), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestLoadMissing() {
	_, err := s.store.Load(context.Background(), id.NewRecordID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateStatusGuardsVersion() {
	ctx := context.Background()
	rec := newTestRecord()
	s.Require().NoError(s.store.Create(ctx, rec))

	err := s.store.UpdateStatus(ctx, rec.ID, 1, models.StatePendingOfficerReview, time.Now().UTC())
	s.Require().NoError(err)

	// Stale version loses.
	err = s.store.UpdateStatus(ctx, rec.ID, 1, models.StateApproved, time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrVersionConflict)

	loaded, err := s.store.Load(ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(models.StatePendingOfficerReview, loaded.Status)
	s.Equal(int64(2), loaded.Version)
}

func (s *PostgresStoreSuite) TestUpdateStatusMissingRecord() {
	err := s.store.UpdateStatus(context.Background(), id.NewRecordID(), 1, models.StateApproved, time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConcurrentUpdatesOneWinner() {
	ctx := context.Background()
	rec := newTestRecord()
	s.Require().NoError(s.store.Create(ctx, rec))

	const goroutines = 20
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.UpdateStatus(ctx, rec.ID, 1, models.StatePendingOfficerReview, time.Now().UTC())
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrVersionConflict) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one update should win the version race")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestAttachRiskAcceptance() {
	ctx := context.Background()
	rec := newTestRecord()
	s.Require().NoError(s.store.Create(ctx, rec))

	acceptance := &models.RiskAcceptance{
		Reason:             "residual risk accepted",
		MitigatingControls: "quarterly re-screening",
		AcceptedBy:         "hop-1",
		AcceptedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.AttachRiskAcceptance(ctx, rec.ID, 1, acceptance, time.Now().UTC()))

	loaded, err := s.store.Load(ctx, rec.ID)
	s.Require().NoError(err)
	s.Require().NotNil(loaded.RiskAcceptance)
	s.Equal(acceptance.Reason, loaded.RiskAcceptance.Reason)
	s.Equal(acceptance.AcceptedBy, loaded.RiskAcceptance.AcceptedBy)
	s.Equal(int64(2), loaded.Version)

	// A second acceptance never overwrites the first.
	err = s.store.AttachRiskAcceptance(ctx, rec.ID, 2, &models.RiskAcceptance{Reason: "other"}, time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrVersionConflict)
}
