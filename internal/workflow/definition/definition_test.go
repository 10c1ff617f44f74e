package definition

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"procureflow/internal/workflow/models"
)

type DefinitionSuite struct {
	suite.Suite
	registry *Registry
}

func TestDefinitionSuite(t *testing.T) {
	suite.Run(t, new(DefinitionSuite))
}

func (s *DefinitionSuite) SetupTest() {
	var err error
	s.registry, err = Default()
	s.Require().NoError(err)
}

func (s *DefinitionSuite) TestDefaultTablesValidate() {
	for _, rt := range []models.RecordType{
		models.RecordTypeVendorDD,
		models.RecordTypeBusinessRequest,
		models.RecordTypeContract,
		models.RecordTypePaymentAuth,
	} {
		table, ok := s.registry.Table(rt)
		s.Require().True(ok, "missing table for %s", rt)
		s.Equal(models.StateDraft, table.Initial)
	}
}

func (s *DefinitionSuite) TestLookupDeterminism() {
	s.Run("defined pair resolves to exactly one transition", func() {
		tr, ok := s.registry.Lookup(models.RecordTypeVendorDD, models.StatePendingHopApproval, models.ActionHopApproval)
		s.Require().True(ok)
		s.Equal(models.StateApproved, tr.To)
		s.Equal(models.RoleHeadOfProcurement, tr.RequiredRole)
		s.True(tr.RequiresGateCheck)
	})

	s.Run("undefined pair is not found", func() {
		_, ok := s.registry.Lookup(models.RecordTypeVendorDD, models.StateDraft, models.ActionHopApproval)
		s.False(ok)
	})

	s.Run("unknown record type is not found", func() {
		_, ok := s.registry.Lookup(models.RecordType("unknown"), models.StateDraft, models.ActionSubmit)
		s.False(ok)
	})
}

func (s *DefinitionSuite) TestTerminalStates() {
	vendorDD, _ := s.registry.Table(models.RecordTypeVendorDD)
	s.Run("vendor DD rejected has no forward transition at all", func() {
		s.True(vendorDD.IsTerminal(models.StateRejected))
		s.Empty(vendorDD.From(models.StateRejected))
	})
	s.Run("vendor DD approved is terminal", func() {
		s.True(vendorDD.IsTerminal(models.StateApproved))
	})

	request, _ := s.registry.Table(models.RecordTypeBusinessRequest)
	s.Run("final_approved allows only reopen", func() {
		s.True(request.IsTerminal(models.StateFinalApproved))
		out := request.From(models.StateFinalApproved)
		s.Require().Len(out, 1)
		s.Equal(models.ActionReopen, out[0].Action)
		s.Equal(models.RoleProcurementManager, out[0].RequiredRole)
		s.True(out[0].RequiresReason)
	})

	s.Run("returned_for_clarification resubmits directly to pending_review", func() {
		tr, ok := request.Lookup(models.StateReturnedForClarification, models.ActionResubmit)
		s.Require().True(ok)
		s.Equal(models.StatePendingReview, tr.To)
	})
}

func (s *DefinitionSuite) TestMandatoryReasons() {
	for _, rt := range []models.RecordType{
		models.RecordTypeVendorDD,
		models.RecordTypeBusinessRequest,
		models.RecordTypeContract,
		models.RecordTypePaymentAuth,
	} {
		table, _ := s.registry.Table(rt)
		for _, tr := range table.Transitions {
			if tr.Action == models.ActionReject || tr.Action == models.ActionReturn || tr.Action == models.ActionReopen {
				s.True(tr.RequiresReason, "%s: (%s, %s) must require a reason", rt, tr.From, tr.Action)
			}
		}
	}
}

func (s *DefinitionSuite) TestRegistryRejectsBadTables() {
	s.Run("duplicate (from, action) pair", func() {
		_, err := NewRegistry(&Table{
			RecordType: models.RecordTypeBusinessRequest,
			Initial:    models.StateDraft,
			Transitions: []models.Transition{
				{From: models.StateDraft, Action: models.ActionSubmit, To: models.StatePendingReview, RequiredRole: models.RoleRequester},
				{From: models.StateDraft, Action: models.ActionSubmit, To: models.StateReviewed, RequiredRole: models.RoleRequester},
			},
		})
		s.Require().Error(err)
		s.Contains(err.Error(), "duplicate transition")
	})

	s.Run("unreachable state", func() {
		_, err := NewRegistry(&Table{
			RecordType: models.RecordTypeBusinessRequest,
			Initial:    models.StateDraft,
			Transitions: []models.Transition{
				{From: models.StateDraft, Action: models.ActionSubmit, To: models.StatePendingReview, RequiredRole: models.RoleRequester},
				{From: models.StateReviewed, Action: models.ActionApprove, To: models.StateApprovedByApprover, RequiredRole: models.RoleApprover},
			},
		})
		s.Require().Error(err)
		s.Contains(err.Error(), "unreachable")
	})

	s.Run("initial state other than draft", func() {
		_, err := NewRegistry(&Table{
			RecordType: models.RecordTypeBusinessRequest,
			Initial:    models.StatePendingReview,
			Transitions: []models.Transition{
				{From: models.StatePendingReview, Action: models.ActionReview, To: models.StateReviewed, RequiredRole: models.RoleReviewer},
			},
		})
		s.Require().Error(err)
	})

	s.Run("reopen mixed with other outgoing transitions", func() {
		_, err := NewRegistry(&Table{
			RecordType: models.RecordTypeBusinessRequest,
			Initial:    models.StateDraft,
			Transitions: []models.Transition{
				{From: models.StateDraft, Action: models.ActionSubmit, To: models.StateFinalApproved, RequiredRole: models.RoleRequester},
				{From: models.StateFinalApproved, Action: models.ActionReopen, To: models.StateDraft, RequiredRole: models.RoleProcurementManager, RequiresReason: true},
				{From: models.StateFinalApproved, Action: models.ActionApprove, To: models.StateDraft, RequiredRole: models.RoleApprover},
			},
		})
		s.Require().Error(err)
		s.Contains(err.Error(), "mixes reopen")
	})

	s.Run("unknown record type", func() {
		_, err := NewRegistry(&Table{
			RecordType: models.RecordType("mystery"),
			Initial:    models.StateDraft,
			Transitions: []models.Transition{
				{From: models.StateDraft, Action: models.ActionSubmit, To: models.StatePendingReview, RequiredRole: models.RoleRequester},
			},
		})
		s.Require().Error(err)
	})
}
