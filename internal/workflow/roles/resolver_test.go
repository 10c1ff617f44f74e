package roles

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"procureflow/internal/workflow/models"
	id "procureflow/pkg/domain"
)

type ResolverSuite struct {
	suite.Suite
	resolver *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.resolver = NewResolver()
}

func (s *ResolverSuite) newRequest() *models.Record {
	return &models.Record{
		ID:        id.NewRecordID(),
		Type:      models.RecordTypeBusinessRequest,
		Status:    models.StateReviewed,
		CreatedBy: "user-1",
	}
}

func (s *ResolverSuite) TestBaseRolesCarryOver() {
	actor := models.Actor{ID: "hop-1", Roles: []models.Role{models.RoleHeadOfProcurement, models.RoleOfficer}}
	set := s.resolver.Resolve(actor, s.newRequest())
	s.True(set.Has(models.RoleHeadOfProcurement))
	s.True(set.Has(models.RoleOfficer))
	s.False(set.Has(models.RoleTreasurer))
}

func (s *ResolverSuite) TestContextualRequester() {
	record := s.newRequest()

	s.Run("creator gains requester", func() {
		set := s.resolver.Resolve(models.Actor{ID: "user-1"}, record)
		s.True(set.Has(models.RoleRequester))
	})

	s.Run("non-creator does not", func() {
		set := s.resolver.Resolve(models.Actor{ID: "user-2"}, record)
		s.False(set.Has(models.RoleRequester))
	})
}

func (s *ResolverSuite) TestContextualApprover() {
	record := s.newRequest()
	record.AssignedApprovers = []string{"appr-1", "appr-2"}

	s.Run("assigned approver gains approver", func() {
		set := s.resolver.Resolve(models.Actor{ID: "appr-2"}, record)
		s.True(set.Has(models.RoleApprover))
	})

	s.Run("senior manager gains approver without assignment", func() {
		actor := models.Actor{ID: "mgr-1", Roles: []models.Role{models.RoleSeniorManager}}
		set := s.resolver.Resolve(actor, record)
		s.True(set.Has(models.RoleApprover))
	})

	s.Run("unassigned actor without senior_manager stays unauthorized", func() {
		set := s.resolver.Resolve(models.Actor{ID: "user-9"}, record)
		s.False(set.Has(models.RoleApprover))
	})

	s.Run("assignment rule does not apply to other record types", func() {
		contract := s.newRequest()
		contract.Type = models.RecordTypeContract
		contract.AssignedApprovers = []string{"appr-1"}
		set := s.resolver.Resolve(models.Actor{ID: "appr-1"}, contract)
		s.False(set.Has(models.RoleApprover))
	})
}

func (s *ResolverSuite) TestNilSnapshot() {
	actor := models.Actor{ID: "user-1", Roles: []models.Role{models.RoleOfficer}}
	set := s.resolver.Resolve(actor, nil)
	s.True(set.Has(models.RoleOfficer))
	s.False(set.Has(models.RoleRequester))
}
