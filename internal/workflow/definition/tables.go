package definition

import "procureflow/internal/workflow/models"

// Default builds the registry with the four governed record types. Rejected
// vendor DD cases have no forward transition at all; the other types allow an
// explicit reopen by their highest-privileged role, always with a reason.
func Default() (*Registry, error) {
	return NewRegistry(
		VendorDD(),
		BusinessRequest(),
		Contract(),
		PaymentAuthorization(),
	)
}

// VendorDD is the vendor due-diligence flow: officer prepares and submits,
// officer review confirms the (advisory) assessment, head of procurement
// signs off. The hop-approval step is gated: a high-risk vendor needs a risk
// acceptance on file first, recorded via submit-risk-acceptance.
func VendorDD() *Table {
	return &Table{
		RecordType: models.RecordTypeVendorDD,
		Initial:    models.StateDraft,
		Transitions: []models.Transition{
			{From: models.StateDraft, Action: models.ActionSubmit, To: models.StatePendingOfficerReview, RequiredRole: models.RoleOfficer},
			{From: models.StatePendingOfficerReview, Action: models.ActionOfficerReview, To: models.StatePendingHopApproval, RequiredRole: models.RoleOfficer},
			{From: models.StatePendingOfficerReview, Action: models.ActionReject, To: models.StateRejected, RequiredRole: models.RoleOfficer, RequiresReason: true},
			{From: models.StatePendingHopApproval, Action: models.ActionHopApproval, To: models.StateApproved, RequiredRole: models.RoleHeadOfProcurement, RequiresGateCheck: true},
			{From: models.StatePendingHopApproval, Action: models.ActionApproveWithConditions, To: models.StateApprovedWithConditions, RequiredRole: models.RoleHeadOfProcurement, RequiresReason: true, RequiresGateCheck: true},
			{From: models.StatePendingHopApproval, Action: models.ActionReject, To: models.StateRejected, RequiredRole: models.RoleHeadOfProcurement, RequiresReason: true},
			{From: models.StatePendingHopApproval, Action: models.ActionSubmitRiskAcceptance, To: models.StatePendingHopApproval, RequiredRole: models.RoleHeadOfProcurement, AttachesRiskAcceptance: true},
		},
	}
}

// BusinessRequest is the generic multi-level approval flow: submit, review
// with approver assignment, per-approver approval, final approval by the
// procurement manager. Returned requests resubmit directly to pending_review
// without passing through draft.
func BusinessRequest() *Table {
	return &Table{
		RecordType: models.RecordTypeBusinessRequest,
		Initial:    models.StateDraft,
		Transitions: []models.Transition{
			{From: models.StateDraft, Action: models.ActionSubmit, To: models.StatePendingReview, RequiredRole: models.RoleRequester},
			{From: models.StatePendingReview, Action: models.ActionReview, To: models.StateReviewed, RequiredRole: models.RoleReviewer},
			{From: models.StatePendingReview, Action: models.ActionReject, To: models.StateRejected, RequiredRole: models.RoleReviewer, RequiresReason: true},
			{From: models.StatePendingReview, Action: models.ActionReturn, To: models.StateReturnedForClarification, RequiredRole: models.RoleReviewer, RequiresReason: true},
			{From: models.StateReviewed, Action: models.ActionApprove, To: models.StateApprovedByApprover, RequiredRole: models.RoleApprover},
			{From: models.StateReviewed, Action: models.ActionReject, To: models.StateRejected, RequiredRole: models.RoleApprover, RequiresReason: true},
			{From: models.StateReviewed, Action: models.ActionReturn, To: models.StateReturnedForClarification, RequiredRole: models.RoleApprover, RequiresReason: true},
			{From: models.StateApprovedByApprover, Action: models.ActionFinalApprove, To: models.StateFinalApproved, RequiredRole: models.RoleProcurementManager},
			{From: models.StateApprovedByApprover, Action: models.ActionReject, To: models.StateRejected, RequiredRole: models.RoleProcurementManager, RequiresReason: true},
			{From: models.StateApprovedByApprover, Action: models.ActionReturn, To: models.StateReturnedForClarification, RequiredRole: models.RoleProcurementManager, RequiresReason: true},
			{From: models.StateReturnedForClarification, Action: models.ActionResubmit, To: models.StatePendingReview, RequiredRole: models.RoleRequester},
			{From: models.StateFinalApproved, Action: models.ActionReopen, To: models.StateDraft, RequiredRole: models.RoleProcurementManager, RequiresReason: true},
			{From: models.StateRejected, Action: models.ActionReopen, To: models.StateDraft, RequiredRole: models.RoleProcurementManager, RequiresReason: true},
		},
	}
}

// Contract is the contract governance flow: legal review, then governance
// committee sign-off. Governance approval is gated on high-risk contracts
// having a risk acceptance on file.
func Contract() *Table {
	return &Table{
		RecordType: models.RecordTypeContract,
		Initial:    models.StateDraft,
		Transitions: []models.Transition{
			{From: models.StateDraft, Action: models.ActionSubmit, To: models.StatePendingLegalReview, RequiredRole: models.RoleRequester},
			{From: models.StatePendingLegalReview, Action: models.ActionLegalApprove, To: models.StatePendingGovernanceApproval, RequiredRole: models.RoleLegalCounsel},
			{From: models.StatePendingLegalReview, Action: models.ActionReject, To: models.StateRejected, RequiredRole: models.RoleLegalCounsel, RequiresReason: true},
			{From: models.StatePendingGovernanceApproval, Action: models.ActionGovernanceApprove, To: models.StateExecuted, RequiredRole: models.RoleGovernanceCommittee, RequiresGateCheck: true},
			{From: models.StatePendingGovernanceApproval, Action: models.ActionReject, To: models.StateRejected, RequiredRole: models.RoleGovernanceCommittee, RequiresReason: true},
			{From: models.StatePendingGovernanceApproval, Action: models.ActionSubmitRiskAcceptance, To: models.StatePendingGovernanceApproval, RequiredRole: models.RoleGovernanceCommittee, AttachesRiskAcceptance: true},
			{From: models.StateExecuted, Action: models.ActionReopen, To: models.StateDraft, RequiredRole: models.RoleGovernanceCommittee, RequiresReason: true},
			{From: models.StateRejected, Action: models.ActionReopen, To: models.StateDraft, RequiredRole: models.RoleGovernanceCommittee, RequiresReason: true},
		},
	}
}

// PaymentAuthorization is the payment sign-off flow: verification by the
// finance controller, authorization by the treasurer. Authorization is gated
// on high-risk payments having a risk acceptance on file.
func PaymentAuthorization() *Table {
	return &Table{
		RecordType: models.RecordTypePaymentAuth,
		Initial:    models.StateDraft,
		Transitions: []models.Transition{
			{From: models.StateDraft, Action: models.ActionSubmit, To: models.StatePendingVerification, RequiredRole: models.RoleRequester},
			{From: models.StatePendingVerification, Action: models.ActionVerify, To: models.StatePendingAuthorization, RequiredRole: models.RoleFinanceController},
			{From: models.StatePendingVerification, Action: models.ActionReject, To: models.StateRejected, RequiredRole: models.RoleFinanceController, RequiresReason: true},
			{From: models.StatePendingAuthorization, Action: models.ActionAuthorize, To: models.StateAuthorized, RequiredRole: models.RoleTreasurer, RequiresGateCheck: true},
			{From: models.StatePendingAuthorization, Action: models.ActionReject, To: models.StateRejected, RequiredRole: models.RoleTreasurer, RequiresReason: true},
			{From: models.StatePendingAuthorization, Action: models.ActionSubmitRiskAcceptance, To: models.StatePendingAuthorization, RequiredRole: models.RoleTreasurer, AttachesRiskAcceptance: true},
			{From: models.StateAuthorized, Action: models.ActionReopen, To: models.StateDraft, RequiredRole: models.RoleTreasurer, RequiresReason: true},
			{From: models.StateRejected, Action: models.ActionReopen, To: models.StateDraft, RequiredRole: models.RoleTreasurer, RequiresReason: true},
		},
	}
}
