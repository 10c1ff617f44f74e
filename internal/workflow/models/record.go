package models

import (
	"time"

	id "procureflow/pkg/domain"
)

// RecordType selects which transition table and gates govern a record.
type RecordType string

const (
	RecordTypeVendorDD        RecordType = "vendor_dd"
	RecordTypeBusinessRequest RecordType = "business_request"
	RecordTypeContract        RecordType = "contract"
	RecordTypePaymentAuth     RecordType = "payment_authorization"
)

// Valid reports whether the record type is one of the governed types.
func (t RecordType) Valid() bool {
	switch t {
	case RecordTypeVendorDD, RecordTypeBusinessRequest, RecordTypeContract, RecordTypePaymentAuth:
		return true
	}
	return false
}

// State is a workflow state. States are shared identifiers across record
// types; each type's transition table decides which subset it uses.
type State string

const (
	StateDraft State = "draft"

	// Vendor due diligence
	StatePendingOfficerReview    State = "pending_officer_review"
	StatePendingHopApproval      State = "pending_hop_approval"
	StateApproved                State = "approved"
	StateApprovedWithConditions  State = "approved_with_conditions"

	// Generic business request
	StatePendingReview             State = "pending_review"
	StateReviewed                  State = "reviewed"
	StateApprovedByApprover        State = "approved_by_approver"
	StateFinalApproved             State = "final_approved"
	StateReturnedForClarification  State = "returned_for_clarification"

	// Contract governance
	StatePendingLegalReview         State = "pending_legal_review"
	StatePendingGovernanceApproval  State = "pending_governance_approval"
	StateExecuted                   State = "executed"

	// Payment authorization
	StatePendingVerification  State = "pending_verification"
	StatePendingAuthorization State = "pending_authorization"
	StateAuthorized           State = "authorized"

	// Shared terminal
	StateRejected State = "rejected"
)

// Action names a requested workflow step.
type Action string

const (
	ActionSubmit                Action = "submit"
	ActionResubmit              Action = "resubmit"
	ActionReview                Action = "review"
	ActionOfficerReview         Action = "officer-review"
	ActionApprove               Action = "approve"
	ActionFinalApprove          Action = "final-approve"
	ActionHopApproval           Action = "hop-approval"
	ActionApproveWithConditions Action = "approve-with-conditions"
	ActionLegalApprove          Action = "legal-approve"
	ActionGovernanceApprove     Action = "governance-approve"
	ActionVerify                Action = "verify"
	ActionAuthorize             Action = "authorize"
	ActionReject                Action = "reject"
	ActionReturn                Action = "return"
	ActionReopen                Action = "reopen"
	ActionSubmitRiskAcceptance  Action = "submit-risk-acceptance"
)

// Role identifies who may perform a transition. Base roles come from the
// identity provider; contextual roles are derived from the record snapshot.
type Role string

const (
	RoleRequester           Role = "requester"
	RoleReviewer            Role = "reviewer"
	RoleApprover            Role = "approver"
	RoleSeniorManager       Role = "senior_manager"
	RoleProcurementManager  Role = "procurement_manager"
	RoleOfficer             Role = "officer"
	RoleHeadOfProcurement   Role = "head_of_procurement"
	RoleLegalCounsel        Role = "legal_counsel"
	RoleGovernanceCommittee Role = "governance_committee"
	RoleFinanceController   Role = "finance_controller"
	RoleTreasurer           Role = "treasurer"
)

// RiskLevel is the advisory risk classification on a record. It is produced
// upstream (AI assessment or manual scoring) and consumed read-only by gates.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// RiskAcceptance is the formal sign-off attached to a high-risk record before
// it can be approved. Created once via the submit-risk-acceptance action;
// subsequent edits are not allowed.
type RiskAcceptance struct {
	Reason             string    `json:"reason"`
	MitigatingControls string    `json:"mitigating_controls"`
	ScopeLimitations   string    `json:"scope_limitations,omitempty"`
	AcceptedBy         string    `json:"accepted_by"`
	AcceptedAt         time.Time `json:"accepted_at"`
}

// Record is the workflow engine's view of a governed business object. The
// engine mutates only Status (and attaches RiskAcceptance); everything else is
// owned by the governing module and read here as an immutable snapshot.
//
// Version is the optimistic-concurrency token: every status change increments
// it, and updates carry the expected version so concurrent transitions cannot
// both succeed from the same starting state.
type Record struct {
	ID                id.RecordID     `json:"id"`
	Type              RecordType      `json:"record_type"`
	Status            State           `json:"status"`
	Version           int64           `json:"version"`
	RiskLevel         RiskLevel       `json:"risk_level,omitempty"`
	RiskScore         float64         `json:"risk_score,omitempty"`
	RiskAcceptance    *RiskAcceptance `json:"risk_acceptance,omitempty"`
	AssignedApprovers []string        `json:"assigned_approvers,omitempty"`
	CreatedBy         string          `json:"created_by"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// HasRiskAcceptance reports whether a risk acceptance sub-record is attached.
func (r *Record) HasRiskAcceptance() bool {
	return r.RiskAcceptance != nil
}

// IsAssignedApprover reports whether the given actor ID appears in the
// record's assigned approver list.
func (r *Record) IsAssignedApprover(actorID string) bool {
	for _, a := range r.AssignedApprovers {
		if a == actorID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so store reads hand out snapshots, never aliases
// into store-owned memory.
func (r *Record) Clone() *Record {
	cp := *r
	if r.RiskAcceptance != nil {
		ra := *r.RiskAcceptance
		cp.RiskAcceptance = &ra
	}
	if r.AssignedApprovers != nil {
		cp.AssignedApprovers = append([]string(nil), r.AssignedApprovers...)
	}
	return &cp
}

// Actor is the acting principal for a transition attempt: identity plus the
// base roles resolved by the authentication collaborator.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Roles []Role `json:"roles"`
}

// HasBaseRole reports whether the actor carries the given base role.
func (a Actor) HasBaseRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}
