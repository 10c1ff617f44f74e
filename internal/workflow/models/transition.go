package models

import "fmt"

// Transition is one legal edge in a record type's state graph. Transitions are
// immutable and defined at configuration time; for every (From, Action) pair
// there is at most one transition.
type Transition struct {
	From         State
	Action       Action
	To           State
	RequiredRole Role
	// RequiresReason forces a non-empty reason or comment in the payload
	// (rejections, returns, reopens).
	RequiresReason bool
	// RequiresGateCheck asks the gate evaluator whether an unmet prerequisite
	// currently blocks this transition.
	RequiresGateCheck bool
	// AttachesRiskAcceptance marks the transition that records the risk
	// acceptance sub-record instead of moving the status.
	AttachesRiskAcceptance bool
}

// Key returns the lookup key for determinism checks.
func (t Transition) Key() string {
	return string(t.From) + "/" + string(t.Action)
}

// RejectionKind classifies why a transition attempt was refused. Every kind is
// user-recoverable: the caller sees the reason verbatim and may re-fetch the
// legal action set.
type RejectionKind string

const (
	RejectionInvalidAction          RejectionKind = "invalid_action"
	RejectionUnauthorized           RejectionKind = "unauthorized"
	RejectionReasonRequired         RejectionKind = "reason_required"
	RejectionGateBlocked            RejectionKind = "gate_blocked"
	RejectionConcurrentModification RejectionKind = "concurrent_modification"
	RejectionPersistenceFailure     RejectionKind = "persistence_failure"
)

// Retryable reports whether the caller may safely re-attempt after a
// re-fetch. Only lost version races qualify; everything else needs a changed
// request, not a retry.
func (k RejectionKind) Retryable() bool {
	return k == RejectionConcurrentModification
}

// Rejection is the typed error returned when a transition attempt is refused.
// Rejections are expected outcomes, not faults: each one is also recorded in
// the audit log.
type Rejection struct {
	Kind   RejectionKind
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("transition rejected (%s): %s", r.Kind, r.Reason)
}

// NewRejection builds a Rejection for the given kind and caller-safe reason.
func NewRejection(kind RejectionKind, reason string) *Rejection {
	return &Rejection{Kind: kind, Reason: reason}
}

// TransitionResult is returned on a successful apply: the record's new status
// and the audit entry that recorded it.
type TransitionResult struct {
	RecordID   string     `json:"record_id"`
	Status     State      `json:"status"`
	Version    int64      `json:"version"`
	AuditEntry AuditEntry `json:"audit_entry"`
}

// Payload carries the optional caller-supplied justification and, for the
// submit-risk-acceptance action, the acceptance fields.
type Payload struct {
	Reason         string               `json:"reason,omitempty"`
	Comment        string               `json:"comment,omitempty"`
	RiskAcceptance *RiskAcceptanceInput `json:"risk_acceptance,omitempty"`
}

// Justification returns the reason if present, otherwise the comment.
func (p Payload) Justification() string {
	if p.Reason != "" {
		return p.Reason
	}
	return p.Comment
}

// RiskAcceptanceInput is the caller-supplied body for submit-risk-acceptance.
type RiskAcceptanceInput struct {
	Reason             string `json:"reason"`
	MitigatingControls string `json:"mitigating_controls"`
	ScopeLimitations   string `json:"scope_limitations,omitempty"`
}
