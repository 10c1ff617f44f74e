package models

import (
	"time"

	"github.com/google/uuid"

	id "procureflow/pkg/domain"
)

// Outcome distinguishes applied transitions from rejected attempts. Both are
// audit-worthy: rejected attempts are security-relevant (repeated unauthorized
// calls must be discoverable).
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeRejected Outcome = "rejected"
)

// AuditEntry is the immutable record of one transition attempt. Entries are
// append-only; SequenceNo is strictly monotonic per record with no gaps across
// applied and rejected entries, and is assigned by the audit store.
type AuditEntry struct {
	ID              uuid.UUID     `json:"id"`
	RecordID        id.RecordID   `json:"record_id"`
	SequenceNo      int64         `json:"sequence_no"`
	Action          Action        `json:"action"`
	FromState       State         `json:"from_state"`
	ToState         State         `json:"to_state,omitempty"`
	ActorID         string        `json:"actor_id"`
	ActorRole       Role          `json:"actor_role,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
	Reason          string        `json:"reason,omitempty"`
	Outcome         Outcome       `json:"outcome"`
	RejectionKind   RejectionKind `json:"rejection_kind,omitempty"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	RequestID       string        `json:"request_id,omitempty"`
}

// TransitionEvent is the notification payload published after a transition is
// applied. Delivery is best-effort; consumers must tolerate loss.
type TransitionEvent struct {
	RecordID   string    `json:"record_id"`
	RecordType string    `json:"record_type"`
	Action     string    `json:"action"`
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	ActorID    string    `json:"actor_id"`
	Timestamp  time.Time `json:"timestamp"`
}
