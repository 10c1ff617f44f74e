// Package domain holds shared domain primitives: typed identifiers that make
// cross-entity mixups a compile error, parsed at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "procureflow/pkg/domain-errors"
)

// RecordID identifies a governed business record (vendor DD case, contract,
// business request, payment authorization form).
type RecordID uuid.UUID

// ParseRecordID validates and returns a RecordID.
// IDs must be valid, non-nil UUIDs.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return RecordID{}, err
	}
	return RecordID(u), nil
}

func (r RecordID) String() string { return uuid.UUID(r).String() }

func (r RecordID) IsNil() bool { return uuid.UUID(r) == uuid.Nil }

// NewRecordID returns a fresh random RecordID.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// MarshalText encodes the ID as its canonical UUID string.
func (r RecordID) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText parses and validates an ID, rejecting the nil UUID.
func (r *RecordID) UnmarshalText(b []byte) error {
	parsed, err := ParseRecordID(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}
