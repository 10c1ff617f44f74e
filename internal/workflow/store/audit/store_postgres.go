package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"procureflow/internal/workflow/models"
	id "procureflow/pkg/domain"
	txcontext "procureflow/pkg/platform/tx"
)

// PostgresStore persists audit entries in PostgreSQL. The next sequence
// number is computed inside the INSERT; a unique constraint on
// (record_id, sequence_no) catches the rare race between two appends for the
// same record, which is retried.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const appendRetries = 3

type dbQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts the entry with the record's next sequence number and fills in
// the assigned ID and sequence number.
func (s *PostgresStore) Append(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO workflow_audit_entries (
			id, record_id, sequence_no, action, from_state, to_state,
			actor_id, actor_role, timestamp, reason,
			outcome, rejection_kind, rejection_reason, request_id
		)
		SELECT $1, $2, COALESCE(MAX(sequence_no), 0) + 1, $3, $4, $5,
		       $6, $7, $8, $9, $10, $11, $12, $13
		FROM workflow_audit_entries
		WHERE record_id = $2
		RETURNING sequence_no
	`

	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		entryID := uuid.New()
		err := s.querier(ctx).QueryRowContext(ctx, query,
			entryID,
			uuid.UUID(entry.RecordID),
			string(entry.Action),
			string(entry.FromState),
			nullString(string(entry.ToState)),
			entry.ActorID,
			nullString(string(entry.ActorRole)),
			entry.Timestamp,
			nullString(entry.Reason),
			string(entry.Outcome),
			nullString(string(entry.RejectionKind)),
			nullString(entry.RejectionReason),
			nullString(entry.RequestID),
		).Scan(&entry.SequenceNo)
		if err == nil {
			entry.ID = entryID
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("insert audit entry: %w", err)
		}
		lastErr = err
	}
	return fmt.Errorf("insert audit entry: sequence contention: %w", lastErr)
}

// History returns the record's entries ordered by sequence number, oldest
// first.
func (s *PostgresStore) History(ctx context.Context, recordID id.RecordID) ([]models.AuditEntry, error) {
	query := `
		SELECT id, record_id, sequence_no, action, from_state, to_state,
		       actor_id, actor_role, timestamp, reason,
		       outcome, rejection_kind, rejection_reason, request_id
		FROM workflow_audit_entries
		WHERE record_id = $1
		ORDER BY sequence_no ASC
	`
	rows, err := s.querier(ctx).QueryContext(ctx, query, uuid.UUID(recordID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			entry           models.AuditEntry
			rowRecordID     uuid.UUID
			toState         sql.NullString
			actorRole       sql.NullString
			reason          sql.NullString
			rejectionKind   sql.NullString
			rejectionReason sql.NullString
			requestID       sql.NullString
		)
		err := rows.Scan(
			&entry.ID,
			&rowRecordID,
			&entry.SequenceNo,
			&entry.Action,
			&entry.FromState,
			&toState,
			&entry.ActorID,
			&actorRole,
			&entry.Timestamp,
			&reason,
			&entry.Outcome,
			&rejectionKind,
			&rejectionReason,
			&requestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.RecordID = id.RecordID(rowRecordID)
		entry.ToState = models.State(toState.String)
		entry.ActorRole = models.Role(actorRole.String)
		entry.Reason = reason.String
		entry.RejectionKind = models.RejectionKind(rejectionKind.String)
		entry.RejectionReason = rejectionReason.String
		entry.RequestID = requestID.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
