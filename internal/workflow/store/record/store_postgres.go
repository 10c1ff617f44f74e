package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"procureflow/internal/workflow/models"
	id "procureflow/pkg/domain"
	"procureflow/pkg/platform/sentinel"
	txcontext "procureflow/pkg/platform/tx"
)

// PostgresStore persists records in PostgreSQL. Status updates are guarded by
// the version column: the UPDATE matches on (id, version), and zero affected
// rows means the caller lost the race.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, record *models.Record) error {
	acceptance, err := marshalAcceptance(record.RiskAcceptance)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_records (
			id, record_type, status, version, risk_level, risk_score,
			risk_acceptance, assigned_approvers, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(record.ID),
		string(record.Type),
		string(record.Status),
		record.Version,
		nullString(string(record.RiskLevel)),
		record.RiskScore,
		acceptance,
		pq.Array(record.AssignedApprovers),
		record.CreatedBy,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	query := `
		SELECT id, record_type, status, version, risk_level, risk_score,
		       risk_acceptance, assigned_approvers, created_by, created_at, updated_at
		FROM workflow_records
		WHERE id = $1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(recordID))

	var (
		record     models.Record
		rowID      uuid.UUID
		recordType string
		status     string
		riskLevel  sql.NullString
		acceptance []byte
		approvers  pq.StringArray
	)
	err := row.Scan(
		&rowID,
		&recordType,
		&status,
		&record.Version,
		&riskLevel,
		&record.RiskScore,
		&acceptance,
		&approvers,
		&record.CreatedBy,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load record: %w", err)
	}

	record.ID = id.RecordID(rowID)
	record.Type = models.RecordType(recordType)
	record.Status = models.State(status)
	if riskLevel.Valid {
		record.RiskLevel = models.RiskLevel(riskLevel.String)
	}
	record.AssignedApprovers = []string(approvers)
	if len(acceptance) > 0 {
		var ra models.RiskAcceptance
		if err := json.Unmarshal(acceptance, &ra); err != nil {
			return nil, fmt.Errorf("unmarshal risk acceptance: %w", err)
		}
		record.RiskAcceptance = &ra
	}
	return &record, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, recordID id.RecordID, expectedVersion int64, to models.State, updatedAt time.Time) error {
	query := `
		UPDATE workflow_records
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		string(to), updatedAt, uuid.UUID(recordID), expectedVersion)
	if err != nil {
		return fmt.Errorf("update record status: %w", err)
	}
	return requireOneRow(ctx, s, result, recordID)
}

func (s *PostgresStore) AttachRiskAcceptance(ctx context.Context, recordID id.RecordID, expectedVersion int64, acceptance *models.RiskAcceptance, updatedAt time.Time) error {
	payload, err := marshalAcceptance(acceptance)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_records
		SET risk_acceptance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4 AND risk_acceptance IS NULL
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		payload, updatedAt, uuid.UUID(recordID), expectedVersion)
	if err != nil {
		return fmt.Errorf("attach risk acceptance: %w", err)
	}
	return requireOneRow(ctx, s, result, recordID)
}

// requireOneRow distinguishes a missing record from a lost version race after
// a guarded UPDATE matched nothing.
func requireOneRow(ctx context.Context, s *PostgresStore, result sql.Result, recordID id.RecordID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	err = s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM workflow_records WHERE id = $1)`, uuid.UUID(recordID)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check record existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrVersionConflict
}

func marshalAcceptance(acceptance *models.RiskAcceptance) ([]byte, error) {
	if acceptance == nil {
		return nil, nil
	}
	payload, err := json.Marshal(acceptance)
	if err != nil {
		return nil, fmt.Errorf("marshal risk acceptance: %w", err)
	}
	return payload, nil
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
