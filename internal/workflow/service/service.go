// Package service implements the workflow engine: the orchestrator that
// validates a requested transition against current state, role, and gates,
// applies it atomically with its audit entry, and reports typed rejections.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"procureflow/internal/workflow/definition"
	"procureflow/internal/workflow/gates"
	wfmetrics "procureflow/internal/workflow/metrics"
	"procureflow/internal/workflow/models"
	"procureflow/internal/workflow/roles"
	id "procureflow/pkg/domain"
	dErrors "procureflow/pkg/domain-errors"
	"procureflow/pkg/platform/sentinel"
	"procureflow/pkg/requestcontext"
)

// RecordStore persists record snapshots. Status updates carry the expected
// version; a lost compare-and-swap surfaces as sentinel.ErrVersionConflict.
type RecordStore interface {
	Create(ctx context.Context, record *models.Record) error
	Load(ctx context.Context, recordID id.RecordID) (*models.Record, error)
	UpdateStatus(ctx context.Context, recordID id.RecordID, expectedVersion int64, to models.State, updatedAt time.Time) error
	AttachRiskAcceptance(ctx context.Context, recordID id.RecordID, expectedVersion int64, acceptance *models.RiskAcceptance, updatedAt time.Time) error
}

// AuditStore appends transition attempts. Append assigns the entry's ID and
// per-record sequence number; entries are never modified afterwards.
type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	History(ctx context.Context, recordID id.RecordID) ([]models.AuditEntry, error)
}

// Notifier publishes applied transitions. Best-effort: failures are logged,
// never propagated into the apply path.
type Notifier interface {
	PublishTransition(ctx context.Context, event models.TransitionEvent) error
}

// Engine orchestrates transition attempts. It holds no per-record state; the
// transition tables and gates are read-only after construction and shared
// across concurrent callers.
type Engine struct {
	definitions *definition.Registry
	roles       *roles.Resolver
	gates       *gates.Evaluator
	records     RecordStore
	audit       AuditStore
	tx          StoreTx
	notifier    Notifier
	logger      *slog.Logger
	metrics     *wfmetrics.Metrics
	tracer      trace.Tracer
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *wfmetrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

func WithStoreTx(tx StoreTx) Option {
	return func(e *Engine) {
		e.tx = tx
	}
}

// NewEngine constructs an Engine. Without options it logs nowhere, records no
// metrics, publishes nothing, and serializes mutations with in-process locks.
func NewEngine(defs *definition.Registry, resolver *roles.Resolver, evaluator *gates.Evaluator, records RecordStore, audit AuditStore, opts ...Option) *Engine {
	e := &Engine{
		definitions: defs,
		roles:       resolver,
		gates:       evaluator,
		records:     records,
		audit:       audit,
		tracer:      otel.Tracer("procureflow/workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tx == nil {
		e.tx = NewInMemoryStoreTx()
	}
	return e
}

// CreateRecordInput carries the governed-module fields the engine needs to
// open a record in its initial state.
type CreateRecordInput struct {
	Type              models.RecordType
	RiskLevel         models.RiskLevel
	RiskScore         float64
	AssignedApprovers []string
}

// CreateRecord opens a record in its record type's initial state at version 1.
func (e *Engine) CreateRecord(ctx context.Context, input CreateRecordInput, actor models.Actor) (*models.Record, error) {
	table, ok := e.definitions.Table(input.Type)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown record type: "+string(input.Type))
	}

	now := requestcontext.Now(ctx)
	record := &models.Record{
		ID:                id.NewRecordID(),
		Type:              input.Type,
		Status:            table.Initial,
		Version:           1,
		RiskLevel:         input.RiskLevel,
		RiskScore:         input.RiskScore,
		AssignedApprovers: input.AssignedApprovers,
		CreatedBy:         actor.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := e.records.Create(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create record")
	}
	return record, nil
}

// GetRecord returns the current snapshot.
func (e *Engine) GetRecord(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	record, err := e.records.Load(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
	}
	return record, nil
}

// Apply attempts one transition:
//
//  1. load the current snapshot
//  2. look up the unique transition for (record_type, status, action)
//  3. resolve the actor's roles against the snapshot
//  4. check the mandatory-reason requirement
//  5. evaluate the gate, when the transition asks for one
//  6. persist the status update and the applied audit entry atomically
//
// Steps 2-5 fail as typed Rejections; each rejection is itself audited. A lost
// version race in step 6 is the only retryable rejection.
func (e *Engine) Apply(ctx context.Context, recordID id.RecordID, action models.Action, actor models.Actor, payload models.Payload) (*models.TransitionResult, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "workflow.apply", trace.WithAttributes(
		attribute.String("record.id", recordID.String()),
		attribute.String("workflow.action", string(action)),
	))
	defer span.End()
	defer e.observeApply(start)

	record, err := e.records.Load(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
	}

	transition, ok := e.definitions.Lookup(record.Type, record.Status, action)
	if !ok {
		return nil, e.reject(ctx, record, action, actor, "", payload, models.RejectionInvalidAction,
			fmt.Sprintf("action %q is not available from state %q", action, record.Status))
	}

	resolved := e.roles.Resolve(actor, record)
	if !resolved.Has(transition.RequiredRole) {
		return nil, e.reject(ctx, record, action, actor, "", payload, models.RejectionUnauthorized,
			fmt.Sprintf("action %q requires role %q", action, transition.RequiredRole))
	}

	if transition.RequiresReason && payload.Justification() == "" {
		return nil, e.reject(ctx, record, action, actor, transition.RequiredRole, payload, models.RejectionReasonRequired,
			fmt.Sprintf("action %q requires a reason", action))
	}

	if transition.RequiresGateCheck {
		decision, gateErr := e.gates.Evaluate(record.Type, action, record)
		if gateErr != nil {
			e.logError(ctx, "gate evaluation failed", gateErr, record, action)
		}
		if decision.Blocked {
			return nil, e.reject(ctx, record, action, actor, transition.RequiredRole, payload, models.RejectionGateBlocked, decision.Reason)
		}
	}

	if transition.AttachesRiskAcceptance {
		return e.applyRiskAcceptance(ctx, record, transition, actor, payload)
	}
	return e.applyTransition(ctx, record, transition, actor, payload)
}

// applyTransition runs step 6 for a status-moving transition. Once persistence
// starts the operation runs to completion even if the caller goes away, so the
// status update and its audit entry commit (or fail) together.
func (e *Engine) applyTransition(ctx context.Context, record *models.Record, transition models.Transition, actor models.Actor, payload models.Payload) (*models.TransitionResult, error) {
	entry := e.newEntry(ctx, record, transition.Action, actor, transition.RequiredRole)
	entry.ToState = transition.To
	entry.Reason = payload.Justification()
	entry.Outcome = models.OutcomeApplied

	now := requestcontext.Now(ctx)
	txCtx := withRecordScope(context.WithoutCancel(ctx), record.ID)
	err := e.tx.RunInTx(txCtx, func(txCtx context.Context) error {
		if err := e.records.UpdateStatus(txCtx, record.ID, record.Version, transition.To, now); err != nil {
			return err
		}
		return e.audit.Append(txCtx, entry)
	})
	if err != nil {
		return nil, e.rejectPersistence(ctx, record, transition.Action, actor, transition.RequiredRole, payload, err)
	}

	e.incrementApplied(record.Type, transition.Action)
	e.publishTransition(ctx, record, transition, actor, entry.Timestamp)

	return &models.TransitionResult{
		RecordID:   record.ID.String(),
		Status:     transition.To,
		Version:    record.Version + 1,
		AuditEntry: *entry,
	}, nil
}

// applyRiskAcceptance handles the attach-style action: the status does not
// move, the acceptance sub-record is written once, and the version still
// advances so concurrent transitions observe the change.
func (e *Engine) applyRiskAcceptance(ctx context.Context, record *models.Record, transition models.Transition, actor models.Actor, payload models.Payload) (*models.TransitionResult, error) {
	if record.HasRiskAcceptance() {
		return nil, e.reject(ctx, record, transition.Action, actor, transition.RequiredRole, payload, models.RejectionInvalidAction,
			"risk acceptance already recorded")
	}
	if payload.RiskAcceptance == nil || payload.RiskAcceptance.Reason == "" {
		return nil, e.reject(ctx, record, transition.Action, actor, transition.RequiredRole, payload, models.RejectionReasonRequired,
			"risk acceptance requires a reason")
	}

	now := requestcontext.Now(ctx)
	acceptance := &models.RiskAcceptance{
		Reason:             payload.RiskAcceptance.Reason,
		MitigatingControls: payload.RiskAcceptance.MitigatingControls,
		ScopeLimitations:   payload.RiskAcceptance.ScopeLimitations,
		AcceptedBy:         actor.ID,
		AcceptedAt:         now,
	}

	entry := e.newEntry(ctx, record, transition.Action, actor, transition.RequiredRole)
	entry.ToState = record.Status
	entry.Reason = acceptance.Reason
	entry.Outcome = models.OutcomeApplied

	txCtx := withRecordScope(context.WithoutCancel(ctx), record.ID)
	err := e.tx.RunInTx(txCtx, func(txCtx context.Context) error {
		if err := e.records.AttachRiskAcceptance(txCtx, record.ID, record.Version, acceptance, now); err != nil {
			return err
		}
		return e.audit.Append(txCtx, entry)
	})
	if err != nil {
		return nil, e.rejectPersistence(ctx, record, transition.Action, actor, transition.RequiredRole, payload, err)
	}

	e.incrementApplied(record.Type, transition.Action)

	return &models.TransitionResult{
		RecordID:   record.ID.String(),
		Status:     record.Status,
		Version:    record.Version + 1,
		AuditEntry: *entry,
	}, nil
}

// LegalActions returns the actions the actor may take from the record's
// current state: defined in the table, role-satisfied, and not currently
// blocked by a gate. Used to render available actions without attempting a
// mutation.
func (e *Engine) LegalActions(ctx context.Context, recordID id.RecordID, actor models.Actor) ([]models.Action, error) {
	record, err := e.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	table, ok := e.definitions.Table(record.Type)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInternal, "no transition table for record type "+string(record.Type))
	}

	resolved := e.roles.Resolve(actor, record)
	var actions []models.Action
	for _, transition := range table.From(record.Status) {
		if !resolved.Has(transition.RequiredRole) {
			continue
		}
		if transition.RequiresGateCheck {
			decision, gateErr := e.gates.Evaluate(record.Type, transition.Action, record)
			if gateErr != nil {
				e.logError(ctx, "gate evaluation failed", gateErr, record, transition.Action)
			}
			if decision.Blocked {
				continue
			}
		}
		actions = append(actions, transition.Action)
	}
	return actions, nil
}

// History returns the record's audit trail, oldest first.
func (e *Engine) History(ctx context.Context, recordID id.RecordID) ([]models.AuditEntry, error) {
	if _, err := e.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}
	entries, err := e.audit.History(ctx, recordID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load history")
	}
	return entries, nil
}

func (e *Engine) newEntry(ctx context.Context, record *models.Record, action models.Action, actor models.Actor, role models.Role) *models.AuditEntry {
	return &models.AuditEntry{
		RecordID:  record.ID,
		Action:    action,
		FromState: record.Status,
		ActorID:   actor.ID,
		ActorRole: role,
		Timestamp: requestcontext.Now(ctx),
		RequestID: requestcontext.RequestID(ctx),
	}
}

// reject records a refused attempt in the audit log and returns the typed
// rejection. Audit append failures are logged, not propagated: the caller
// still gets the rejection that actually happened.
func (e *Engine) reject(ctx context.Context, record *models.Record, action models.Action, actor models.Actor, role models.Role, payload models.Payload, kind models.RejectionKind, reason string) error {
	rejection := models.NewRejection(kind, reason)

	entry := e.newEntry(ctx, record, action, actor, role)
	entry.Reason = payload.Justification()
	entry.Outcome = models.OutcomeRejected
	entry.RejectionKind = kind
	entry.RejectionReason = reason

	auditCtx := withRecordScope(context.WithoutCancel(ctx), record.ID)
	if err := e.audit.Append(auditCtx, entry); err != nil {
		e.logError(ctx, "failed to audit rejected attempt", err, record, action)
	}
	e.incrementRejected(record.Type, kind)
	return rejection
}

func (e *Engine) rejectPersistence(ctx context.Context, record *models.Record, action models.Action, actor models.Actor, role models.Role, payload models.Payload, err error) error {
	if errors.Is(err, sentinel.ErrVersionConflict) {
		return e.reject(ctx, record, action, actor, role, payload, models.RejectionConcurrentModification,
			"record was modified concurrently; re-fetch and re-attempt")
	}
	e.logError(ctx, "transition persistence failed", err, record, action)
	e.incrementRejected(record.Type, models.RejectionPersistenceFailure)
	return models.NewRejection(models.RejectionPersistenceFailure, "storage error while applying transition")
}

// publishTransition fans out the applied event without blocking the apply
// path. Delivery is best-effort.
func (e *Engine) publishTransition(ctx context.Context, record *models.Record, transition models.Transition, actor models.Actor, at time.Time) {
	if e.notifier == nil {
		return
	}
	event := models.TransitionEvent{
		RecordID:   record.ID.String(),
		RecordType: string(record.Type),
		Action:     string(transition.Action),
		FromState:  string(record.Status),
		ToState:    string(transition.To),
		ActorID:    actor.ID,
		Timestamp:  at,
	}
	notifyCtx := context.WithoutCancel(ctx)
	go func() {
		notifyCtx, cancel := context.WithTimeout(notifyCtx, 5*time.Second)
		defer cancel()
		if err := e.notifier.PublishTransition(notifyCtx, event); err != nil && e.logger != nil {
			e.logger.WarnContext(notifyCtx, "transition notification failed",
				"record_id", event.RecordID, "action", event.Action, "error", err)
		}
	}()
}

func (e *Engine) logError(ctx context.Context, msg string, err error, record *models.Record, action models.Action) {
	if e.logger == nil {
		return
	}
	e.logger.ErrorContext(ctx, msg,
		"record_id", record.ID.String(),
		"record_type", record.Type,
		"action", action,
		"error", err)
}

func (e *Engine) incrementApplied(recordType models.RecordType, action models.Action) {
	if e.metrics != nil {
		e.metrics.IncrementApplied(string(recordType), string(action))
	}
}

func (e *Engine) incrementRejected(recordType models.RecordType, kind models.RejectionKind) {
	if e.metrics != nil {
		e.metrics.IncrementRejected(string(recordType), string(kind))
	}
}

func (e *Engine) observeApply(start time.Time) {
	if e.metrics != nil {
		e.metrics.ObserveApply(start)
	}
}
