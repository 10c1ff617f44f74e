package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"procureflow/internal/platform/metrics"
	"procureflow/internal/platform/middleware"
	"procureflow/internal/transport/http/shared"
	"procureflow/internal/workflow/models"
	"procureflow/internal/workflow/service"
	id "procureflow/pkg/domain"
	dErrors "procureflow/pkg/domain-errors"
)

// Service defines the interface for workflow operations.
type Service interface {
	CreateRecord(ctx context.Context, input service.CreateRecordInput, actor models.Actor) (*models.Record, error)
	GetRecord(ctx context.Context, recordID id.RecordID) (*models.Record, error)
	Apply(ctx context.Context, recordID id.RecordID, action models.Action, actor models.Actor, payload models.Payload) (*models.TransitionResult, error)
	LegalActions(ctx context.Context, recordID id.RecordID, actor models.Actor) ([]models.Action, error)
	History(ctx context.Context, recordID id.RecordID) ([]models.AuditEntry, error)
}

// Handler handles workflow record endpoints.
type Handler struct {
	logger       *slog.Logger
	workflow     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new workflow Handler.
func New(
	workflow Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		workflow:     workflow,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the workflow routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	workflowRouter := chi.NewRouter()
	workflowRouter.Use(middleware.Recovery(h.logger))
	workflowRouter.Use(middleware.RequestID)
	workflowRouter.Use(middleware.Logger(h.logger))
	workflowRouter.Use(middleware.Timeout(30 * time.Second))
	workflowRouter.Use(middleware.ContentTypeJSON)
	workflowRouter.Use(middleware.LatencyMiddleware(h.metrics))
	workflowRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	workflowRouter.Post("/workflow/records", h.handleCreateRecord)
	workflowRouter.Get("/workflow/records/{recordID}", h.handleGetRecord)
	workflowRouter.Post("/workflow/records/{recordID}/actions/{action}", h.handleApplyAction)
	workflowRouter.Get("/workflow/records/{recordID}/actions", h.handleLegalActions)
	workflowRouter.Get("/workflow/records/{recordID}/history", h.handleHistory)

	r.Mount("/", workflowRouter)
}

// createRecordRequest is the body for opening a new workflow record.
type createRecordRequest struct {
	Type              string   `json:"type"`
	RiskLevel         string   `json:"risk_level"`
	RiskScore         float64  `json:"risk_score"`
	AssignedApprovers []string `json:"assigned_approvers,omitempty"`
}

func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var createReq createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&createReq); err != nil {
		h.logger.WarnContext(ctx, "invalid create record request",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.workflow.CreateRecord(ctx, service.CreateRecordInput{
		Type:              models.RecordType(createReq.Type),
		RiskLevel:         models.RiskLevel(createReq.RiskLevel),
		RiskScore:         createReq.RiskScore,
		AssignedApprovers: createReq.AssignedApprovers,
	}, actor)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeValidation) {
			shared.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create record",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to create record"))
		return
	}

	shared.WriteJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	record, err := h.workflow.GetRecord(r.Context(), recordID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleApplyAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	action := models.Action(chi.URLParam(r, "action"))

	// The payload body is optional; actions like submit carry nothing.
	var payload models.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		h.logger.WarnContext(ctx, "invalid action payload",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.workflow.Apply(ctx, recordID, action, actor, payload)
	if err != nil {
		var rejection *models.Rejection
		if errors.As(err, &rejection) {
			shared.WriteRejection(w, rejection)
			return
		}
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			shared.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to apply action",
			"request_id", requestID,
			"record_id", recordID.String(),
			"action", action,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to apply action"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleLegalActions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	actions, err := h.workflow.LegalActions(r.Context(), recordID, actor)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if actions == nil {
		actions = []models.Action{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string][]models.Action{"actions": actions})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	entries, err := h.workflow.History(r.Context(), recordID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string][]models.AuditEntry{"entries": entries})
}

// actor pulls the authenticated actor set by RequireAuth. A missing actor
// means the middleware chain is misconfigured.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok || actor.ID == "" {
		h.logger.ErrorContext(r.Context(), "actor missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return models.Actor{}, false
	}
	return actor, true
}

func (h *Handler) recordID(w http.ResponseWriter, r *http.Request) (id.RecordID, bool) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid record id"))
		return id.RecordID{}, false
	}
	return recordID, true
}
