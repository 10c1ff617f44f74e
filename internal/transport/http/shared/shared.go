// Package shared holds the response helpers every handler uses: JSON
// encoding, domain error translation, and the rejection envelope for refused
// workflow transitions.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	"procureflow/internal/workflow/models"
	dErrors "procureflow/pkg/domain-errors"
)

// WriteJSON encodes v with the given status. Encoding failures are ignored;
// the status line has already been sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the JSON envelope for non-rejection errors.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// rejectionResponse is the envelope for refused transitions. The reason is
// surfaced verbatim; retryable tells the caller whether a re-fetch and
// re-attempt can succeed without changing the request.
type rejectionResponse struct {
	Error     string `json:"error"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

// WriteError translates a domain error into an HTTP response. Rejections get
// the rejection envelope; coded domain errors map by code; anything else is an
// opaque internal error.
func WriteError(w http.ResponseWriter, err error) {
	var rejection *models.Rejection
	if errors.As(err, &rejection) {
		WriteRejection(w, rejection)
		return
	}

	var de *dErrors.Error
	if errors.As(err, &de) {
		if de.Code == dErrors.CodeInternal {
			// Internal details stay in logs.
			WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
			return
		}
		WriteJSON(w, statusForCode(de.Code), errorResponse{
			Error:            string(de.Code),
			ErrorDescription: de.Message,
		})
		return
	}

	WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
}

// WriteRejection writes the envelope for a refused transition.
func WriteRejection(w http.ResponseWriter, rejection *models.Rejection) {
	WriteJSON(w, statusForRejection(rejection.Kind), rejectionResponse{
		Error:     string(rejection.Kind),
		Reason:    rejection.Reason,
		Retryable: rejection.Kind.Retryable(),
	})
}

func statusForCode(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeValidation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func statusForRejection(kind models.RejectionKind) int {
	switch kind {
	case models.RejectionInvalidAction, models.RejectionConcurrentModification:
		return http.StatusConflict
	case models.RejectionUnauthorized:
		return http.StatusForbidden
	case models.RejectionReasonRequired, models.RejectionGateBlocked:
		return http.StatusUnprocessableEntity
	case models.RejectionPersistenceFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
