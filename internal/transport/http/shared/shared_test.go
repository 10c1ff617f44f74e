package shared

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"procureflow/internal/workflow/models"
	dErrors "procureflow/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})

	t.Run("not found maps to 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeNotFound, "record not found"))

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}

func TestWriteRejection(t *testing.T) {
	cases := []struct {
		kind       models.RejectionKind
		wantStatus int
		retryable  bool
	}{
		{models.RejectionInvalidAction, http.StatusConflict, false},
		{models.RejectionUnauthorized, http.StatusForbidden, false},
		{models.RejectionReasonRequired, http.StatusUnprocessableEntity, false},
		{models.RejectionGateBlocked, http.StatusUnprocessableEntity, false},
		{models.RejectionConcurrentModification, http.StatusConflict, true},
		{models.RejectionPersistenceFailure, http.StatusServiceUnavailable, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, models.NewRejection(tc.kind, "because"))

			if w.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, w.Code)
			}

			var body struct {
				Error     string `json:"error"`
				Reason    string `json:"reason"`
				Retryable bool   `json:"retryable"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body.Error != string(tc.kind) {
				t.Fatalf("expected error %q, got %q", tc.kind, body.Error)
			}
			if body.Reason != "because" {
				t.Fatalf("expected reason to be surfaced verbatim, got %q", body.Reason)
			}
			if body.Retryable != tc.retryable {
				t.Fatalf("expected retryable=%v for %s", tc.retryable, tc.kind)
			}
		})
	}
}
