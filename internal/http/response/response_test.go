package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/iep-backend/internal/versioning"
)

func TestRespondServiceErrorStatusMapping(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", versioning.NewError(versioning.CodeValidation, "iep.create_draft", "content must be valid JSON", nil), http.StatusBadRequest, "validation"},
		{"not found", versioning.NewError(versioning.CodeNotFound, "iep.latest", "no versions", nil), http.StatusNotFound, "not_found"},
		{"conflict", versioning.NewError(versioning.CodeConflict, "iep.submit", "only draft plans can be submitted", nil), http.StatusConflict, "conflict"},
		{"retry exhausted", &versioning.RetryExhaustedError{Op: "iep.create_new_version", Attempts: 5}, http.StatusConflict, "retry_exhausted"},
		{"transient", versioning.NewError(versioning.CodeTransient, "iep.create_new_version", "connection reset", nil), http.StatusServiceUnavailable, "transient"},
		{"unclassified", errors.New("pq: deadlock detected"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			RespondServiceError(c, tc.err)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status: want=%d got=%d", tc.wantStatus, rec.Code)
			}
			var envelope ErrorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if envelope.Error.Code != tc.wantCode {
				t.Fatalf("code: want=%q got=%q", tc.wantCode, envelope.Error.Code)
			}
		})
	}
}

// Raw database errors must never reach the response body.
func TestRespondServiceErrorHidesInternals(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	RespondServiceError(c, errors.New(`ERROR: duplicate key value violates unique constraint "idx_iep_scope_version" (SQLSTATE 23505)`))

	var envelope ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Error.Message != "unknown error" {
		t.Fatalf("driver detail leaked: %q", envelope.Error.Message)
	}
}
