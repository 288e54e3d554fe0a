package shared

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	RespondSuccess(rec, req, http.StatusOK, "Task deleted successfully.", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"message":"Task deleted successfully."}`, rec.Body.String())
}

func TestRespondSuccessKeepsEmptyList(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	RespondSuccess(rec, req, http.StatusOK, "", []string{})

	assert.JSONEq(t, `{"success":true,"data":[]}`, rec.Body.String())
}

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks/HC-AAAAAA", nil)
	req = req.WithContext(WithTraceID(req.Context(), "abc123"))

	RespondWithError(rec, req, http.StatusNotFound, "Task not found.")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Task not found.", body["message"])
	assert.Equal(t, "abc123", body["trace_id"])
}

func TestRespondWithValidationErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	RespondWithValidationErrors(rec, req, map[string][]string{"title": {"is required"}})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t,
		`{"success":false,"message":"Validation Failed","errors":{"title":["is required"]}}`,
		rec.Body.String())
}

func TestRespondWithErrorAndLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		opts      []ResponseOption
		wantLevel string
		wantHint  bool
	}{
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "ERROR", wantHint: true},
		{name: "client error", status: http.StatusForbidden, wantLevel: "DEBUG"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantLevel: "WARN"},
		{name: "elevated client error", status: http.StatusUnauthorized, opts: []ResponseOption{WithElevatedLogLevel()}, wantLevel: "WARN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log, capture := logger.NewCapture()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil)
			req = req.WithContext(logger.WithContext(req.Context(), log))

			cause := errors.New("dial tcp: postgres://app:hunter2@db:5432/tasks refused")
			RespondWithErrorAndLog(rec, req, tc.status, "Something went wrong.", cause, tc.opts...)

			assert.Equal(t, tc.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "hunter2")
			assert.NotContains(t, rec.Body.String(), "dial tcp")

			body := decodeEnvelope(t, rec)
			if tc.wantHint {
				assert.Equal(t, MessageServerErrorHint, body["error"])
			} else {
				assert.NotContains(t, body, "error")
			}

			entry, ok := capture.Find("API error response")
			require.True(t, ok)
			assert.Equal(t, tc.wantLevel, entry["level"])
			assert.NotContains(t, entry["error"], "hunter2")
		})
	}
}
