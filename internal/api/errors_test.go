package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/tasktrail-api/internal/api/shared"
	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/service"
	"github.com/phrazzld/tasktrail-api/internal/service/auth"
	"github.com/phrazzld/tasktrail-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"nil", nil, http.StatusInternalServerError, shared.MessageServerError},
		{"field validation", domain.NewValidationError("title", "is required", nil),
			http.StatusUnprocessableEntity, shared.MessageValidationFailed},
		{"validation list", domain.ValidationErrors{domain.NewValidationError("a", "b", nil)},
			http.StatusUnprocessableEntity, shared.MessageValidationFailed},
		{"invalid credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, MessageInvalidCredentials},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, MessageUnauthenticated},
		{"missing token", auth.ErrMissingToken, http.StatusUnauthorized, MessageUnauthenticated},
		{"expired token", fmt.Errorf("validate: %w", auth.ErrExpiredToken), http.StatusUnauthorized, MessageInvalidToken},
		{"revoked token", auth.ErrRevokedToken, http.StatusUnauthorized, MessageInvalidToken},
		{"not creator", service.ErrNotTaskCreator, http.StatusForbidden, MessageNotTaskCreator},
		{"task not found", service.ErrTaskNotFound, http.StatusNotFound, MessageTaskNotFound},
		{"store task not found", store.ErrTaskNotFound, http.StatusNotFound, MessageTaskNotFound},
		{"user not found", store.ErrUserNotFound, http.StatusNotFound, MessageUserNotFound},
		{"team not found", store.ErrTeamNotFound, http.StatusNotFound, MessageTeamNotFound},
		{"duplicate", store.ErrEmailExists, http.StatusConflict, MessageAlreadyExists},
		{"empty body", shared.ErrEmptyBody, http.StatusBadRequest, MessageInvalidRequest},
		{"invalid id", domain.ErrInvalidID, http.StatusBadRequest, MessageInvalidRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, shared.MessageServerError},
		{
			"service error around a store miss",
			service.NewServiceError("task", "update", "failed to update task", store.ErrTaskNotFound),
			http.StatusInternalServerError, shared.MessageServerError,
		},
		{
			"service error around a duplicate",
			service.NewServiceError("task", "create", "failed to create task", store.ErrTaskTokenExists),
			http.StatusInternalServerError, shared.MessageServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, MapErrorToStatusCode(tc.err))
			assert.Equal(t, tc.message, GetSafeErrorMessage(tc.err))
		})
	}
}

func TestHandleAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantFields map[string][]string
		secret     string
	}{
		{
			name:       "domain validation lists fields",
			err:        domain.ValidationErrors{domain.NewValidationError("title", "is required", nil)},
			wantStatus: http.StatusUnprocessableEntity,
			wantFields: map[string][]string{"title": {"is required"}},
		},
		{
			name:       "validation without field",
			err:        fmt.Errorf("%w: end must follow start", domain.ErrValidation),
			wantStatus: http.StatusUnprocessableEntity,
			wantFields: map[string][]string{"request": {"validation failed: end must follow start"}},
		},
		{
			name: "storage failure stays opaque",
			err: service.NewServiceError("task", "create", "failed to create task",
				errors.New(`pq: relation "tasks" does not exist at 10.0.0.12:5432`)),
			wantStatus: http.StatusInternalServerError,
			secret:     "10.0.0.12",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log, capture := logger.NewCapture()
			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			req = req.WithContext(logger.WithContext(req.Context(), log))
			rec := httptest.NewRecorder()

			HandleAPIError(rec, req, tc.err)

			require.Equal(t, tc.wantStatus, rec.Code)
			var body shared.Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			if tc.wantFields != nil {
				assert.Equal(t, tc.wantFields, body.Errors)
			}
			if tc.secret != "" {
				assert.NotContains(t, rec.Body.String(), tc.secret)
				assert.Equal(t, shared.MessageServerError, body.Message)
				assert.Equal(t, shared.MessageServerErrorHint, body.Error)
				assert.NotEmpty(t, capture.String(), "the failure is logged")
			}
		})
	}
}
