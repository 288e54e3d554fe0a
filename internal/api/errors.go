package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/tasktrail-api/internal/api/shared"
	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/service"
	"github.com/phrazzld/tasktrail-api/internal/service/auth"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

// Client-facing messages.
const (
	MessageTaskNotFound       = "Task not found."
	MessageUserNotFound       = "User not found."
	MessageTeamNotFound       = "Team not found."
	MessageNotTaskCreator     = "Only the creator of this task can perform this action."
	MessageInvalidCredentials = "Invalid credentials"
	MessageUnauthenticated    = "Unauthenticated."
	MessageInvalidToken       = "Invalid token"
	MessageAlreadyExists      = "Resource already exists."
	MessageInvalidRequest     = "Invalid request format"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError

	// Wrapped storage failures stay opaque whatever their cause
	case errors.Is(err, service.ErrOperationFailed):
		return http.StatusInternalServerError

	// Validation errors
	case errors.Is(err, domain.ErrValidation),
		shared.ValidationFields(err) != nil:
		return http.StatusUnprocessableEntity

	// Authentication errors
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrRevokedToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrNotTaskCreator):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Malformed requests
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTaskToken),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return shared.MessageServerError
	}

	switch {
	case errors.Is(err, service.ErrOperationFailed):
		return shared.MessageServerError

	case errors.Is(err, domain.ErrValidation),
		shared.ValidationFields(err) != nil:
		return shared.MessageValidationFailed

	case errors.Is(err, service.ErrInvalidCredentials):
		return MessageInvalidCredentials

	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, auth.ErrMissingToken):
		return MessageUnauthenticated

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrRevokedToken):
		return MessageInvalidToken

	case errors.Is(err, service.ErrNotTaskCreator):
		return MessageNotTaskCreator

	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return MessageTaskNotFound

	case errors.Is(err, store.ErrUserNotFound):
		return MessageUserNotFound

	case errors.Is(err, store.ErrTeamNotFound):
		return MessageTeamNotFound

	case errors.Is(err, store.ErrDuplicate):
		return MessageAlreadyExists

	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTaskToken),
		errors.Is(err, shared.ErrEmptyBody):
		return MessageInvalidRequest

	default:
		return shared.MessageServerError
	}
}

// validationFields extracts per-field problems from domain or request
// validation errors. A validation error without a field is reported under
// "request".
func validationFields(err error) map[string][]string {
	if fields := shared.ValidationFields(err); fields != nil {
		return fields
	}
	if fields := domain.FieldErrors(err); len(fields) > 0 {
		return fields
	}
	return map[string][]string{"request": {err.Error()}}
}

// HandleAPIError writes the response for err. Validation failures become a
// 422 listing the offending fields; everything else gets the mapped status
// and a safe message, and the full error is logged.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)
	if status == http.StatusUnprocessableEntity {
		shared.RespondWithValidationErrors(w, r, validationFields(err))
		return
	}
	shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
}
