package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/phrazzld/tasktrail-api/internal/api/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Login(t *testing.T) {
	f := newAPIFixture(t)
	var issuedFor int64
	f.jwt.GenerateTokenFunc = func(ctx context.Context, userID int64) (string, error) {
		issuedFor = userID
		return "signed-token", nil
	}

	rec, env := f.do(t, http.MethodPost, "/login", 0, map[string]any{
		"email":    "ADA@example.com",
		"password": "secret",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	resp := decodeData[LoginResponse](t, env)
	assert.Equal(t, "signed-token", resp.Token)
	assert.Equal(t, f.creator.ID, resp.User.ID)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Equal(t, f.creator.ID, issuedFor)
	assert.NotContains(t, rec.Body.String(), "hashed:")
}

func TestAuthHandler_LoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "wrong password",
			body:       map[string]any{"email": "ada@example.com", "password": "nope"},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    MessageInvalidCredentials,
		},
		{
			name:       "unknown email",
			body:       map[string]any{"email": "ghost@example.com", "password": "secret"},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    MessageInvalidCredentials,
		},
		{
			name:       "invalid email",
			body:       map[string]any{"email": "not-an-email", "password": "secret"},
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    shared.MessageValidationFailed,
		},
		{
			name:       "empty body",
			body:       "",
			wantStatus: http.StatusBadRequest,
			wantMsg:    MessageInvalidRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newAPIFixture(t)

			rec, env := f.do(t, http.MethodPost, "/login", 0, tc.body)

			assert.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			assert.Equal(t, tc.wantMsg, env.Message)
		})
	}
}

func TestAuthHandler_LoginTokenFailure(t *testing.T) {
	f := newAPIFixture(t)
	f.jwt.TokenError = errors.New("signing key unavailable")

	rec, env := f.do(t, http.MethodPost, "/login", 0, map[string]any{
		"email":    "ada@example.com",
		"password": "secret",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, shared.MessageServerError, env.Message)
	assert.NotContains(t, rec.Body.String(), "signing key")
}

func TestAuthHandler_Logout(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodPost, "/logout", f.creator.ID, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, MessageLoggedOut, env.Message)
	revoked, err := f.denylist.IsRevoked(t.Context(), "jti-test")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestAuthHandler_LogoutRequiresUser(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodPost, "/logout", 0, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, MessageUnauthenticated, env.Message)
}
