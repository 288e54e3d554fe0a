package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/tasktrail-api/internal/api/shared"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/redact"
	"github.com/phrazzld/tasktrail-api/internal/service/auth"
)

// Messages returned with 401 responses.
const (
	MessageMissingToken  = "Authorization header required"
	MessageInvalidFormat = "Invalid authorization format"
	MessageExpiredToken  = "Token expired"
	MessageInvalidToken  = "Invalid token"
	MessageRevokedToken  = "Token revoked"
)

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
	denylist   auth.TokenDenylist
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
// A nil denylist disables revocation checks.
func NewAuthMiddleware(jwtService auth.JWTService, denylist auth.TokenDenylist) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		denylist:   denylist,
	}
}

// Authenticate validates the bearer token from the Authorization header and
// adds the user ID and token ID to the request context for authorized requests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, MessageMissingToken)
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, MessageInvalidFormat)
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), strings.TrimSpace(token))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, MessageExpiredToken)
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenNotYetValid):
				shared.RespondWithError(w, r, http.StatusUnauthorized, MessageInvalidToken)
			default:
				log.Error("failed to validate token", "error", redact.Error(err))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			}
			return
		}

		if m.denylist != nil {
			revoked, err := m.denylist.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				log.Error("failed to check token revocation", "error", redact.Error(err))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
				return
			}
			if revoked {
				shared.RespondWithError(w, r, http.StatusUnauthorized, MessageRevokedToken)
				return
			}
		}

		ctx := shared.WithAuth(r.Context(), claims.UserID, claims.ID, claims.ExpiresAt)
		ctx = logger.WithContext(ctx, log.With("user_id", claims.UserID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the user ID from the request context.
// Returns the user ID and a boolean indicating if it was found.
func GetUserID(r *http.Request) (int64, bool) {
	return shared.UserIDFromContext(r.Context())
}
