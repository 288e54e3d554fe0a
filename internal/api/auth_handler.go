package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasktrail-api/internal/api/shared"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/service"
	"github.com/phrazzld/tasktrail-api/internal/service/auth"
)

// MessageLoggedOut is returned by a successful logout.
const MessageLoggedOut = "Logged out successfully"

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	users      service.UserService
	jwtService auth.JWTService
	denylist   auth.TokenDenylist
	logger     *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(
	users service.UserService,
	jwtService auth.JWTService,
	denylist auth.TokenDenylist,
	logger *slog.Logger,
) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
		denylist:   denylist,
		logger:     logger.With(slog.String("component", "auth_handler")),
	}
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, MessageInvalidCredentials, err,
				shared.WithElevatedLogLevel())
			return
		}
		HandleAPIError(w, r, err)
		return
	}

	token, err := h.jwtService.GenerateToken(r.Context(), user.ID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Info("user logged in", slog.Int64("user_id", user.ID))
	shared.RespondSuccess(w, r, http.StatusOK, "", LoginResponse{
		User:  userToResponse(user),
		Token: token,
	})
}

// Logout handles POST /logout. The presented token stays revoked until it
// would have expired.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}
	tokenID, expiresAt, ok := shared.TokenFromContext(r.Context())
	if !ok {
		HandleAPIError(w, r, auth.ErrMissingToken)
		return
	}

	if err := h.denylist.Revoke(r.Context(), tokenID, expiresAt); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Info("user logged out", slog.Int64("user_id", userID))
	shared.RespondSuccess(w, r, http.StatusOK, MessageLoggedOut, nil)
}
