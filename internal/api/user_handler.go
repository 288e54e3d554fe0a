package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasktrail-api/internal/api/shared"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/service"
)

// UserHandler handles user and team requests.
type UserHandler struct {
	users  service.UserService
	teams  service.TeamService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users service.UserService, teams service.TeamService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for UserHandler")
	}
	return &UserHandler{
		users:  users,
		teams:  teams,
		logger: logger.With(slog.String("component", "user_handler")),
	}
}

// CurrentUser handles GET /user.
func (h *UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}
	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondSuccess(w, r, http.StatusOK, "", userToResponse(user))
}

// CreateUser handles POST /users. The response carries the generated
// password; it is not retrievable afterwards.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.users.Create(r.Context(), req.Input())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondSuccess(w, r, http.StatusOK, "", createdUserToResponse(created))
}

// BulkCreateUsers handles POST /users/bulk. Either every user is created or none.
func (h *UserHandler) BulkCreateUsers(w http.ResponseWriter, r *http.Request) {
	var req BulkCreateUsersRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	inputs := make([]service.UserInput, 0, len(req.Users))
	for _, u := range req.Users {
		inputs = append(inputs, u.Input())
	}

	created, err := h.users.BulkCreate(r.Context(), inputs)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	out := make([]CreatedUserResponse, 0, len(created))
	for _, c := range created {
		out = append(out, createdUserToResponse(c))
	}
	shared.RespondSuccess(w, r, http.StatusOK, fmt.Sprintf("%d users created.", len(out)), out)
}

// ListTeams handles GET /teams.
func (h *UserHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.List(r.Context())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	out := make([]TeamResponse, 0, len(teams))
	for _, t := range teams {
		out = append(out, teamToResponse(t))
	}
	shared.RespondSuccess(w, r, http.StatusOK, "", out)
}

// CreateTeam handles POST /teams.
func (h *UserHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	team, err := h.teams.Create(r.Context(), req.Name)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondSuccess(w, r, http.StatusCreated, "", teamToResponse(team))
}
