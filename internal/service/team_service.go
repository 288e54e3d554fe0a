package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/redact"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

// TeamService provides team operations.
type TeamService interface {
	Create(ctx context.Context, name string) (*domain.Team, error)
	List(ctx context.Context) ([]*domain.Team, error)
}

type teamServiceImpl struct {
	teams  store.TeamStore
	logger *slog.Logger
}

// NewTeamService creates a TeamService.
func NewTeamService(teams store.TeamStore, logger *slog.Logger) TeamService {
	if logger == nil {
		logger = slog.Default()
	}
	return &teamServiceImpl{teams: teams, logger: logger.With("component", "team_service")}
}

func (s *teamServiceImpl) Create(ctx context.Context, name string) (*domain.Team, error) {
	team, err := domain.NewTeam(name)
	if err != nil {
		return nil, domain.NewValidationError("name", "is required", err)
	}

	if err := s.teams.Create(ctx, team); err != nil {
		if errors.Is(err, store.ErrTeamNameExists) {
			return nil, domain.NewValidationError("name", "has already been taken", nil)
		}
		return nil, s.fail(ctx, "create", "failed to save team", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("team created", "team_id", team.ID)
	return team, nil
}

func (s *teamServiceImpl) List(ctx context.Context) ([]*domain.Team, error) {
	teams, err := s.teams.List(ctx)
	if err != nil {
		return nil, s.fail(ctx, "list", "failed to list teams", err)
	}
	return teams, nil
}

func (s *teamServiceImpl) fail(ctx context.Context, op, message string, err error) error {
	logger.FromContextOrDefault(ctx, s.logger).Error(message,
		"operation", op,
		"error", redact.Error(err))
	return NewServiceError("team", op, message, err)
}
