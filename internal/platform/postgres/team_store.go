package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

// PostgresTeamStore implements store.TeamStore.
type PostgresTeamStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTeamStore creates a PostgresTeamStore.
func NewPostgresTeamStore(db store.DBTX, logger *slog.Logger) *PostgresTeamStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTeamStore{
		db:     db,
		logger: logger.With(slog.String("component", "team_store")),
	}
}

var _ store.TeamStore = (*PostgresTeamStore)(nil)

// Create inserts team and sets its ID.
func (s *PostgresTeamStore) Create(ctx context.Context, team *domain.Team) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := team.Validate(); err != nil {
		return err
	}

	err := s.db.QueryRowContext(ctx,
		"INSERT INTO teams (name, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id",
		team.Name, team.CreatedAt.UTC(), team.UpdatedAt.UTC(),
	).Scan(&team.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrTeamNameExists
		}
		log.Error("failed to create team", slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetByID returns the team with id.
func (s *PostgresTeamStore) GetByID(ctx context.Context, id int64) (*domain.Team, error) {
	var t domain.Team
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM teams WHERE id = $1", id,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTeamNotFound
		}
		return nil, MapError(err)
	}
	return &t, nil
}

// List returns every team ordered by name.
func (s *PostgresTeamStore) List(ctx context.Context) ([]*domain.Team, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, updated_at FROM teams ORDER BY name ASC")
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list teams",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	teams := []*domain.Team{}
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, MapError(err)
		}
		teams = append(teams, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return teams, nil
}

// Exists reports whether a team with id exists.
func (s *PostgresTeamStore) Exists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, s.db, "SELECT EXISTS (SELECT 1 FROM teams WHERE id = $1)", id)
}
