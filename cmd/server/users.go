package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktrail-api/internal/config"
	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/platform/postgres"
	"github.com/phrazzld/tasktrail-api/internal/service"
	"github.com/phrazzld/tasktrail-api/internal/service/auth"
)

type userFlags struct {
	email     string
	firstName string
	lastName  string
	password  string
}

// createUser bootstraps an account through the user service so the same
// validation and hashing apply as for users created over the API.
func createUser(ctx context.Context, cfg *config.Config, log *slog.Logger, db *sql.DB, f userFlags) (*domain.User, error) {
	users := service.NewUserService(
		postgres.NewPostgresUserStore(db, log),
		auth.NewBcryptVerifier(cfg.Auth.BcryptCost),
		db,
		log,
	)

	user, err := users.CreateWithPassword(ctx, service.UserInput{
		FirstName: f.firstName,
		LastName:  f.lastName,
		Email:     f.email,
	}, f.password)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
