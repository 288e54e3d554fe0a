package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/tasktrail-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user and sets its ID.
	// Returns ErrEmailExists if the email is already taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by id. Returns ErrUserNotFound if absent.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by email. Returns ErrUserNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Exists reports whether a user with the id exists.
	Exists(ctx context.Context, id int64) (bool, error)

	// WithTx returns a new UserStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) UserStore
}

// TeamStore defines the interface for team persistence.
type TeamStore interface {
	// Create saves a new team and sets its ID.
	// Returns ErrTeamNameExists if the name is taken.
	Create(ctx context.Context, team *domain.Team) error

	// GetByID retrieves a team. Returns ErrTeamNotFound if absent.
	GetByID(ctx context.Context, id int64) (*domain.Team, error)

	// List returns every team ordered by name.
	List(ctx context.Context) ([]*domain.Team, error)

	// Exists reports whether a team with the id exists.
	Exists(ctx context.Context, id int64) (bool, error)
}
