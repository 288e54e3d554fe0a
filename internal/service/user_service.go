package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/redact"
	"github.com/phrazzld/tasktrail-api/internal/service/auth"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

// GeneratedPasswordLength is the length of passwords issued to new users.
const GeneratedPasswordLength = 10

// UserInput carries the fields needed to create a user.
type UserInput struct {
	FirstName string
	LastName  string
	Email     string
}

// CreatedUser is a new user together with its one-time plaintext password.
type CreatedUser struct {
	User     *domain.User
	Password string
}

// Passwords hashes and checks user passwords. *auth.BcryptVerifier implements it.
type Passwords interface {
	auth.PasswordHasher
	auth.PasswordVerifier
}

// UserService provides user-related operations
type UserService interface {
	// Create stores a user with a generated password.
	Create(ctx context.Context, in UserInput) (*CreatedUser, error)

	// CreateWithPassword stores a user with the given password.
	CreateWithPassword(ctx context.Context, in UserInput, password string) (*domain.User, error)

	// BulkCreate stores every user in one transaction; any failure stores none.
	BulkCreate(ctx context.Context, inputs []UserInput) ([]*CreatedUser, error)

	// Authenticate returns the user whose email and password match,
	// or ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)

	// GetUser retrieves a user by their ID
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	userStore store.UserStore
	passwords Passwords
	db        *sql.DB
	logger    *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(userStore store.UserStore, passwords Passwords, db *sql.DB, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserServiceImpl{
		userStore: userStore,
		passwords: passwords,
		db:        db,
		logger:    logger.With("component", "user_service"),
	}
}

// Create generates a password for the user and stores it hashed.
func (s *UserServiceImpl) Create(ctx context.Context, in UserInput) (*CreatedUser, error) {
	return s.createGenerated(ctx, s.userStore, in)
}

func (s *UserServiceImpl) createGenerated(ctx context.Context, users store.UserStore, in UserInput) (*CreatedUser, error) {
	password, err := auth.GeneratePassword(GeneratedPasswordLength)
	if err != nil {
		return nil, s.fail(ctx, "create", "failed to generate password", err)
	}
	user, err := s.create(ctx, users, in, password)
	if err != nil {
		return nil, err
	}
	return &CreatedUser{User: user, Password: password}, nil
}

// CreateWithPassword implements UserService.CreateWithPassword
func (s *UserServiceImpl) CreateWithPassword(ctx context.Context, in UserInput, password string) (*domain.User, error) {
	if len(password) < 8 {
		return nil, domain.NewValidationError("password", "must be at least 8 characters", nil)
	}
	return s.create(ctx, s.userStore, in, password)
}

func (s *UserServiceImpl) create(
	ctx context.Context,
	users store.UserStore,
	in UserInput,
	password string,
) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	hashed, err := s.passwords.Hash(password)
	if err != nil {
		return nil, s.fail(ctx, "create", "failed to hash password", err)
	}

	user, err := domain.NewUser(in.FirstName, in.LastName, in.Email, hashed)
	if err != nil {
		return nil, userValidationError(err)
	}

	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			log.Debug("attempted to create user with existing email", "email", user.Email)
			return nil, domain.NewValidationError("email", "has already been taken", nil)
		}
		return nil, s.fail(ctx, "create", "failed to save user", err)
	}

	log.Info("user created", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// userValidationError attaches the offending field to a domain user error.
func userValidationError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyEmail):
		return domain.NewValidationError("email", "is required", err)
	case errors.Is(err, domain.ErrInvalidEmail):
		return domain.NewValidationError("email", "must be a valid email address", err)
	case errors.Is(err, domain.ErrEmptyName):
		return domain.NewValidationError("name", "first and last name are required", err)
	default:
		return domain.NewValidationError("password", "is required", err)
	}
}

// BulkCreate implements UserService.BulkCreate
func (s *UserServiceImpl) BulkCreate(ctx context.Context, inputs []UserInput) ([]*CreatedUser, error) {
	if len(inputs) == 0 {
		return nil, domain.NewValidationError("users", "must contain at least one user", nil)
	}

	var created []*CreatedUser
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.userStore.WithTx(tx)
		created = make([]*CreatedUser, 0, len(inputs))
		for i, in := range inputs {
			c, err := s.createGenerated(ctx, txStore, in)
			if err != nil {
				return prefixValidation(err, fmt.Sprintf("users.%d.", i))
			}
			created = append(created, c)
		}
		return nil
	})
	if err != nil {
		var serviceErr *ServiceError
		if errors.Is(err, domain.ErrValidation) || errors.As(err, &serviceErr) {
			return nil, err
		}
		return nil, s.fail(ctx, "bulk_create", "failed to commit users", err)
	}
	return created, nil
}

// Authenticate implements UserService.Authenticate
func (s *UserServiceImpl) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.userStore.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Debug("login with unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, s.fail(ctx, "authenticate", "failed to look up user", err)
	}

	if err := s.passwords.Compare(user.HashedPassword, password); err != nil {
		log.Debug("login with wrong password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser retrieves a user by their ID
func (s *UserServiceImpl) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, err
		}
		return nil, s.fail(ctx, "get", "failed to retrieve user", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserServiceImpl) fail(ctx context.Context, op, message string, err error) error {
	logger.FromContextOrDefault(ctx, s.logger).Error(message,
		"operation", op,
		"error", redact.Error(err))
	return NewServiceError("user", op, message, err)
}
