package mocks

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

// MockUserStore implements store.UserStore in memory
type MockUserStore struct {
	// Function fields for customizable behavior
	CreateFn     func(ctx context.Context, user *domain.User) error
	GetByEmailFn func(ctx context.Context, email string) (*domain.User, error)
	GetByIDFn    func(ctx context.Context, id int64) (*domain.User, error)

	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64
}

// NewMockUserStore creates a new mock store with initialized defaults
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[int64]*domain.User)}
}

// Seed stores a user with the next id and returns it.
func (m *MockUserStore) Seed(firstName, lastName, email string) *domain.User {
	user := &domain.User{
		FirstName:      firstName,
		LastName:       lastName,
		Email:          strings.ToLower(email),
		HashedPassword: hashPrefix + "secret",
	}
	if err := m.Create(context.Background(), user); err != nil {
		panic(err)
	}
	return user
}

// Create implements the UserStore interface
func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, user)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	m.nextID++
	user.ID = m.nextID
	if user.CreatedAt.IsZero() {
		now := time.Now().UTC()
		user.CreatedAt, user.UpdatedAt = now, now
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

// GetByEmail implements the UserStore interface
func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFn != nil {
		return m.GetByEmailFn(ctx, email)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			found := *u
			return &found, nil
		}
	}
	return nil, store.ErrUserNotFound
}

// GetByID implements the UserStore interface
func (m *MockUserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	found := *u
	return &found, nil
}

// Exists implements the UserStore interface
func (m *MockUserStore) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := m.GetByID(ctx, id)
	if err == store.ErrUserNotFound {
		return false, nil
	}
	return err == nil, err
}

// WithTx returns the same store; the fake has no transactions.
func (m *MockUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return m
}

// All returns every stored user ordered by id.
func (m *MockUserStore) All() []*domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MockTeamStore implements store.TeamStore in memory
type MockTeamStore struct {
	CreateFn func(ctx context.Context, team *domain.Team) error
	ListFn   func(ctx context.Context) ([]*domain.Team, error)

	mu     sync.Mutex
	teams  map[int64]*domain.Team
	nextID int64
}

// NewMockTeamStore creates an empty team store.
func NewMockTeamStore() *MockTeamStore {
	return &MockTeamStore{teams: make(map[int64]*domain.Team)}
}

// Seed stores a team and returns it.
func (m *MockTeamStore) Seed(name string) *domain.Team {
	team, err := domain.NewTeam(name)
	if err != nil {
		panic(err)
	}
	if err := m.Create(context.Background(), team); err != nil {
		panic(err)
	}
	return team
}

// Create implements the TeamStore interface
func (m *MockTeamStore) Create(ctx context.Context, team *domain.Team) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, team)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teams {
		if t.Name == team.Name {
			return store.ErrTeamNameExists
		}
	}
	m.nextID++
	team.ID = m.nextID
	stored := *team
	m.teams[team.ID] = &stored
	return nil
}

// GetByID implements the TeamStore interface
func (m *MockTeamStore) GetByID(ctx context.Context, id int64) (*domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return nil, store.ErrTeamNotFound
	}
	found := *t
	return &found, nil
}

// List implements the TeamStore interface
func (m *MockTeamStore) List(ctx context.Context) ([]*domain.Team, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Team, 0, len(m.teams))
	for _, t := range m.teams {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Exists implements the TeamStore interface
func (m *MockTeamStore) Exists(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.teams[id]
	return ok, nil
}
