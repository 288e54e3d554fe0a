package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

// MockTaskStore implements store.TaskStore in memory. Returned tasks are
// copies, so callers can never mutate stored state without calling Update.
type MockTaskStore struct {
	// Function fields for customizable behavior
	CreateFn        func(ctx context.Context, task *domain.Task) error
	UpdateFn        func(ctx context.Context, task *domain.Task) error
	SoftDeleteFn    func(ctx context.Context, id int64, at time.Time) error
	ListFn          func(ctx context.Context, filter store.TaskFilter) (*store.TaskPage, error)
	TokenExistsFn   func(ctx context.Context, token string) (bool, error)
	CountByStatusFn func(ctx context.Context, from, to time.Time) ([]domain.StatusCount, error)

	// UpdateCalls counts successful Update writes.
	UpdateCalls int

	mu     sync.Mutex
	tasks  map[int64]*domain.Task
	nextID int64
}

// NewMockTaskStore creates an empty task store.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[int64]*domain.Task)}
}

func copyTask(t *domain.Task) *domain.Task {
	c := *t
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		c.AssignedTo = &v
	}
	if t.StartTime != nil {
		v := *t.StartTime
		c.StartTime = &v
	}
	if t.DeletedAt != nil {
		v := *t.DeletedAt
		c.DeletedAt = &v
	}
	return &c
}

// Create implements the TaskStore interface
func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}
	if err := task.Validate(); err != nil {
		return store.ErrInvalidEntity
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.Token == task.Token {
			return store.ErrTaskTokenExists
		}
	}
	m.nextID++
	task.ID = m.nextID
	m.tasks[task.ID] = copyTask(task)
	return nil
}

func (m *MockTaskStore) find(match func(*domain.Task) bool) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if match(t) {
			return copyTask(t), nil
		}
	}
	return nil, store.ErrTaskNotFound
}

// GetByToken implements the TaskStore interface
func (m *MockTaskStore) GetByToken(ctx context.Context, token string) (*domain.Task, error) {
	return m.find(func(t *domain.Task) bool { return t.Token == token && !t.IsDeleted() })
}

// GetByTokenWithDeleted implements the TaskStore interface
func (m *MockTaskStore) GetByTokenWithDeleted(ctx context.Context, token string) (*domain.Task, error) {
	return m.find(func(t *domain.Task) bool { return t.Token == token })
}

// TokenExists implements the TaskStore interface
func (m *MockTaskStore) TokenExists(ctx context.Context, token string) (bool, error) {
	if m.TokenExistsFn != nil {
		return m.TokenExistsFn(ctx, token)
	}
	_, err := m.GetByTokenWithDeleted(ctx, token)
	return err == nil, nil
}

// Update implements the TaskStore interface
func (m *MockTaskStore) Update(ctx context.Context, task *domain.Task) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, task)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.tasks[task.ID]
	if !ok || current.IsDeleted() {
		return store.ErrTaskNotFound
	}
	updated := copyTask(task)
	updated.Token = current.Token
	updated.CreatedBy = current.CreatedBy
	updated.CreatedAt = current.CreatedAt
	m.tasks[task.ID] = updated
	m.UpdateCalls++
	return nil
}

// SoftDelete implements the TaskStore interface
func (m *MockTaskStore) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	if m.SoftDeleteFn != nil {
		return m.SoftDeleteFn(ctx, id, at)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.IsDeleted() {
		return store.ErrTaskNotFound
	}
	deletedAt := at.UTC()
	t.DeletedAt = &deletedAt
	return nil
}

// Restore implements the TaskStore interface
func (m *MockTaskStore) Restore(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || !t.IsDeleted() {
		return store.ErrTaskNotFound
	}
	t.DeletedAt = nil
	return nil
}

// List implements the TaskStore interface
func (m *MockTaskStore) List(ctx context.Context, filter store.TaskFilter) (*store.TaskPage, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	f := filter.Normalize()

	m.mu.Lock()
	var matched []*domain.Task
	for _, t := range m.tasks {
		if matches(t, f) {
			matched = append(matched, copyTask(t))
		}
	}
	m.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		c := compareColumn(a, b, f.SortBy)
		if c == 0 {
			c = compareInt(a.ID, b.ID)
		}
		if f.SortDesc {
			return c > 0
		}
		return c < 0
	})

	page := &store.TaskPage{Tasks: []*domain.Task{}, Page: f.Page, PerPage: f.PerPage, Total: int64(len(matched))}
	start := f.Offset()
	if start < len(matched) {
		end := min(start+f.PerPage, len(matched))
		page.Tasks = matched[start:end]
	}
	return page, nil
}

func matches(t *domain.Task, f store.TaskFilter) bool {
	switch {
	case t.IsDeleted():
		return false
	case f.Status != nil && t.Status != *f.Status:
		return false
	case f.Priority != nil && t.Priority != *f.Priority:
		return false
	case f.TeamID != nil && t.TeamID != *f.TeamID:
		return false
	case f.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *f.AssignedTo):
		return false
	case f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy:
		return false
	case f.StartFrom != nil && (t.StartTime == nil || t.StartTime.Before(*f.StartFrom)):
		return false
	case f.EndBefore != nil && t.EndTime.After(*f.EndBefore):
		return false
	}
	return true
}

func compareColumn(a, b *domain.Task, column string) int {
	switch column {
	case "title":
		return compareString(a.Title, b.Title)
	case "status":
		return compareString(string(a.Status), string(b.Status))
	case "priority":
		return compareString(string(a.Priority), string(b.Priority))
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "start_time":
		switch {
		case a.StartTime == nil && b.StartTime == nil:
			return 0
		case a.StartTime == nil:
			return 1
		case b.StartTime == nil:
			return -1
		}
		return a.StartTime.Compare(*b.StartTime)
	case "end_time":
		return a.EndTime.Compare(b.EndTime)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// CountByStatus implements the TaskStore interface
func (m *MockTaskStore) CountByStatus(ctx context.Context, from, to time.Time) ([]domain.StatusCount, error) {
	if m.CountByStatusFn != nil {
		return m.CountByStatusFn(ctx, from, to)
	}

	m.mu.Lock()
	counts := make(map[domain.TaskStatus]int64)
	for _, t := range m.tasks {
		if t.IsDeleted() || t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		counts[t.Status]++
	}
	m.mu.Unlock()

	out := make([]domain.StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, domain.StatusCount{Status: status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

// Put stores task as-is, bypassing validation. Tests use it to seed tasks
// with specific timestamps.
func (m *MockTaskStore) Put(task *domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task.ID == 0 {
		m.nextID++
		task.ID = m.nextID
	} else if task.ID > m.nextID {
		m.nextID = task.ID
	}
	m.tasks[task.ID] = copyTask(task)
}

// Len returns the number of stored tasks, deleted ones included.
func (m *MockTaskStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// WithTx returns the same store; the fake has no transactions.
func (m *MockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}

// MockTaskHistoryStore implements store.TaskHistoryStore in memory
type MockTaskHistoryStore struct {
	CreateFn     func(ctx context.Context, history *domain.TaskHistory) error
	ListByTaskFn func(ctx context.Context, taskID int64) ([]*domain.TaskHistory, error)

	mu        sync.Mutex
	histories []*domain.TaskHistory
	nextID    int64
}

// NewMockTaskHistoryStore creates an empty history store.
func NewMockTaskHistoryStore() *MockTaskHistoryStore {
	return &MockTaskHistoryStore{}
}

// Create implements the TaskHistoryStore interface
func (m *MockTaskHistoryStore) Create(ctx context.Context, history *domain.TaskHistory) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, history)
	}
	if err := history.Validate(); err != nil {
		return store.ErrInvalidEntity
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	history.ID = m.nextID
	now := time.Now().UTC()
	history.CreatedAt, history.UpdatedAt = now, now
	c := *history
	m.histories = append(m.histories, &c)
	return nil
}

// ListByTask implements the TaskHistoryStore interface
func (m *MockTaskHistoryStore) ListByTask(ctx context.Context, taskID int64) ([]*domain.TaskHistory, error) {
	if m.ListByTaskFn != nil {
		return m.ListByTaskFn(ctx, taskID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.TaskHistory{}
	for _, h := range m.histories {
		if h.TaskID == taskID {
			c := *h
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ChangedAt.Equal(out[j].ChangedAt) {
			return out[i].ChangedAt.Before(out[j].ChangedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Len returns how many histories are stored.
func (m *MockTaskHistoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.histories)
}

// WithTx returns the same store; the fake has no transactions.
func (m *MockTaskHistoryStore) WithTx(tx *sql.Tx) store.TaskHistoryStore {
	return m
}
