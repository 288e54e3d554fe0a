package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/tasktrail-api/internal/domain"
)

// List paging defaults.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
	DefaultSortBy  = "created_at"
)

// TaskSortColumns is the set of columns a task list may be ordered by.
var TaskSortColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
	"status":     true,
	"priority":   true,
	"start_time": true,
	"end_time":   true,
}

// TaskFilter narrows and orders a task listing. Nil pointer fields are not
// applied. Soft-deleted tasks are always excluded.
type TaskFilter struct {
	Status     *domain.TaskStatus
	Priority   *domain.TaskPriority
	TeamID     *int64
	AssignedTo *int64
	CreatedBy  *int64
	// StartFrom keeps tasks whose start_time is at or after the instant.
	StartFrom *time.Time
	// EndBefore keeps tasks whose end_time is at or before the instant.
	EndBefore *time.Time

	SortBy   string
	SortDesc bool
	Page     int
	PerPage  int
}

// Normalize fills defaults and clamps paging. Unknown sort columns fall back
// to created_at; an empty SortBy also implies descending order.
func (f TaskFilter) Normalize() TaskFilter {
	if f.SortBy == "" {
		f.SortBy = DefaultSortBy
		f.SortDesc = true
	} else if !TaskSortColumns[f.SortBy] {
		f.SortBy = DefaultSortBy
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	return f
}

// Offset returns the row offset of the filter's page.
func (f TaskFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Tasks   []*domain.Task `json:"data"`
	Page    int            `json:"current_page"`
	PerPage int            `json:"per_page"`
	Total   int64          `json:"total"`
}

// TaskStore defines the interface for task persistence.
type TaskStore interface {
	// Create inserts the task and sets its ID.
	// Returns ErrTaskTokenExists if the token is taken.
	Create(ctx context.Context, task *domain.Task) error

	// GetByToken returns the live task with the given token or ErrTaskNotFound.
	GetByToken(ctx context.Context, token string) (*domain.Task, error)

	// GetByTokenWithDeleted also returns soft-deleted tasks.
	GetByTokenWithDeleted(ctx context.Context, token string) (*domain.Task, error)

	// TokenExists reports whether any task, live or deleted, holds token.
	TokenExists(ctx context.Context, token string) (bool, error)

	// Update writes every mutable column of the task in one statement.
	Update(ctx context.Context, task *domain.Task) error

	// SoftDelete sets the deleted marker on a live task.
	SoftDelete(ctx context.Context, id int64, at time.Time) error

	// Restore clears the deleted marker on a soft-deleted task.
	Restore(ctx context.Context, id int64) error

	// List returns one filtered, ordered page of live tasks and the total match count.
	List(ctx context.Context, filter TaskFilter) (*TaskPage, error)

	// CountByStatus counts live tasks created in [from, to) grouped by status,
	// largest group first.
	CountByStatus(ctx context.Context, from, to time.Time) ([]domain.StatusCount, error)

	// WithTx returns a TaskStore bound to the transaction.
	WithTx(tx *sql.Tx) TaskStore
}

// TaskHistoryStore defines the interface for the append-only audit trail.
type TaskHistoryStore interface {
	// Create inserts a history entry and sets its ID.
	Create(ctx context.Context, history *domain.TaskHistory) error

	// ListByTask returns the live entries of a task ordered by changed_at then id.
	ListByTask(ctx context.Context, taskID int64) ([]*domain.TaskHistory, error)

	// WithTx returns a TaskHistoryStore bound to the transaction.
	WithTx(tx *sql.Tx) TaskHistoryStore
}
