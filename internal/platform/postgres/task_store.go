package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

const taskColumns = `id, task_token, title, description, status, priority, team_id,
	assigned_to, created_by, start_time, end_time, created_at, updated_at, deleted_at`

// PostgresTaskStore implements store.TaskStore.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a PostgresTaskStore. If logger is nil the
// default logger is used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a store bound to tx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t          domain.Task
		assignedTo sql.NullInt64
		startTime  sql.NullTime
		deletedAt  sql.NullTime
	)
	err := row.Scan(
		&t.ID,
		&t.Token,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.TeamID,
		&assignedTo,
		&t.CreatedBy,
		&startTime,
		&t.EndTime,
		&t.CreatedAt,
		&t.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.Int64
	}
	if startTime.Valid {
		st := startTime.Time.UTC()
		t.StartTime = &st
	}
	if deletedAt.Valid {
		dt := deletedAt.Time.UTC()
		t.DeletedAt = &dt
	}
	t.EndTime = t.EndTime.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}

// Create inserts task and sets its ID.
// Returns store.ErrTaskTokenExists on a token collision and
// store.ErrInvalidEntity when a reference or check constraint fails.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_token", task.Token))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (task_token, title, description, status, priority, team_id,
			assigned_to, created_by, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		task.Token,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.TeamID,
		nullInt64(task.AssignedTo),
		task.CreatedBy,
		nullTime(task.StartTime),
		task.EndTime.UTC(),
		task.CreatedAt.UTC(),
		task.UpdatedAt.UTC(),
	).Scan(&task.ID)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_token", task.Token))
		return MapUniqueViolation(err, store.ErrTaskTokenExists)
	}

	log.Debug("task created",
		slog.Int64("task_id", task.ID),
		slog.String("task_token", task.Token))
	return nil
}

// GetByToken returns the live task holding token.
func (s *PostgresTaskStore) GetByToken(ctx context.Context, token string) (*domain.Task, error) {
	return s.getOne(ctx, "task_token = $1 AND deleted_at IS NULL", token)
}

// GetByTokenWithDeleted returns the task holding token even if it is soft deleted.
func (s *PostgresTaskStore) GetByTokenWithDeleted(ctx context.Context, token string) (*domain.Task, error) {
	return s.getOne(ctx, "task_token = $1", token)
}

func (s *PostgresTaskStore) getOne(ctx context.Context, where string, arg any) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := "SELECT " + taskColumns + " FROM tasks WHERE " + where
	task, err := scanTask(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task", slog.String("error", err.Error()), slog.Any("key", arg))
		return nil, MapError(err)
	}
	return task, nil
}

// TokenExists reports whether any task, deleted or not, holds token.
func (s *PostgresTaskStore) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM tasks WHERE task_token = $1)", token).Scan(&exists)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to check task token",
			slog.String("error", err.Error()))
		return false, MapError(err)
	}
	return exists, nil
}

// Update writes every mutable column of a live task in one statement.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4, team_id = $5,
			assigned_to = $6, start_time = $7, end_time = $8, updated_at = $9
		WHERE id = $10 AND deleted_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.TeamID,
		nullInt64(task.AssignedTo),
		nullTime(task.StartTime),
		task.EndTime.UTC(),
		task.UpdatedAt.UTC(),
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", task.ID))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// SoftDelete marks a live task deleted at the given instant.
func (s *PostgresTaskStore) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL",
		at.UTC(), id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// Restore clears the deleted marker of a soft-deleted task.
func (s *PostgresTaskStore) Restore(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET deleted_at = NULL, updated_at = $1 WHERE id = $2 AND deleted_at IS NOT NULL",
		time.Now().UTC(), id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to restore task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// buildTaskWhere turns a filter into a WHERE clause and its arguments.
func buildTaskWhere(f store.TaskFilter) (string, []any) {
	conds := []string{"deleted_at IS NULL"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Priority != nil {
		add("priority = $%d", *f.Priority)
	}
	if f.TeamID != nil {
		add("team_id = $%d", *f.TeamID)
	}
	if f.AssignedTo != nil {
		add("assigned_to = $%d", *f.AssignedTo)
	}
	if f.CreatedBy != nil {
		add("created_by = $%d", *f.CreatedBy)
	}
	if f.StartFrom != nil {
		add("start_time >= $%d", f.StartFrom.UTC())
	}
	if f.EndBefore != nil {
		add("end_time <= $%d", f.EndBefore.UTC())
	}

	return strings.Join(conds, " AND "), args
}

// List returns one page of live tasks matching filter.
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskFilter) (*store.TaskPage, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	f := filter.Normalize()
	where, args := buildTaskWhere(f)

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE "+where, args...).Scan(&total); err != nil {
		log.Error("failed to count tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	// SortBy is checked against store.TaskSortColumns by Normalize.
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d",
		taskColumns, where, f.SortBy, dir, dir, len(args)+1, len(args)+2)
	args = append(args, f.PerPage, f.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0, f.PerPage)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return &store.TaskPage{
		Tasks:   tasks,
		Page:    f.Page,
		PerPage: f.PerPage,
		Total:   total,
	}, nil
}

// CountByStatus counts live tasks created in [from, to) grouped by status.
func (s *PostgresTaskStore) CountByStatus(ctx context.Context, from, to time.Time) ([]domain.StatusCount, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT status, COUNT(*)
		FROM tasks
		WHERE deleted_at IS NULL AND created_at >= $1 AND created_at < $2
		GROUP BY status
		ORDER BY COUNT(*) DESC, status ASC
	`
	rows, err := s.db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		log.Error("failed to count tasks by status", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	counts := []domain.StatusCount{}
	for rows.Next() {
		var c domain.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, MapError(err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return counts, nil
}
