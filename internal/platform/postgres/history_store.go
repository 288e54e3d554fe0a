package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

// PostgresTaskHistoryStore implements store.TaskHistoryStore.
type PostgresTaskHistoryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskHistoryStore creates a PostgresTaskHistoryStore.
func NewPostgresTaskHistoryStore(db store.DBTX, logger *slog.Logger) *PostgresTaskHistoryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskHistoryStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_history_store")),
	}
}

var _ store.TaskHistoryStore = (*PostgresTaskHistoryStore)(nil)

// WithTx returns a store bound to tx.
func (s *PostgresTaskHistoryStore) WithTx(tx *sql.Tx) store.TaskHistoryStore {
	return &PostgresTaskHistoryStore{db: tx, logger: s.logger}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// Create inserts h and sets its ID and timestamps. A missing task or user
// surfaces as store.ErrInvalidEntity.
func (s *PostgresTaskHistoryStore) Create(ctx context.Context, h *domain.TaskHistory) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := h.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO task_histories (task_id, user_id, action, field_changed, old_value, new_value,
			changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		h.TaskID,
		h.UserID,
		h.Action,
		nullString(h.FieldChanged),
		nullString(h.OldValue),
		nullString(h.NewValue),
		h.ChangedAt.UTC(),
		now,
	).Scan(&h.ID)
	if err != nil {
		log.Error("failed to create task history",
			slog.String("error", err.Error()),
			slog.Int64("task_id", h.TaskID),
			slog.String("action", string(h.Action)))
		return MapError(err)
	}

	h.CreatedAt = now
	h.UpdatedAt = now
	return nil
}

// ListByTask returns the live entries of a task ordered by changed_at, then id.
func (s *PostgresTaskHistoryStore) ListByTask(ctx context.Context, taskID int64) ([]*domain.TaskHistory, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, user_id, action, field_changed, old_value, new_value,
			changed_at, created_at, updated_at
		FROM task_histories
		WHERE task_id = $1 AND deleted_at IS NULL
		ORDER BY changed_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list task histories",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	histories := []*domain.TaskHistory{}
	for rows.Next() {
		var (
			h                     domain.TaskHistory
			field, oldVal, newVal sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.TaskID, &h.UserID, &h.Action, &field, &oldVal, &newVal,
			&h.ChangedAt, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, MapError(err)
		}
		if field.Valid {
			h.FieldChanged = &field.String
		}
		if oldVal.Valid {
			h.OldValue = &oldVal.String
		}
		if newVal.Valid {
			h.NewValue = &newVal.String
		}
		h.ChangedAt = h.ChangedAt.UTC()
		h.CreatedAt = h.CreatedAt.UTC()
		h.UpdatedAt = h.UpdatedAt.UTC()
		histories = append(histories, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return histories, nil
}
