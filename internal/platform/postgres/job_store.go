package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrail-api/internal/job"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

// PostgresJobStore implements job.Store on the jobs table.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a PostgresJobStore.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

var _ job.Store = (*PostgresJobStore)(nil)

// Save inserts j as enqueued.
func (s *PostgresJobStore) Save(ctx context.Context, j job.Job) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
	`, j.ID(), j.Type(), j.Payload(), job.StatusEnqueued, now)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to save job",
			slog.String("job_id", j.ID().String()),
			slog.String("job_type", j.Type()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// UpdateStatus records a status transition. Updating a job that no longer
// exists is a no-op.
func (s *PostgresJobStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status job.Status,
	attempts int,
	errMsg string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, attempts = $2, last_error = $3, updated_at = $4
		WHERE id = $5
	`, status, attempts, sql.NullString{String: errMsg, Valid: errMsg != ""}, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update job status",
			slog.String("job_id", id.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		log.Warn("no job found to update status", slog.String("job_id", id.String()))
	}
	return nil
}

// ListByStatus returns jobs in status, oldest first. A non-zero olderThan
// keeps only jobs not updated within that window.
func (s *PostgresJobStore) ListByStatus(ctx context.Context, status job.Status, olderThan time.Duration) ([]job.Record, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, type, payload, status, attempts, last_error, created_at, updated_at
		FROM jobs
		WHERE status = $1
	`
	args := []any{status}
	if olderThan > 0 {
		query += " AND updated_at < $2"
		args = append(args, time.Now().UTC().Add(-olderThan))
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs by status",
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var records []job.Record
	for rows.Next() {
		var (
			rec     job.Record
			lastErr sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Payload, &rec.Status, &rec.Attempts,
			&lastErr, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, MapError(err)
		}
		rec.LastError = lastErr.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return records, nil
}
