package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

// TypeRecordHistory is the job type of HistoryJob.
const TypeRecordHistory = "task_history.record"

// HistoryEntry is the payload of a history job: one audit record to write.
type HistoryEntry struct {
	TaskID       int64                `json:"task_id"`
	UserID       int64                `json:"user_id"`
	Action       domain.HistoryAction `json:"action"`
	FieldChanged *string              `json:"field_changed,omitempty"`
	OldValue     *string              `json:"old_value,omitempty"`
	NewValue     *string              `json:"new_value,omitempty"`
	// ChangedAt defaults to the time the job is processed when nil.
	ChangedAt *time.Time `json:"changed_at,omitempty"`
}

// toHistory builds the record to persist, stamping now when ChangedAt is unset.
func (e HistoryEntry) toHistory(now time.Time) *domain.TaskHistory {
	changedAt := now.UTC()
	if e.ChangedAt != nil {
		changedAt = e.ChangedAt.UTC()
	}
	return &domain.TaskHistory{
		TaskID:       e.TaskID,
		UserID:       e.UserID,
		Action:       e.Action,
		FieldChanged: e.FieldChanged,
		OldValue:     e.OldValue,
		NewValue:     e.NewValue,
		ChangedAt:    changedAt,
	}
}

// HistoryJob writes exactly one task history record.
type HistoryJob struct {
	id        uuid.UUID
	entry     HistoryEntry
	payload   []byte
	histories store.TaskHistoryStore
	clock     Clock
	logger    *slog.Logger
}

// ID returns the job's unique identifier.
func (j *HistoryJob) ID() uuid.UUID { return j.id }

// Type returns TypeRecordHistory.
func (j *HistoryJob) Type() string { return TypeRecordHistory }

// Payload returns the JSON encoded HistoryEntry.
func (j *HistoryJob) Payload() []byte { return j.payload }

// Entry returns the entry the job will record.
func (j *HistoryJob) Entry() HistoryEntry { return j.entry }

// Execute persists the history record. An entry that can never be stored
// (it fails validation or the store rejects it as invalid) is returned as a
// permanent error so it is not retried.
func (j *HistoryJob) Execute(ctx context.Context) error {
	history := j.entry.toHistory(j.clock.Now())

	if err := history.Validate(); err != nil {
		return backoff.Permanent(fmt.Errorf("invalid history entry: %w", err))
	}

	if err := j.histories.Create(ctx, history); err != nil {
		if errors.Is(err, store.ErrInvalidEntity) {
			return backoff.Permanent(fmt.Errorf("history entry rejected: %w", err))
		}
		return fmt.Errorf("failed to create task history: %w", err)
	}

	j.logger.Info("task history recorded",
		"history_id", history.ID,
		"task_id", history.TaskID,
		"action", history.Action)
	return nil
}

// Submitter queues jobs. *Runner implements it.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// HistoryRecorder turns history entries into queued HistoryJobs.
type HistoryRecorder struct {
	submitter Submitter
	histories store.TaskHistoryStore
	clock     Clock
	logger    *slog.Logger
}

// NewHistoryRecorder creates a recorder that submits jobs to submitter and
// whose jobs write to histories.
func NewHistoryRecorder(
	submitter Submitter,
	histories store.TaskHistoryStore,
	clock Clock,
	logger *slog.Logger,
) *HistoryRecorder {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryRecorder{
		submitter: submitter,
		histories: histories,
		clock:     clock,
		logger:    logger.With("job_type", TypeRecordHistory),
	}
}

// NewJob builds a HistoryJob for entry with a fresh id.
func (r *HistoryRecorder) NewJob(entry HistoryEntry) (*HistoryJob, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history entry: %w", err)
	}
	return r.build(uuid.New(), entry, payload), nil
}

func (r *HistoryRecorder) build(id uuid.UUID, entry HistoryEntry, payload []byte) *HistoryJob {
	return &HistoryJob{
		id:        id,
		entry:     entry,
		payload:   payload,
		histories: r.histories,
		clock:     r.clock,
		logger:    r.logger.With("job_id", id),
	}
}

// Record queues entry for out-of-band persistence and returns once the job
// is stored. The caller never learns whether the record is eventually written.
func (r *HistoryRecorder) Record(ctx context.Context, entry HistoryEntry) error {
	job, err := r.NewJob(entry)
	if err != nil {
		return err
	}
	if err := r.submitter.Submit(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue history job: %w", err)
	}
	return nil
}

// Factory rebuilds HistoryJobs from persisted payloads. Register it with the
// runner under TypeRecordHistory.
func (r *HistoryRecorder) Factory() Factory {
	return func(id uuid.UUID, payload []byte) (Job, error) {
		var entry HistoryEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode history entry: %w", err)
		}
		return r.build(id, entry, payload), nil
	}
}
