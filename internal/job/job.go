package job

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a persisted job.
type Status string

// Job states. A job that fails a retryable attempt goes back to
// StatusEnqueued until its retry budget runs out.
const (
	StatusEnqueued  Status = "enqueued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusEnqueued, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// Runner errors.
var (
	ErrQueueFull        = errors.New("job queue is full")
	ErrQueueClosed      = errors.New("job runner is stopped")
	ErrUnknownJobType   = errors.New("unknown job type")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrAttemptTimeout   = errors.New("attempt timed out")
)

// Job is a unit of background work.
type Job interface {
	// ID returns the job's unique identifier.
	ID() uuid.UUID

	// Type returns the job type used to find a Factory on recovery.
	Type() string

	// Payload returns the serialised job input.
	Payload() []byte

	// Execute performs one attempt. Returning an error wrapped with
	// backoff.Permanent stops further attempts.
	Execute(ctx context.Context) error
}

// Record is a job as it is persisted.
type Record struct {
	ID        uuid.UUID
	Type      string
	Payload   []byte
	Status    Status
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists job state.
type Store interface {
	// Save inserts a new job in StatusEnqueued.
	Save(ctx context.Context, job Job) error

	// UpdateStatus records a status transition together with the attempts
	// made so far and the last error message, if any.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, attempts int, errMsg string) error

	// ListByStatus returns jobs in the given status, oldest first. When
	// olderThan is non-zero only jobs whose last update is older than that
	// are returned.
	ListByStatus(ctx context.Context, status Status, olderThan time.Duration) ([]Record, error)
}

// Factory rebuilds a job of one type from its persisted id and payload.
type Factory func(id uuid.UUID, payload []byte) (Job, error)
