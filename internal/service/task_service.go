package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/events"
	"github.com/phrazzld/tasktrail-api/internal/job"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/redact"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

// createAttempts bounds how often Create draws a new token after losing an
// insert race on the unique token column.
const createAttempts = 3

// TokenGenerator produces public task tokens.
type TokenGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// HistoryRecorder queues one audit entry for out-of-band persistence.
// *job.HistoryRecorder implements it.
type HistoryRecorder interface {
	Record(ctx context.Context, entry job.HistoryEntry) error
}

// UpdateResult is the outcome of TaskService.Update. Changed is false when
// the patch held no value that differs from the stored task; nothing was
// written in that case.
type UpdateResult struct {
	Task    *domain.Task
	Changed bool
	Changes []FieldChange
}

// TaskService provides task operations. Every mutating call takes the id of
// the authenticated user performing it.
type TaskService interface {
	// Create stores a new pending task owned by actorID and queues a created history entry.
	Create(ctx context.Context, actorID int64, in domain.TaskInput) (*domain.Task, error)

	// BulkCreate creates each input in order and stops at the first failure.
	// Tasks created before the failure are kept.
	BulkCreate(ctx context.Context, actorID int64, inputs []domain.TaskInput) ([]*domain.Task, error)

	// Get returns the live task with token.
	Get(ctx context.Context, token string) (*domain.Task, error)

	// List returns a filtered page of live tasks.
	List(ctx context.Context, filter store.TaskFilter) (*store.TaskPage, error)

	// Update applies patch with one write and queues one history entry per changed field.
	Update(ctx context.Context, actorID int64, token string, patch domain.TaskPatch) (*UpdateResult, error)

	// Delete soft deletes the task. Only its creator may delete it.
	Delete(ctx context.Context, actorID int64, token string) error

	// Restore clears the deleted marker of a soft-deleted task. Only its creator may restore it.
	Restore(ctx context.Context, actorID int64, token string) (*domain.Task, error)

	// ListHistory returns the audit trail of a live task, oldest first.
	ListHistory(ctx context.Context, token string) ([]*domain.TaskHistory, error)

	// StatusSummary counts tasks created between the calendar days of from and
	// to, both included, grouped by status with the largest group first.
	StatusSummary(ctx context.Context, from, to time.Time) ([]domain.StatusCount, error)
}

// TaskServiceDeps holds the collaborators of the task service.
type TaskServiceDeps struct {
	Tasks     store.TaskStore
	Histories store.TaskHistoryStore
	Users     store.UserStore
	Teams     store.TeamStore
	Tokens    TokenGenerator
	Recorder  HistoryRecorder
	// Events is optional.
	Events events.EventEmitter
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type taskServiceImpl struct {
	tasks     store.TaskStore
	histories store.TaskHistoryStore
	users     store.UserStore
	teams     store.TeamStore
	tokens    TokenGenerator
	recorder  HistoryRecorder
	events    events.EventEmitter
	logger    *slog.Logger
	now       func() time.Time
}

// NewTaskService creates a TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(deps TaskServiceDeps) (TaskService, error) {
	switch {
	case deps.Tasks == nil:
		return nil, domain.NewValidationError("tasks", "cannot be nil", domain.ErrValidation)
	case deps.Histories == nil:
		return nil, domain.NewValidationError("histories", "cannot be nil", domain.ErrValidation)
	case deps.Users == nil:
		return nil, domain.NewValidationError("users", "cannot be nil", domain.ErrValidation)
	case deps.Teams == nil:
		return nil, domain.NewValidationError("teams", "cannot be nil", domain.ErrValidation)
	case deps.Tokens == nil:
		return nil, domain.NewValidationError("tokens", "cannot be nil", domain.ErrValidation)
	case deps.Recorder == nil:
		return nil, domain.NewValidationError("recorder", "cannot be nil", domain.ErrValidation)
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &taskServiceImpl{
		tasks:     deps.Tasks,
		histories: deps.Histories,
		users:     deps.Users,
		teams:     deps.Teams,
		tokens:    deps.Tokens,
		recorder:  deps.Recorder,
		events:    deps.Events,
		logger:    log.With(slog.String("component", "task_service")),
		now:       now,
	}, nil
}

// fail logs err and wraps it so only the generic kind reaches the caller.
func (s *taskServiceImpl) fail(ctx context.Context, op, message string, err error) error {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Error(message,
		slog.String("operation", op),
		slog.String("error", redact.Error(err)))
	return NewServiceError("task", op, message, err)
}

// Create implements TaskService.Create
func (s *taskServiceImpl) Create(ctx context.Context, actorID int64, in domain.TaskInput) (*domain.Task, error) {
	task, err := s.create(ctx, actorID, in)
	if err != nil {
		return nil, err
	}

	s.record(ctx, job.HistoryEntry{
		TaskID: task.ID,
		UserID: actorID,
		Action: domain.HistoryActionCreated,
	})
	return task, nil
}

func (s *taskServiceImpl) create(ctx context.Context, actorID int64, in domain.TaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(actorID, in)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, "create", task.TeamID, task.AssignedTo); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task.CreatedAt, task.UpdatedAt = now, now

	for attempt := 1; ; attempt++ {
		task.Token, err = s.tokens.Generate(ctx)
		if err != nil {
			return nil, s.fail(ctx, "create", "failed to generate task token", err)
		}

		err = s.tasks.Create(ctx, task)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrTaskTokenExists) || attempt == createAttempts {
			return nil, s.fail(ctx, "create", "failed to save task", err)
		}
		log.Warn("task token taken between check and insert, retrying",
			slog.String("task_token", task.Token),
			slog.Int("attempt", attempt))
	}

	log.Info("task created",
		slog.Int64("task_id", task.ID),
		slog.String("task_token", task.Token),
		slog.Int64("created_by", actorID))
	return task, nil
}

// BulkCreate implements TaskService.BulkCreate
func (s *taskServiceImpl) BulkCreate(
	ctx context.Context,
	actorID int64,
	inputs []domain.TaskInput,
) ([]*domain.Task, error) {
	if len(inputs) == 0 {
		return nil, domain.NewValidationError("tasks", "must contain at least one task", nil)
	}

	created := make([]*domain.Task, 0, len(inputs))
	for i, in := range inputs {
		task, err := s.Create(ctx, actorID, in)
		if err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Warn("bulk create aborted",
				slog.Int("index", i),
				slog.Int("created", len(created)))
			return nil, prefixValidation(err, fmt.Sprintf("tasks.%d.", i))
		}
		created = append(created, task)
	}
	return created, nil
}

// prefixValidation namespaces the fields of a validation error so callers can
// tell which item of a batch failed. Other errors pass through.
func prefixValidation(err error, prefix string) error {
	fields := domain.FieldErrors(err)
	if fields == nil {
		return err
	}
	var out domain.ValidationErrors
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		for _, msg := range fields[name] {
			out.Add(prefix+name, msg)
		}
	}
	return out
}

// Get implements TaskService.Get
func (s *taskServiceImpl) Get(ctx context.Context, token string) (*domain.Task, error) {
	return s.load(ctx, "get", token)
}

// load resolves a token to a live task, mapping a miss to ErrTaskNotFound.
func (s *taskServiceImpl) load(ctx context.Context, op, token string) (*domain.Task, error) {
	if !domain.IsValidTaskToken(token) {
		return nil, ErrTaskNotFound
	}
	task, err := s.tasks.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, s.fail(ctx, op, "failed to load task", err)
	}
	return task, nil
}

// List implements TaskService.List
func (s *taskServiceImpl) List(ctx context.Context, filter store.TaskFilter) (*store.TaskPage, error) {
	page, err := s.tasks.List(ctx, filter.Normalize())
	if err != nil {
		return nil, s.fail(ctx, "list", "failed to list tasks", err)
	}
	return page, nil
}

// Update implements TaskService.Update
func (s *taskServiceImpl) Update(
	ctx context.Context,
	actorID int64,
	token string,
	patch domain.TaskPatch,
) (*UpdateResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.load(ctx, "update", token)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		log.Debug("update supplied no fields", slog.String("task_token", token))
		return &UpdateResult{Task: task, Changed: false}, nil
	}

	next, changes := DetectChanges(task, patch)
	if len(changes) == 0 {
		log.Debug("update carried no effective change", slog.String("task_token", token))
		return &UpdateResult{Task: task, Changed: false}, nil
	}

	if err := next.Validate(); err != nil {
		return nil, err
	}
	if changed(changes, FieldTeam) || changed(changes, FieldAssignedTo) {
		var assignee *int64
		if changed(changes, FieldAssignedTo) {
			assignee = next.AssignedTo
		}
		teamID := int64(0)
		if changed(changes, FieldTeam) {
			teamID = next.TeamID
		}
		if err := s.checkReferences(ctx, "update", teamID, assignee); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	next.UpdatedAt = now
	if err := s.tasks.Update(ctx, next); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, s.fail(ctx, "update", "failed to update task", err)
	}

	for _, c := range changes {
		field := c.Field
		s.record(ctx, job.HistoryEntry{
			TaskID:       next.ID,
			UserID:       actorID,
			Action:       domain.HistoryActionUpdated,
			FieldChanged: &field,
			OldValue:     c.OldValue,
			NewValue:     c.NewValue,
			ChangedAt:    &now,
		})
	}

	if changed(changes, FieldAssignedTo) {
		s.assigneeChanged(ctx, actorID, task, next)
	}

	log.Info("task updated",
		slog.String("task_token", token),
		slog.Int("changed_fields", len(changes)))
	return &UpdateResult{Task: next, Changed: true, Changes: changes}, nil
}

// assigneeChanged publishes the reassignment. Nothing acts on it yet beyond
// the handlers registered at startup, and a failing handler never fails the update.
func (s *taskServiceImpl) assigneeChanged(ctx context.Context, actorID int64, before, after *domain.Task) {
	if s.events == nil {
		return
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	event, err := events.NewTaskEvent(events.TypeTaskAssigneeChanged, after.ID, after.Token, actorID,
		events.AssigneeChange{From: before.AssignedTo, To: after.AssignedTo})
	if err != nil {
		log.Error("failed to build assignee change event", slog.String("error", err.Error()))
		return
	}
	if err := s.events.EmitEvent(ctx, event); err != nil {
		log.Warn("assignee change handler failed",
			slog.String("task_token", after.Token),
			slog.String("error", redact.Error(err)))
	}
}

// Delete implements TaskService.Delete
func (s *taskServiceImpl) Delete(ctx context.Context, actorID int64, token string) error {
	task, err := s.load(ctx, "delete", token)
	if err != nil {
		return err
	}
	if task.CreatedBy != actorID {
		return ErrNotTaskCreator
	}

	now := s.now().UTC()
	if err := s.tasks.SoftDelete(ctx, task.ID, now); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return ErrTaskNotFound
		}
		return s.fail(ctx, "delete", "failed to delete task", err)
	}

	s.record(ctx, job.HistoryEntry{
		TaskID:    task.ID,
		UserID:    actorID,
		Action:    domain.HistoryActionDeleted,
		ChangedAt: &now,
	})

	logger.FromContextOrDefault(ctx, s.logger).Info("task deleted",
		slog.String("task_token", token),
		slog.Int64("deleted_by", actorID))
	return nil
}

// Restore implements TaskService.Restore
func (s *taskServiceImpl) Restore(ctx context.Context, actorID int64, token string) (*domain.Task, error) {
	if !domain.IsValidTaskToken(token) {
		return nil, ErrTaskNotFound
	}
	task, err := s.tasks.GetByTokenWithDeleted(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, s.fail(ctx, "restore", "failed to load task", err)
	}
	if !task.IsDeleted() {
		return nil, ErrTaskNotFound
	}
	if task.CreatedBy != actorID {
		return nil, ErrNotTaskCreator
	}

	if err := s.tasks.Restore(ctx, task.ID); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, s.fail(ctx, "restore", "failed to restore task", err)
	}
	task.DeletedAt = nil

	logger.FromContextOrDefault(ctx, s.logger).Info("task restored",
		slog.String("task_token", token),
		slog.Int64("restored_by", actorID))
	return task, nil
}

// ListHistory implements TaskService.ListHistory
func (s *taskServiceImpl) ListHistory(ctx context.Context, token string) ([]*domain.TaskHistory, error) {
	task, err := s.load(ctx, "list_history", token)
	if err != nil {
		return nil, err
	}
	histories, err := s.histories.ListByTask(ctx, task.ID)
	if err != nil {
		return nil, s.fail(ctx, "list_history", "failed to list task history", err)
	}
	return histories, nil
}

// StatusSummary implements TaskService.StatusSummary
func (s *taskServiceImpl) StatusSummary(ctx context.Context, from, to time.Time) ([]domain.StatusCount, error) {
	start := startOfDay(from)
	end := startOfDay(to).AddDate(0, 0, 1)
	if !end.After(start) {
		return nil, domain.NewValidationError("to", "must be a date after or equal to from", nil)
	}

	counts, err := s.tasks.CountByStatus(ctx, start, end)
	if err != nil {
		return nil, s.fail(ctx, "status_summary", "failed to count tasks by status", err)
	}
	return counts, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// record queues a history entry. The mutation it describes has already been
// written, so a failure to enqueue is logged and otherwise ignored.
func (s *taskServiceImpl) record(ctx context.Context, entry job.HistoryEntry) {
	if entry.ChangedAt == nil {
		now := s.now().UTC()
		entry.ChangedAt = &now
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		log := logger.FromContextOrDefault(ctx, s.logger)
		log.Error("failed to enqueue task history",
			slog.Int64("task_id", entry.TaskID),
			slog.String("action", string(entry.Action)),
			slog.String("error", redact.Error(err)))
	}
}

// checkReferences verifies that a team and an assignee exist. A zero teamID
// or nil assignee skips that check.
func (s *taskServiceImpl) checkReferences(ctx context.Context, op string, teamID int64, assignee *int64) error {
	var errs domain.ValidationErrors

	if teamID > 0 {
		ok, err := s.teams.Exists(ctx, teamID)
		if err != nil {
			return s.fail(ctx, op, "failed to look up team", err)
		}
		if !ok {
			errs.Add("team_id", "does not reference an existing team")
		}
	}
	if assignee != nil {
		ok, err := s.users.Exists(ctx, *assignee)
		if err != nil {
			return s.fail(ctx, op, "failed to look up assignee", err)
		}
		if !ok {
			errs.Add("assigned_to", "does not reference an existing user")
		}
	}

	return errs.Err()
}
