package service_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/events"
	"github.com/phrazzld/tasktrail-api/internal/job"
	"github.com/phrazzld/tasktrail-api/internal/mocks"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/service"
	"github.com/phrazzld/tasktrail-api/internal/store"
	"github.com/phrazzld/tasktrail-api/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type taskFixture struct {
	svc       service.TaskService
	tasks     *mocks.MockTaskStore
	histories *mocks.MockTaskHistoryStore
	users     *mocks.MockUserStore
	teams     *mocks.MockTeamStore
	recorder  *mocks.MockHistoryRecorder
	creator   *domain.User
	other     *domain.User
	team      *domain.Team
	now       time.Time
}

func newTaskFixture(t *testing.T, opts ...func(*service.TaskServiceDeps)) *taskFixture {
	t.Helper()

	f := &taskFixture{
		tasks:     mocks.NewMockTaskStore(),
		histories: mocks.NewMockTaskHistoryStore(),
		users:     mocks.NewMockUserStore(),
		teams:     mocks.NewMockTeamStore(),
		recorder:  &mocks.MockHistoryRecorder{},
		now:       time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
	}
	f.creator = f.users.Seed("Ada", "Lovelace", "ada@example.com")
	f.other = f.users.Seed("Alan", "Turing", "alan@example.com")
	f.team = f.teams.Seed("Platform")

	deps := service.TaskServiceDeps{
		Tasks:     f.tasks,
		Histories: f.histories,
		Users:     f.users,
		Teams:     f.teams,
		Tokens:    token.NewGenerator(f.tasks),
		Recorder:  f.recorder,
		Now:       func() time.Time { return f.now },
	}
	for _, opt := range opts {
		opt(&deps)
	}

	svc, err := service.NewTaskService(deps)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *taskFixture) input(title string) domain.TaskInput {
	return domain.TaskInput{
		Title:       title,
		Description: "Something to do",
		Priority:    domain.TaskPriorityLow,
		TeamID:      f.team.ID,
		EndTime:     f.now.Add(72 * time.Hour),
	}
}

func (f *taskFixture) create(t *testing.T, title string) *domain.Task {
	t.Helper()
	task, err := f.svc.Create(context.Background(), f.creator.ID, f.input(title))
	require.NoError(t, err)
	return task
}

func ptr[T any](v T) *T { return &v }

func TestNewTaskServiceRequiresDependencies(t *testing.T) {
	_, err := service.NewTaskService(service.TaskServiceDeps{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateTask(t *testing.T) {
	f := newTaskFixture(t)

	task := f.create(t, "  Ship release  ")

	assert.True(t, domain.IsValidTaskToken(task.Token), "token %q", task.Token)
	assert.Equal(t, "Ship release", task.Title)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, f.creator.ID, task.CreatedBy)
	assert.NotZero(t, task.ID)
	assert.Equal(t, f.now, task.CreatedAt)

	entries := f.recorder.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.HistoryActionCreated, entries[0].Action)
	assert.Equal(t, task.ID, entries[0].TaskID)
	assert.Equal(t, f.creator.ID, entries[0].UserID)
	assert.Nil(t, entries[0].FieldChanged)
	assert.Nil(t, entries[0].OldValue)
	assert.Nil(t, entries[0].NewValue)
	require.NotNil(t, entries[0].ChangedAt)
	assert.Equal(t, f.now, *entries[0].ChangedAt)
}

func TestCreateTaskTokensAreUnique(t *testing.T) {
	f := newTaskFixture(t)

	seen := make(map[string]bool)
	for range 50 {
		task := f.create(t, "Task")
		assert.False(t, seen[task.Token], "duplicate token %s", task.Token)
		seen[task.Token] = true
	}
}

func TestCreateTaskValidation(t *testing.T) {
	f := newTaskFixture(t)

	tests := []struct {
		name   string
		mutate func(in *domain.TaskInput)
		field  string
	}{
		{name: "missing title", mutate: func(in *domain.TaskInput) { in.Title = " " }, field: "title"},
		{name: "bad priority", mutate: func(in *domain.TaskInput) { in.Priority = "urgent" }, field: "priority"},
		{name: "end before start", mutate: func(in *domain.TaskInput) {
			start := in.EndTime.Add(time.Hour)
			in.StartTime = &start
		}, field: "end_time"},
		{name: "unknown team", mutate: func(in *domain.TaskInput) { in.TeamID = 999 }, field: "team_id"},
		{name: "unknown assignee", mutate: func(in *domain.TaskInput) { in.AssignedTo = ptr(int64(999)) }, field: "assigned_to"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := f.input("Valid")
			tc.mutate(&in)

			_, err := f.svc.Create(context.Background(), f.creator.ID, in)

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, domain.FieldErrors(err), tc.field)
		})
	}
	assert.Empty(t, f.recorder.Entries())
}

func TestCreateTaskStorageFailureIsGeneric(t *testing.T) {
	f := newTaskFixture(t)
	f.tasks.CreateFn = func(ctx context.Context, task *domain.Task) error {
		return errors.New("connection refused")
	}

	_, err := f.svc.Create(context.Background(), f.creator.ID, f.input("Task"))

	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrOperationFailed)
	assert.Empty(t, f.recorder.Entries())
}

func TestCreateTaskTokenGenerationFailure(t *testing.T) {
	f := newTaskFixture(t)
	f.tasks.TokenExistsFn = func(ctx context.Context, tok string) (bool, error) {
		return false, errors.New("store unreachable")
	}

	_, err := f.svc.Create(context.Background(), f.creator.ID, f.input("Task"))

	assert.ErrorIs(t, err, service.ErrOperationFailed)
}

func TestCreateTaskRetriesInsertTokenRace(t *testing.T) {
	f := newTaskFixture(t)
	calls := 0
	f.tasks.CreateFn = func(ctx context.Context, task *domain.Task) error {
		calls++
		if calls == 1 {
			return store.ErrTaskTokenExists
		}
		f.tasks.CreateFn = nil
		return f.tasks.Create(ctx, task)
	}

	task, err := f.svc.Create(context.Background(), f.creator.ID, f.input("Task"))

	require.NoError(t, err)
	assert.NotZero(t, task.ID)
	assert.Equal(t, 2, calls)
}

func TestCreateTaskSurvivesEnqueueFailure(t *testing.T) {
	f := newTaskFixture(t)
	f.recorder.RecordFn = func(ctx context.Context, entry job.HistoryEntry) error {
		return job.ErrQueueClosed
	}
	log, capture := logger.NewCapture()
	ctx := logger.WithContext(context.Background(), log)

	task, err := f.svc.Create(ctx, f.creator.ID, f.input("Task"))

	require.NoError(t, err)
	assert.NotNil(t, task)
	_, logged := capture.Find("failed to enqueue task history")
	assert.True(t, logged)
}

func TestUpdateNoEffectiveChange(t *testing.T) {
	f := newTaskFixture(t)
	task := f.create(t, "Task")
	before := len(f.recorder.Entries())

	tests := []struct {
		name  string
		patch domain.TaskPatch
	}{
		{name: "no allow-listed keys", patch: domain.TaskPatch{}},
		{name: "all values equal", patch: domain.TaskPatch{
			Title:    ptr("Task"),
			Priority: ptr(domain.TaskPriorityLow),
			TeamID:   ptr(task.TeamID),
			EndTime:  ptr(task.EndTime),
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := f.svc.Update(context.Background(), f.other.ID, task.Token, tc.patch)

			require.NoError(t, err)
			assert.False(t, result.Changed)
			assert.Empty(t, result.Changes)
			assert.Equal(t, task.Token, result.Task.Token)
		})
	}
	assert.Equal(t, 0, f.tasks.UpdateCalls)
	assert.Len(t, f.recorder.Entries(), before)
}

func TestUpdateEmptyPatchSkipsChangeDetection(t *testing.T) {
	log, capture := logger.NewCapture()
	f := newTaskFixture(t, func(d *service.TaskServiceDeps) { d.Logger = log })
	task := f.create(t, "Task")

	result, err := f.svc.Update(context.Background(), f.creator.ID, task.Token, domain.TaskPatch{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	_, ok := capture.Find("update supplied no fields")
	assert.True(t, ok, capture.String())

	_, err = f.svc.Update(context.Background(), f.creator.ID, task.Token, domain.TaskPatch{Title: ptr("Task")})
	require.NoError(t, err)
	_, ok = capture.Find("update carried no effective change")
	assert.True(t, ok, capture.String())

	assert.Equal(t, 0, f.tasks.UpdateCalls)
}

func TestUpdateRecordsOneEntryPerChangedField(t *testing.T) {
	f := newTaskFixture(t)
	task := f.create(t, "Task")
	f.now = f.now.Add(time.Hour)

	patch := domain.TaskPatch{
		Title:      ptr("Task v2"),
		Status:     ptr(domain.TaskStatusInProgress),
		Priority:   ptr(domain.TaskPriorityHigh),
		AssignedTo: domain.Some(f.other.ID),
	}
	result, err := f.svc.Update(context.Background(), f.other.ID, task.Token, patch)

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, 1, f.tasks.UpdateCalls)
	assert.Equal(t, f.now, result.Task.UpdatedAt)

	entries := f.recorder.Entries()[1:]
	require.Len(t, entries, 4)
	want := map[string][2]*string{
		service.FieldTitle:      {ptr("Task"), ptr("Task v2")},
		service.FieldStatus:     {ptr("pending"), ptr("in_progress")},
		service.FieldPriority:   {ptr("low"), ptr("high")},
		service.FieldAssignedTo: {nil, ptr(strconv.FormatInt(f.other.ID, 10))},
	}
	for _, e := range entries {
		assert.Equal(t, domain.HistoryActionUpdated, e.Action)
		assert.Equal(t, f.other.ID, e.UserID)
		require.NotNil(t, e.FieldChanged)
		values, ok := want[*e.FieldChanged]
		require.True(t, ok, "unexpected field %s", *e.FieldChanged)
		assert.Equal(t, values[0], e.OldValue, *e.FieldChanged)
		assert.Equal(t, values[1], e.NewValue, *e.FieldChanged)
		assert.Equal(t, f.now, *e.ChangedAt)
	}

	stored, err := f.svc.Get(context.Background(), task.Token)
	require.NoError(t, err)
	assert.Equal(t, "Task v2", stored.Title)
	assert.Equal(t, domain.TaskPriorityHigh, stored.Priority)
	assert.Equal(t, f.creator.ID, stored.CreatedBy)
}

func TestUpdateValidation(t *testing.T) {
	f := newTaskFixture(t)
	task := f.create(t, "Task")

	tests := []struct {
		name  string
		patch domain.TaskPatch
		field string
	}{
		{name: "bad status", patch: domain.TaskPatch{Status: ptr(domain.TaskStatus("archived"))}, field: "status"},
		{name: "empty title", patch: domain.TaskPatch{Title: ptr("")}, field: "title"},
		{name: "end before start", patch: domain.TaskPatch{StartTime: domain.Some(task.EndTime.Add(time.Hour))}, field: "end_time"},
		{name: "unknown team", patch: domain.TaskPatch{TeamID: ptr(int64(42))}, field: "team_id"},
		{name: "unknown assignee", patch: domain.TaskPatch{AssignedTo: domain.Some(int64(42))}, field: "assigned_to"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Update(context.Background(), f.creator.ID, task.Token, tc.patch)

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, domain.FieldErrors(err), tc.field)
		})
	}
	assert.Equal(t, 0, f.tasks.UpdateCalls)
	assert.Len(t, f.recorder.Entries(), 1)
}

func TestUpdateUnknownTask(t *testing.T) {
	f := newTaskFixture(t)

	for _, tok := range []string{"HC-ZZZZZZ", "not-a-token"} {
		_, err := f.svc.Update(context.Background(), f.creator.ID, tok, domain.TaskPatch{Title: ptr("x")})
		assert.ErrorIs(t, err, service.ErrTaskNotFound, tok)
	}
}

func TestUpdateStorageFailureIsGeneric(t *testing.T) {
	f := newTaskFixture(t)
	task := f.create(t, "Task")
	f.tasks.UpdateFn = func(ctx context.Context, task *domain.Task) error {
		return errors.New("deadlock detected")
	}

	_, err := f.svc.Update(context.Background(), f.creator.ID, task.Token, domain.TaskPatch{Title: ptr("New")})

	assert.ErrorIs(t, err, service.ErrOperationFailed)
	assert.Len(t, f.recorder.Entries(), 1)
}

func TestUpdateAssigneeChangeEmitsEvent(t *testing.T) {
	emitter := &mocks.TestifyMockEventEmitter{}
	f := newTaskFixture(t, func(d *service.TaskServiceDeps) { d.Events = emitter })
	task := f.create(t, "Task")

	emitter.On("EmitEvent", mock.Anything, mock.MatchedBy(func(e *events.TaskEvent) bool {
		var change events.AssigneeChange
		if err := e.UnmarshalPayload(&change); err != nil {
			return false
		}
		return e.Type == events.TypeTaskAssigneeChanged &&
			e.TaskToken == task.Token &&
			change.From == nil && change.To != nil && *change.To == f.other.ID
	})).Return(errors.New("handler failed")).Once()

	result, err := f.svc.Update(context.Background(), f.creator.ID, task.Token,
		domain.TaskPatch{AssignedTo: domain.Some(f.other.ID)})

	require.NoError(t, err, "a failing event handler must not fail the update")
	assert.True(t, result.Changed)
	emitter.AssertExpectations(t)

	_, err = f.svc.Update(context.Background(), f.creator.ID, task.Token,
		domain.TaskPatch{Title: ptr("Renamed")})
	require.NoError(t, err)
	emitter.AssertNumberOfCalls(t, "EmitEvent", 1)
}

func TestDeleteRequiresCreator(t *testing.T) {
	f := newTaskFixture(t)
	task := f.create(t, "Task")

	err := f.svc.Delete(context.Background(), f.other.ID, task.Token)

	assert.ErrorIs(t, err, service.ErrNotTaskCreator)
	_, err = f.svc.Get(context.Background(), task.Token)
	assert.NoError(t, err, "task must remain live")
	assert.Len(t, f.recorder.Entries(), 1)
}

func TestDeleteByCreator(t *testing.T) {
	f := newTaskFixture(t)
	task := f.create(t, "Task")

	require.NoError(t, f.svc.Delete(context.Background(), f.creator.ID, task.Token))

	_, err := f.svc.Get(context.Background(), task.Token)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)

	page, err := f.svc.List(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	entries := f.recorder.Entries()
	require.Len(t, entries, 2)
	deleted := entries[1]
	assert.Equal(t, domain.HistoryActionDeleted, deleted.Action)
	assert.Equal(t, f.creator.ID, deleted.UserID)
	assert.Nil(t, deleted.FieldChanged)

	err = f.svc.Delete(context.Background(), f.creator.ID, task.Token)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
}

func TestRestore(t *testing.T) {
	f := newTaskFixture(t)
	task := f.create(t, "Task")
	ctx := context.Background()

	_, err := f.svc.Restore(ctx, f.creator.ID, task.Token)
	assert.ErrorIs(t, err, service.ErrTaskNotFound, "live tasks cannot be restored")

	require.NoError(t, f.svc.Delete(ctx, f.creator.ID, task.Token))

	_, err = f.svc.Restore(ctx, f.other.ID, task.Token)
	assert.ErrorIs(t, err, service.ErrNotTaskCreator)

	restored, err := f.svc.Restore(ctx, f.creator.ID, task.Token)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted())

	got, err := f.svc.Get(ctx, task.Token)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Len(t, f.recorder.Entries(), 2, "restore records no history")
}

func TestListAppliesFilter(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()
	for i := range 12 {
		task := f.create(t, "Task")
		if i%3 == 0 {
			_, err := f.svc.Update(ctx, f.creator.ID, task.Token,
				domain.TaskPatch{Status: ptr(domain.TaskStatusCompleted)})
			require.NoError(t, err)
		}
	}

	page, err := f.svc.List(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(12), page.Total)
	assert.Len(t, page.Tasks, store.DefaultPerPage)
	assert.Equal(t, 1, page.Page)

	completed := domain.TaskStatusCompleted
	page, err = f.svc.List(ctx, store.TaskFilter{Status: &completed, PerPage: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Len(t, page.Tasks, 2)
}

func TestListStorageFailureIsGeneric(t *testing.T) {
	f := newTaskFixture(t)
	f.tasks.ListFn = func(ctx context.Context, filter store.TaskFilter) (*store.TaskPage, error) {
		return nil, errors.New("timeout")
	}

	_, err := f.svc.List(context.Background(), store.TaskFilter{})
	assert.ErrorIs(t, err, service.ErrOperationFailed)
}

func TestBulkCreate(t *testing.T) {
	f := newTaskFixture(t)

	tasks, err := f.svc.BulkCreate(context.Background(), f.creator.ID,
		[]domain.TaskInput{f.input("First"), f.input("Second")})

	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.NotEqual(t, tasks[0].Token, tasks[1].Token)
	for _, task := range tasks {
		assert.Equal(t, f.creator.ID, task.CreatedBy)
	}
	assert.Equal(t, "First", tasks[0].Title)
	assert.Len(t, f.recorder.Entries(), 2)
}

func TestBulkCreateAbortsOnFirstFailure(t *testing.T) {
	f := newTaskFixture(t)
	bad := f.input("")

	_, err := f.svc.BulkCreate(context.Background(), f.creator.ID,
		[]domain.TaskInput{f.input("First"), bad, f.input("Third")})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, domain.FieldErrors(err), "tasks.1.title")

	page, err := f.svc.List(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total, "items before the failure are kept")
}

func TestBulkCreateRejectsEmptyList(t *testing.T) {
	f := newTaskFixture(t)

	_, err := f.svc.BulkCreate(context.Background(), f.creator.ID, nil)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStatusSummary(t *testing.T) {
	f := newTaskFixture(t)
	day := func(d int) time.Time { return time.Date(2025, 1, d, 15, 0, 0, 0, time.UTC) }

	put := func(created time.Time, status domain.TaskStatus) {
		f.tasks.Put(&domain.Task{
			Token: fmt.Sprintf("HC-SUM%03d", created.Day()), Title: "T", Description: "D",
			Status: status, Priority: domain.TaskPriorityLow, TeamID: f.team.ID, CreatedBy: f.creator.ID,
			EndTime: created.Add(time.Hour), CreatedAt: created, UpdatedAt: created,
		})
	}
	put(day(1), domain.TaskStatusPending)
	put(day(2), domain.TaskStatusCompleted)
	put(day(3), domain.TaskStatusCompleted)
	put(day(4), domain.TaskStatusCancelled)

	counts, err := f.svc.StatusSummary(context.Background(),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, []domain.StatusCount{
		{Status: domain.TaskStatusCompleted, Count: 2},
		{Status: domain.TaskStatusPending, Count: 1},
	}, counts)
}

func TestStatusSummaryRejectsInvertedRange(t *testing.T) {
	f := newTaskFixture(t)

	_, err := f.svc.StatusSummary(context.Background(),
		time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.ErrorIs(t, err, domain.ErrValidation)
}

// Create, change priority, then read the audit trail through the real
// history job executed inline.
func TestTaskHistoryEndToEnd(t *testing.T) {
	histories := mocks.NewMockTaskHistoryStore()
	recorder := job.NewHistoryRecorder(mocks.InlineSubmitter{}, histories, nil, nil)
	f := newTaskFixture(t, func(d *service.TaskServiceDeps) {
		d.Histories = histories
		d.Recorder = recorder
	})
	ctx := context.Background()

	task := f.create(t, "Task")
	f.now = f.now.Add(time.Minute)
	_, err := f.svc.Update(ctx, f.creator.ID, task.Token, domain.TaskPatch{Priority: ptr(domain.TaskPriorityHigh)})
	require.NoError(t, err)

	records, err := f.svc.ListHistory(ctx, task.Token)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, domain.HistoryActionCreated, records[0].Action)
	assert.Nil(t, records[0].FieldChanged)

	assert.Equal(t, domain.HistoryActionUpdated, records[1].Action)
	require.NotNil(t, records[1].FieldChanged)
	assert.Equal(t, "priority", *records[1].FieldChanged)
	assert.Equal(t, "low", *records[1].OldValue)
	assert.Equal(t, "high", *records[1].NewValue)
}
