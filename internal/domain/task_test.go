package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTaskInput() TaskInput {
	return TaskInput{
		Title:       "Write quarterly report",
		Description: "Numbers for Q3",
		Priority:    TaskPriorityLow,
		TeamID:      1,
		EndTime:     time.Date(2025, 8, 10, 17, 0, 0, 0, time.UTC),
	}
}

func TestNewTask(t *testing.T) {
	t.Run("defaults status to pending", func(t *testing.T) {
		task, err := NewTask(7, validTaskInput())
		require.NoError(t, err)
		assert.Equal(t, TaskStatusPending, task.Status)
		assert.Equal(t, int64(7), task.CreatedBy)
		assert.False(t, task.CreatedAt.IsZero())
		assert.Empty(t, task.Token)
	})

	t.Run("defaults priority to medium", func(t *testing.T) {
		in := validTaskInput()
		in.Priority = ""
		task, err := NewTask(7, in)
		require.NoError(t, err)
		assert.Equal(t, TaskPriorityMedium, task.Priority)
	})

	t.Run("collects every field error", func(t *testing.T) {
		_, err := NewTask(0, TaskInput{Priority: "urgent"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))

		fields := FieldErrors(err)
		for _, f := range []string{"title", "description", "priority", "team_id", "created_by", "end_time"} {
			assert.Contains(t, fields, f)
		}
	})
}

func TestTaskValidate(t *testing.T) {
	start := time.Date(2025, 8, 10, 9, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr string
	}{
		{name: "valid", mutate: func(*Task) {}},
		{name: "bad token", mutate: func(t *Task) { t.Token = "HC-abc" }, wantErr: "task_token"},
		{name: "long title", mutate: func(t *Task) { t.Title = strings.Repeat("x", 256) }, wantErr: "title"},
		{name: "unknown status", mutate: func(t *Task) { t.Status = "done" }, wantErr: "status"},
		{name: "end before start", mutate: func(t *Task) {
			t.StartTime = &start
			t.EndTime = before
		}, wantErr: "end_time"},
		{name: "end equals start", mutate: func(t *Task) {
			t.StartTime = &start
			t.EndTime = start
		}},
		{name: "bad assignee", mutate: func(t *Task) {
			zero := int64(0)
			t.AssignedTo = &zero
		}, wantErr: "assigned_to"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			task, err := NewTask(1, validTaskInput())
			require.NoError(t, err)
			task.Token = "HC-AB12CD"
			tc.mutate(task)

			err = task.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, FieldErrors(err), tc.wantErr)
		})
	}
}

func TestIsValidTaskToken(t *testing.T) {
	assert.True(t, IsValidTaskToken("HC-AB12CD"))
	assert.True(t, IsValidTaskToken("HC-000000"))
	assert.False(t, IsValidTaskToken("HC-ab12cd"))
	assert.False(t, IsValidTaskToken("HC-AB12C"))
	assert.False(t, IsValidTaskToken("XX-AB12CD"))
	assert.False(t, IsValidTaskToken("HC-AB12CDE"))
}

func TestTaskStatusValid(t *testing.T) {
	for _, s := range TaskStatuses {
		assert.True(t, s.Valid(), s)
		assert.Contains(t, TaskStatusMessage, string(s))
	}
	assert.False(t, TaskStatus("archived").Valid())
	assert.False(t, TaskStatus("").Valid())
	assert.Equal(t, "must be one of pending, in_progress, completed, cancelled, on_hold", TaskStatusMessage)
}

func TestTaskPatchIsEmpty(t *testing.T) {
	assert.True(t, TaskPatch{}.IsEmpty())

	title := "x"
	assert.False(t, TaskPatch{Title: &title}.IsEmpty())
	assert.False(t, TaskPatch{AssignedTo: Null[int64]()}.IsEmpty())
}

func TestNullableJSON(t *testing.T) {
	var body struct {
		AssignedTo Nullable[int64] `json:"assigned_to"`
		StartTime  Nullable[time.Time] `json:"start_time"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"assigned_to": null}`), &body))
	assert.True(t, body.AssignedTo.Set)
	assert.Nil(t, body.AssignedTo.Value)
	assert.False(t, body.StartTime.Set)

	require.NoError(t, json.Unmarshal([]byte(`{"assigned_to": 4, "start_time": "2025-08-01T10:00:00Z"}`), &body))
	require.NotNil(t, body.AssignedTo.Value)
	assert.Equal(t, int64(4), *body.AssignedTo.Value)
	assert.True(t, body.StartTime.Set)

	err := json.Unmarshal([]byte(`{"assigned_to": "four"}`), &body)
	assert.Error(t, err)
}
