package main

import (
	"context"
	"testing"
	"time"

	"github.com/phrazzld/tasktrail-api/internal/events"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"serve", "migrate", "create-user"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	createUser, _, err := root.Find([]string{"create-user"})
	require.NoError(t, err)
	for _, flag := range []string{"email", "first-name", "last-name", "password"} {
		assert.NotNil(t, createUser.Flags().Lookup(flag), flag)
	}
}

func TestValidateMigrateArgs(t *testing.T) {
	tests := []struct {
		args    []string
		wantErr bool
	}{
		{nil, false},
		{[]string{"up"}, false},
		{[]string{"reset"}, false},
		{[]string{"sideways"}, true},
		{[]string{"up", "down"}, true},
	}

	for _, tc := range tests {
		err := validateMigrateArgs(nil, tc.args)
		if tc.wantErr {
			assert.Error(t, err, tc.args)
		} else {
			assert.NoError(t, err, tc.args)
		}
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"password masked", "postgres://app:hunter2@db:5432/tasks?sslmode=disable", "postgres://app:%2A%2A%2A%2A@db:5432/tasks?sslmode=disable"},
		{"no password", "postgres://app@db:5432/tasks", "postgres://app@db:5432/tasks"},
		{"empty", "", ""},
		{"invalid", "postgres://app:pw@[::1", "invalid-url"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := maskDatabaseURL(tc.in)
			assert.Equal(t, tc.want, got)
			assert.NotContains(t, got, "hunter2")
		})
	}
}

func TestRunnerConfig(t *testing.T) {
	cfg := testConfig().Jobs

	rc := runnerConfig(cfg)

	assert.Equal(t, 1, rc.WorkerCount)
	assert.Equal(t, 10, rc.QueueSize)
	assert.Equal(t, 30*time.Minute, rc.StuckJobAge)
	assert.Equal(t, 5*time.Minute, rc.StuckCheckInterval)
	assert.Equal(t, 3, rc.Policy.MaxAttempts)
	assert.Equal(t, []time.Duration{10 * time.Second, 30 * time.Second, time.Minute}, rc.Policy.Backoff)
	assert.Equal(t, 30*time.Second, rc.Policy.AttemptTimeout)
}

func TestAssigneeChangeLogger(t *testing.T) {
	log, capture := logger.NewCapture()
	from, to := int64(2), int64(3)
	event, err := events.NewTaskEvent(events.TypeTaskAssigneeChanged, 10, "HC-ABC123", 1,
		events.AssigneeChange{From: &from, To: &to})
	require.NoError(t, err)

	require.NoError(t, assigneeChangeLogger(log).HandleEvent(context.Background(), event))

	entry, ok := capture.Find("task assignee changed")
	require.True(t, ok, capture.String())
	assert.Equal(t, "HC-ABC123", entry["task_token"])
}
