package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "generic error", err: errors.New("some error"), expected: false},
		{name: "ErrNotFound", err: ErrNotFound, expected: true},
		{name: "ErrTaskNotFound", err: ErrTaskNotFound, expected: true},
		{name: "wrapped ErrTeamNotFound", err: fmt.Errorf("lookup: %w", ErrTeamNotFound), expected: true},
		{name: "duplicate is not not-found", err: ErrEmailExists, expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsNotFoundError(tc.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, IsDuplicateError(ErrEmailExists))
	assert.True(t, IsDuplicateError(fmt.Errorf("insert: %w", ErrTaskTokenExists)))
	assert.False(t, IsDuplicateError(ErrUserNotFound))
	assert.False(t, IsDuplicateError(nil))
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStoreError("task", "list", "query failed", cause)

	assert.Equal(t, "list task: query failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewStoreError("team", "create", "name missing", nil)
	assert.Equal(t, "create team: name missing", bare.Error())
}

func TestTaskFilterNormalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		f := TaskFilter{}.Normalize()
		assert.Equal(t, "created_at", f.SortBy)
		assert.True(t, f.SortDesc)
		assert.Equal(t, 1, f.Page)
		assert.Equal(t, DefaultPerPage, f.PerPage)
		assert.Equal(t, 0, f.Offset())
	})

	t.Run("unknown sort column falls back", func(t *testing.T) {
		f := TaskFilter{SortBy: "id; DROP TABLE tasks", SortDesc: false}.Normalize()
		assert.Equal(t, "created_at", f.SortBy)
		assert.False(t, f.SortDesc)
	})

	t.Run("clamps per page", func(t *testing.T) {
		f := TaskFilter{Page: 3, PerPage: 1000}.Normalize()
		assert.Equal(t, MaxPerPage, f.PerPage)
		assert.Equal(t, 200, f.Offset())
	})

	t.Run("keeps valid sort", func(t *testing.T) {
		f := TaskFilter{SortBy: "priority"}.Normalize()
		assert.Equal(t, "priority", f.SortBy)
		assert.False(t, f.SortDesc)
	})
}
