package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{ErrTaskNotFound, ErrNotTaskCreator, ErrInvalidCredentials, ErrOperationFailed}
	for i, a := range sentinels {
		for j, b := range sentinels {
			assert.Equal(t, i == j, errors.Is(a, b), "%v vs %v", a, b)
		}
	}
}

func TestServiceError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ServiceError
		expected string
	}{
		{
			name:     "with message and underlying error",
			err:      NewServiceError("task", "create", "failed to save task", errors.New("connection refused")),
			expected: "task service create operation failed: failed to save task: connection refused",
		},
		{
			name:     "without message",
			err:      NewServiceError("user", "authenticate", "", errors.New("timeout")),
			expected: "user service authenticate operation failed: timeout",
		},
		{
			name:     "without underlying error",
			err:      NewServiceError("team", "list", "", nil),
			expected: "team service list operation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestServiceError_ErrorsIs(t *testing.T) {
	underlying := errors.New("database connection failed")
	err := NewServiceError("task", "update", "failed to update task", underlying)

	t.Run("matches ErrOperationFailed", func(t *testing.T) {
		assert.True(t, errors.Is(err, ErrOperationFailed))
	})

	t.Run("matches the wrapped cause", func(t *testing.T) {
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("does not match other sentinels", func(t *testing.T) {
		assert.False(t, errors.Is(err, ErrTaskNotFound))
	})
}

func TestServiceError_ErrorsAs(t *testing.T) {
	inner := NewServiceError("user", "create", "", errors.New("inner error"))
	outer := NewServiceError("user", "bulk_create", "", inner)

	var serviceErr *ServiceError
	assert.True(t, errors.As(outer, &serviceErr))
	assert.Equal(t, "bulk_create", serviceErr.Op)

	assert.True(t, errors.As(outer.Err, &serviceErr))
	assert.Equal(t, "create", serviceErr.Op)
}
