package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the task service.
const (
	// TypeTaskAssigneeChanged fires when an update moves a task to a different assignee.
	TypeTaskAssigneeChanged = "task.assignee_changed"
)

// TaskEvent describes something that happened to a task.
type TaskEvent struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	TaskID     int64           `json:"task_id"`
	TaskToken  string          `json:"task_token"`
	ActorID    int64           `json:"actor_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// AssigneeChange is the payload of TypeTaskAssigneeChanged.
type AssigneeChange struct {
	From *int64 `json:"from"`
	To   *int64 `json:"to"`
}

// NewTaskEvent creates a TaskEvent with a fresh id, serialising payload.
func NewTaskEvent(eventType string, taskID int64, token string, actorID int64, payload any) (*TaskEvent, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	return &TaskEvent{
		ID:         uuid.New(),
		Type:       eventType,
		TaskID:     taskID,
		TaskToken:  token,
		ActorID:    actorID,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the event payload into v.
func (e *TaskEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}

// EventEmitter publishes events to whoever is listening.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
