package domain

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

// TaskStatus represents the workflow state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
	TaskStatusOnHold     TaskStatus = "on_hold"
)

// TaskStatuses lists every valid status in display order.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusCancelled,
	TaskStatusOnHold,
}

// TaskStatusMessage is the validation message for an unknown status.
var TaskStatusMessage = "must be one of " + joinStatuses(TaskStatuses)

func joinStatuses(statuses []TaskStatus) string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	return slices.Contains(TaskStatuses, s)
}

// TaskPriority represents how urgent a task is
type TaskPriority string

// Possible task priority values
const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

const (
	// TaskTokenPrefix starts every public task identifier.
	TaskTokenPrefix = "HC-"

	// TaskTokenRandomLength is the number of random characters after the prefix.
	TaskTokenRandomLength = 6

	// TaskTokenAlphabet holds the characters a token may be built from.
	TaskTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// MaxTaskTitleLength bounds the title column.
	MaxTaskTitleLength = 255
)

var taskTokenPattern = regexp.MustCompile(`^HC-[A-Z0-9]{6}$`)

// IsValidTaskToken reports whether token has the HC-XXXXXX shape.
func IsValidTaskToken(token string) bool {
	return taskTokenPattern.MatchString(token)
}

// Task is a unit of work owned by a team. Token is the public identifier and
// never changes once assigned; ID is the storage key.
type Task struct {
	ID          int64        `json:"id"`
	Token       string       `json:"task_token"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	TeamID      int64        `json:"team_id"`
	AssignedTo  *int64       `json:"assigned_to"`
	CreatedBy   int64        `json:"created_by"`
	StartTime   *time.Time   `json:"start_time"`
	EndTime     time.Time    `json:"end_time"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty"`
}

// NewTask builds a pending task from creation input. The token and storage
// id are assigned later by the service and the store.
func NewTask(creatorID int64, in TaskInput) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      TaskStatusPending,
		Priority:    in.Priority,
		TeamID:      in.TeamID,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   creatorID,
		StartTime:   utcPtr(in.StartTime),
		EndTime:     in.EndTime.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Priority == "" {
		task.Priority = TaskPriorityMedium
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

// Validate checks every field constraint of a task. The token is only checked
// once it has been assigned.
func (t *Task) Validate() error {
	var errs ValidationErrors

	if t.Token != "" && !IsValidTaskToken(t.Token) {
		errs.Add("task_token", "must match HC-XXXXXX")
	}
	if strings.TrimSpace(t.Title) == "" {
		errs.Add("title", "is required")
	} else if len([]rune(t.Title)) > MaxTaskTitleLength {
		errs.Add("title", "must be at most 255 characters")
	}
	if strings.TrimSpace(t.Description) == "" {
		errs.Add("description", "is required")
	}
	if !t.Status.Valid() {
		errs.Add("status", TaskStatusMessage)
	}
	if !t.Priority.Valid() {
		errs.Add("priority", "must be one of low, medium, high")
	}
	if t.TeamID <= 0 {
		errs.Add("team_id", "is required")
	}
	if t.AssignedTo != nil && *t.AssignedTo <= 0 {
		errs.Add("assigned_to", "must reference a user")
	}
	if t.CreatedBy <= 0 {
		errs.Add("created_by", "is required")
	}
	if t.EndTime.IsZero() {
		errs.Add("end_time", "is required")
	} else if t.StartTime != nil && t.EndTime.Before(*t.StartTime) {
		errs.Add("end_time", "must be after or equal to start_time")
	}

	return errs.Err()
}

// IsDeleted reports whether the task has been soft deleted.
func (t *Task) IsDeleted() bool {
	return t.DeletedAt != nil
}

// TaskInput carries the fields accepted when creating a task.
type TaskInput struct {
	Title       string
	Description string
	Priority    TaskPriority
	TeamID      int64
	AssignedTo  *int64
	StartTime   *time.Time
	EndTime     time.Time
}

// TaskPatch carries a partial update. Nil pointers mean "not supplied".
// Nullable columns use Nullable so an explicit null can be told apart from
// an absent key.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	TeamID      *int64
	AssignedTo  Nullable[int64]
	StartTime   Nullable[time.Time]
	EndTime     *time.Time
}

// IsEmpty reports whether no updatable field was supplied.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.TeamID == nil && !p.AssignedTo.Set &&
		!p.StartTime.Set && p.EndTime == nil
}

// StatusCount is one row of a status summary.
type StatusCount struct {
	Status TaskStatus `json:"status"`
	Count  int64      `json:"count"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
