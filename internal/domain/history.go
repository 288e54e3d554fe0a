package domain

import "time"

// HistoryAction is the lifecycle event a history record captures
type HistoryAction string

// Possible history actions
const (
	HistoryActionCreated HistoryAction = "created"
	HistoryActionUpdated HistoryAction = "updated"
	HistoryActionDeleted HistoryAction = "deleted"
)

// Valid reports whether a is a known action.
func (a HistoryAction) Valid() bool {
	switch a {
	case HistoryActionCreated, HistoryActionUpdated, HistoryActionDeleted:
		return true
	default:
		return false
	}
}

// TaskHistory is one immutable audit entry for a task. Only "updated" entries
// carry FieldChanged, OldValue and NewValue.
type TaskHistory struct {
	ID           int64         `json:"id"`
	TaskID       int64         `json:"task_id"`
	UserID       int64         `json:"user_id"`
	Action       HistoryAction `json:"action"`
	FieldChanged *string       `json:"field_changed"`
	OldValue     *string       `json:"old_value"`
	NewValue     *string       `json:"new_value"`
	ChangedAt    time.Time     `json:"changed_at"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Validate enforces the shape rules tying the field columns to the action.
func (h *TaskHistory) Validate() error {
	var errs ValidationErrors

	if h.TaskID <= 0 {
		errs.Add("task_id", "is required")
	}
	if h.UserID <= 0 {
		errs.Add("user_id", "is required")
	}
	if !h.Action.Valid() {
		errs.Add("action", "must be one of created, updated, deleted")
	}

	switch h.Action {
	case HistoryActionUpdated:
		if h.FieldChanged == nil || *h.FieldChanged == "" {
			errs.Add("field_changed", "is required for updated entries")
		}
	case HistoryActionCreated, HistoryActionDeleted:
		if h.FieldChanged != nil || h.OldValue != nil || h.NewValue != nil {
			errs.Add("field_changed", "must be empty for "+string(h.Action)+" entries")
		}
	}

	if h.ChangedAt.IsZero() {
		errs.Add("changed_at", "is required")
	}

	return errs.Err()
}
