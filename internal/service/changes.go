package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/tasktrail-api/internal/domain"
)

// Names of the fields an update may change, as recorded in history.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldAssignedTo  = "assigned_to"
	FieldPriority    = "priority"
	FieldTeam        = "team_id"
	FieldStartTime   = "start_time"
	FieldEndTime     = "end_time"
)

// FieldChange is one field whose value differs between a task and a patch.
// Values are rendered as text: ids in decimal, times in RFC 3339 UTC, and an
// empty value as nil.
type FieldChange struct {
	Field    string  `json:"field"`
	OldValue *string `json:"old_value"`
	NewValue *string `json:"new_value"`
}

// DetectChanges compares every supplied patch field against task with a
// comparison specific to the field's type. It returns a copy of task with
// the differing values applied, and one FieldChange per differing field in
// a fixed field order. task itself is not modified.
func DetectChanges(task *domain.Task, patch domain.TaskPatch) (*domain.Task, []FieldChange) {
	next := *task
	var changes []FieldChange

	record := func(field string, oldValue, newValue *string) {
		changes = append(changes, FieldChange{Field: field, OldValue: oldValue, NewValue: newValue})
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title != task.Title {
			record(FieldTitle, stringPtr(task.Title), stringPtr(title))
			next.Title = title
		}
	}

	if patch.Description != nil && *patch.Description != task.Description {
		record(FieldDescription, stringPtr(task.Description), stringPtr(*patch.Description))
		next.Description = *patch.Description
	}

	if patch.Status != nil && *patch.Status != task.Status {
		record(FieldStatus, stringPtr(string(task.Status)), stringPtr(string(*patch.Status)))
		next.Status = *patch.Status
	}

	if patch.AssignedTo.Set && !sameID(task.AssignedTo, patch.AssignedTo.Value) {
		record(FieldAssignedTo, formatID(task.AssignedTo), formatID(patch.AssignedTo.Value))
		next.AssignedTo = cloneID(patch.AssignedTo.Value)
	}

	if patch.Priority != nil && *patch.Priority != task.Priority {
		record(FieldPriority, stringPtr(string(task.Priority)), stringPtr(string(*patch.Priority)))
		next.Priority = *patch.Priority
	}

	if patch.TeamID != nil && *patch.TeamID != task.TeamID {
		record(FieldTeam, formatID(&task.TeamID), formatID(patch.TeamID))
		next.TeamID = *patch.TeamID
	}

	if patch.StartTime.Set && !sameTime(task.StartTime, patch.StartTime.Value) {
		record(FieldStartTime, formatTime(task.StartTime), formatTime(patch.StartTime.Value))
		next.StartTime = utcTime(patch.StartTime.Value)
	}

	if patch.EndTime != nil && !patch.EndTime.Equal(task.EndTime) {
		record(FieldEndTime, formatTime(&task.EndTime), formatTime(patch.EndTime))
		next.EndTime = patch.EndTime.UTC()
	}

	return &next, changes
}

// changed reports whether field appears in changes.
func changed(changes []FieldChange, field string) bool {
	for _, c := range changes {
		if c.Field == field {
			return true
		}
	}
	return false
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// sameTime compares instants, so the same moment in two zones is equal.
func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func stringPtr(s string) *string {
	return &s
}

func formatID(id *int64) *string {
	if id == nil {
		return nil
	}
	return stringPtr(strconv.FormatInt(*id, 10))
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return stringPtr(t.UTC().Format(time.RFC3339))
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func utcTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
