package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/phrazzld/tasktrail-api/internal/api/shared"
	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/service"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

// Common request/response structures

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the data of a successful login.
type LoginResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

// CreateTaskRequest defines the payload for creating one task.
type CreateTaskRequest struct {
	Title       string            `json:"title"       validate:"required,max=255"`
	Description string            `json:"description" validate:"required"`
	Priority    string            `json:"priority"    validate:"required,oneof=low medium high"`
	TeamID      int64             `json:"team_id"     validate:"required,gt=0"`
	AssignedTo  *int64            `json:"assigned_to" validate:"omitnil,gt=0"`
	StartTime   *shared.Timestamp `json:"start_time"`
	EndTime     shared.Timestamp  `json:"end_time"    validate:"required"`
}

// Input converts the request into service input.
func (r CreateTaskRequest) Input() domain.TaskInput {
	return domain.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    domain.TaskPriority(r.Priority),
		TeamID:      r.TeamID,
		AssignedTo:  r.AssignedTo,
		StartTime:   r.StartTime.Ptr(),
		EndTime:     r.EndTime.Time,
	}
}

// BulkCreateTasksRequest defines the payload for creating several tasks.
type BulkCreateTasksRequest struct {
	Tasks []CreateTaskRequest `json:"tasks" validate:"required,min=1,max=100,dive"`
}

// UpdateTaskRequest defines the payload for a partial task update. Absent
// keys are left alone; assigned_to and start_time may be set to null.
type UpdateTaskRequest struct {
	Title       *string                           `json:"title"       validate:"omitnil,min=1,max=255"`
	Description *string                           `json:"description" validate:"omitnil,min=1"`
	Status      *string                           `json:"status"      validate:"omitnil,oneof=pending in_progress completed cancelled on_hold"`
	Priority    *string                           `json:"priority"    validate:"omitnil,oneof=low medium high"`
	TeamID      *int64                            `json:"team_id"     validate:"omitnil,gt=0"`
	AssignedTo  domain.Nullable[int64]            `json:"assigned_to"`
	StartTime   domain.Nullable[shared.Timestamp] `json:"start_time"`
	EndTime     *shared.Timestamp                 `json:"end_time"`
}

// Validate implements the request validation hook used by shared.ValidateRequest.
func (r *UpdateTaskRequest) Validate() error {
	if err := shared.ValidateStruct(r); err != nil {
		return err
	}
	if r.AssignedTo.Value != nil && *r.AssignedTo.Value <= 0 {
		return domain.NewValidationError("assigned_to", "must reference a user", nil)
	}
	return nil
}

// Patch converts the request into a domain patch.
func (r UpdateTaskRequest) Patch() domain.TaskPatch {
	patch := domain.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		TeamID:      r.TeamID,
		AssignedTo:  r.AssignedTo,
		EndTime:     r.EndTime.Ptr(),
	}
	if r.Status != nil {
		s := domain.TaskStatus(*r.Status)
		patch.Status = &s
	}
	if r.Priority != nil {
		p := domain.TaskPriority(*r.Priority)
		patch.Priority = &p
	}
	if r.StartTime.Set {
		patch.StartTime = domain.Nullable[time.Time]{Set: true}
		if r.StartTime.Value != nil {
			patch.StartTime.Value = r.StartTime.Value.Ptr()
		}
	}
	return patch
}

// CreateUserRequest defines the payload for creating a user. The password is
// generated by the server.
type CreateUserRequest struct {
	FirstName string `json:"first_name" validate:"required,max=255"`
	LastName  string `json:"last_name"  validate:"required,max=255"`
	Email     string `json:"email"      validate:"required,email,max=255"`
}

// Input converts the request into service input.
func (r CreateUserRequest) Input() service.UserInput {
	return service.UserInput{FirstName: r.FirstName, LastName: r.LastName, Email: r.Email}
}

// BulkCreateUsersRequest defines the payload for creating several users.
type BulkCreateUsersRequest struct {
	Users []CreateUserRequest `json:"users" validate:"required,min=1,max=100,dive"`
}

// CreateTeamRequest defines the payload for creating a team.
type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// TaskResponse is the public shape of a task.
type TaskResponse struct {
	ID          int64      `json:"id"`
	Token       string     `json:"task_token"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	TeamID      int64      `json:"team_id"`
	AssignedTo  *int64     `json:"assigned_to"`
	CreatedBy   int64      `json:"created_by"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Token:       t.Token,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		TeamID:      t.TeamID,
		AssignedTo:  t.AssignedTo,
		CreatedBy:   t.CreatedBy,
		StartTime:   t.StartTime,
		EndTime:     t.EndTime,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		DeletedAt:   t.DeletedAt,
	}
}

func tasksToResponse(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToResponse(t))
	}
	return out
}

// TaskPageResponse is one page of a task listing.
type TaskPageResponse struct {
	Data        []TaskResponse `json:"data"`
	CurrentPage int            `json:"current_page"`
	PerPage     int            `json:"per_page"`
	Total       int64          `json:"total"`
}

func pageToResponse(p *store.TaskPage) TaskPageResponse {
	return TaskPageResponse{
		Data:        tasksToResponse(p.Tasks),
		CurrentPage: p.Page,
		PerPage:     p.PerPage,
		Total:       p.Total,
	}
}

// HistoryResponse is one audit trail entry.
type HistoryResponse struct {
	ID           int64     `json:"id"`
	TaskID       int64     `json:"task_id"`
	UserID       int64     `json:"user_id"`
	Action       string    `json:"action"`
	FieldChanged *string   `json:"field_changed"`
	OldValue     *string   `json:"old_value"`
	NewValue     *string   `json:"new_value"`
	ChangedAt    time.Time `json:"changed_at"`
}

func historiesToResponse(hs []*domain.TaskHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(hs))
	for _, h := range hs {
		out = append(out, HistoryResponse{
			ID:           h.ID,
			TaskID:       h.TaskID,
			UserID:       h.UserID,
			Action:       string(h.Action),
			FieldChanged: h.FieldChanged,
			OldValue:     h.OldValue,
			NewValue:     h.NewValue,
			ChangedAt:    h.ChangedAt,
		})
	}
	return out
}

// UserResponse is the public shape of a user.
type UserResponse struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func userToResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// CreatedUserResponse is a new user with the password generated for it.
// The password is only ever returned here.
type CreatedUserResponse struct {
	UserResponse
	Password string `json:"auto_generated_password"`
}

func createdUserToResponse(c *service.CreatedUser) CreatedUserResponse {
	return CreatedUserResponse{UserResponse: userToResponse(c.User), Password: c.Password}
}

// TeamResponse is the public shape of a team.
type TeamResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func teamToResponse(t *domain.Team) TeamResponse {
	return TeamResponse{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}

// StatusSummary renders status counts as a JSON object whose keys keep the
// order of the counts, largest group first.
type StatusSummary []domain.StatusCount

// MarshalJSON implements json.Marshaler.
func (s StatusSummary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(c.Status))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatInt(c.Count, 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
