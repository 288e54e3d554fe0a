package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasktrail-api/internal/api/shared"
	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/service"
)

// Task response messages.
const (
	MessageTaskUpdated  = "Task updated successfully."
	MessageTaskNoChange = "No changes detected."
	MessageTaskDeleted  = "Task deleted successfully."
	MessageTaskRestored = "Task restored successfully."
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	tasks  service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		tasks:  tasks,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.tasks.Create(r.Context(), userID, req.Input())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Debug("task created", slog.String("task_token", task.Token))
	shared.RespondSuccess(w, r, http.StatusOK, "", taskToResponse(task))
}

// BulkCreateTasks handles POST /tasks/bulk. It stops at the first task that
// cannot be created; tasks created before it are kept.
func (h *TaskHandler) BulkCreateTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req BulkCreateTasksRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	inputs := make([]domain.TaskInput, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		inputs = append(inputs, t.Input())
	}

	tasks, err := h.tasks.BulkCreate(r.Context(), userID, inputs)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondSuccess(w, r, http.StatusOK, fmt.Sprintf("%d tasks created.", len(tasks)), tasksToResponse(tasks))
}

// GetTask handles GET /tasks/{token}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.Context(), taskToken(r))
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondSuccess(w, r, http.StatusOK, "", taskToResponse(task))
}

// ListTasks handles GET /tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r.URL.Query())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	page, err := h.tasks.List(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondSuccess(w, r, http.StatusOK, "", pageToResponse(page))
}

// UpdateTask handles PUT /tasks/{token}. Sending values equal to the stored
// ones is not an error; the response says no changes were detected.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.tasks.Update(r.Context(), userID, taskToken(r), req.Patch())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	message := MessageTaskUpdated
	if !result.Changed {
		message = MessageTaskNoChange
	}
	log.Debug("task update processed",
		slog.String("task_token", result.Task.Token),
		slog.Int("changed_fields", len(result.Changes)))
	shared.RespondSuccess(w, r, http.StatusOK, message, taskToResponse(result.Task))
}

// DeleteTask handles DELETE /tasks/{token}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), userID, taskToken(r)); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondSuccess(w, r, http.StatusOK, MessageTaskDeleted, nil)
}

// RestoreTask handles POST /tasks/{token}/restore.
func (h *TaskHandler) RestoreTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	task, err := h.tasks.Restore(r.Context(), userID, taskToken(r))
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondSuccess(w, r, http.StatusOK, MessageTaskRestored, taskToResponse(task))
}

// ListTaskHistory handles GET /tasks/{token}/histories.
func (h *TaskHandler) ListTaskHistory(w http.ResponseWriter, r *http.Request) {
	histories, err := h.tasks.ListHistory(r.Context(), taskToken(r))
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondSuccess(w, r, http.StatusOK, "", historiesToResponse(histories))
}

// StatusSummary handles GET /tasks/status-summary?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *TaskHandler) StatusSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r.URL.Query())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	counts, err := h.tasks.StatusSummary(r.Context(), from, to)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondSuccess(w, r, http.StatusOK, "", StatusSummary(counts))
}
