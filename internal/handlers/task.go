package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mkovalev/taskboard/internal/apperrors"
	"github.com/mkovalev/taskboard/internal/handlers/render"
	"github.com/mkovalev/taskboard/internal/handlers/userctx"
	"github.com/mkovalev/taskboard/internal/models"
	"github.com/mkovalev/taskboard/internal/repository"
)

type taskService interface {
	CreateTask(ctx context.Context, requester models.User, params repository.CreateTaskParams) (models.Task, error)
	GetTask(ctx context.Context, requester models.User, taskID uuid.UUID) (models.Task, error)
	UpdateTask(ctx context.Context, requester models.User, taskID uuid.UUID, params repository.UpdateTaskParams) (models.Task, error)
	ListTasks(ctx context.Context, requester models.User, params repository.ListTasksParams) ([]models.Task, int64, error)
	DeleteTask(ctx context.Context, requester models.User, taskID uuid.UUID, hard bool) error
}

type TaskHandler struct {
	taskService taskService
}

func NewTask(taskService taskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", h.create)
	mux.HandleFunc("GET /{$}", h.list)
	mux.HandleFunc("GET /{id}", h.get)
	mux.HandleFunc("PUT /{id}", h.update)
	mux.HandleFunc("DELETE /{id}", h.delete)

	return mux
}

type taskResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Task    models.Task `json:"task"`
}

func (h *TaskHandler) create(w http.ResponseWriter, r *http.Request) {
	type CreateTaskRequest struct {
		Title       string     `json:"title" validate:"required,min=1,max=200"`
		Description string     `json:"description" validate:"max=2000"`
		Status      string     `json:"status" validate:"omitempty,oneof=open in-progress done"`
		Tags        []string   `json:"tags" validate:"max=20,dive,min=1,max=50"`
		DueDate     *time.Time `json:"dueDate"`
	}

	requester, ok := userctx.FromContext(r.Context())
	if !ok {
		render.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[CreateTaskRequest](w, r)
	if err != nil {
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), requester, repository.CreateTaskParams{
		Title:       data.Title,
		Description: data.Description,
		Status:      models.TaskStatus(data.Status),
		Tags:        data.Tags,
		DueDate:     data.DueDate,
	})
	if err != nil {
		render.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSONWithStatus(w, taskResponse{Success: true, Message: "Task created successfully", Task: task}, http.StatusCreated)
}

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request) {
	type ListTasksResponse struct {
		Success    bool          `json:"success"`
		Tasks      []models.Task `json:"tasks"`
		Pagination pagination    `json:"pagination"`
	}

	requester, ok := userctx.FromContext(r.Context())
	if !ok {
		render.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	params := repository.ListTasksParams{
		Search: r.URL.Query().Get("q"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 20),
		Sort:   r.URL.Query().Get("sort"),
	}

	if status := models.TaskStatus(r.URL.Query().Get("status")); status != "" {
		if !status.Valid() {
			render.Error(w, "Unknown status filter", http.StatusBadRequest)
			return
		}
		params.Status = &status
	}

	tasks, total, err := h.taskService.ListTasks(r.Context(), requester, params)
	if err != nil {
		render.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if tasks == nil {
		tasks = []models.Task{}
	}

	render.JSON(w, ListTasksResponse{
		Success:    true,
		Tasks:      tasks,
		Pagination: newPagination(total, params.Page, params.Limit),
	})
}

func (h *TaskHandler) get(w http.ResponseWriter, r *http.Request) {
	requester, ok := userctx.FromContext(r.Context())
	if !ok {
		render.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.Error(w, "Invalid ID format", http.StatusBadRequest)
		return
	}

	task, err := h.taskService.GetTask(r.Context(), requester, taskID)
	if err != nil {
		renderTaskError(w, err)
		return
	}

	render.JSON(w, taskResponse{Success: true, Task: task})
}

func (h *TaskHandler) update(w http.ResponseWriter, r *http.Request) {
	type UpdateTaskRequest struct {
		Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
		Description *string    `json:"description" validate:"omitempty,max=2000"`
		Status      *string    `json:"status" validate:"omitempty,oneof=open in-progress done"`
		Tags        *[]string  `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
		DueDate     *time.Time `json:"dueDate"`
		ClearDue    bool       `json:"clearDueDate"`
	}

	requester, ok := userctx.FromContext(r.Context())
	if !ok {
		render.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.Error(w, "Invalid ID format", http.StatusBadRequest)
		return
	}

	data, err := render.BindAndValidate[UpdateTaskRequest](w, r)
	if err != nil {
		return
	}

	params := repository.UpdateTaskParams{
		Title:        data.Title,
		Description:  data.Description,
		Tags:         data.Tags,
		DueDate:      data.DueDate,
		ClearDueDate: data.ClearDue,
	}
	if data.Status != nil {
		status := models.TaskStatus(*data.Status)
		params.Status = &status
	}

	task, err := h.taskService.UpdateTask(r.Context(), requester, taskID, params)
	if err != nil {
		renderTaskError(w, err)
		return
	}

	render.JSON(w, taskResponse{Success: true, Message: "Task updated successfully", Task: task})
}

func (h *TaskHandler) delete(w http.ResponseWriter, r *http.Request) {
	type DeleteTaskResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}

	requester, ok := userctx.FromContext(r.Context())
	if !ok {
		render.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.Error(w, "Invalid ID format", http.StatusBadRequest)
		return
	}

	hard := r.URL.Query().Get("hard") == "true"

	if err := h.taskService.DeleteTask(r.Context(), requester, taskID, hard); err != nil {
		renderTaskError(w, err)
		return
	}

	message := "Task deleted successfully"
	if hard && requester.IsAdmin() {
		message = "Task permanently deleted"
	}

	render.JSON(w, DeleteTaskResponse{Success: true, Message: message})
}

func renderTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrTaskNotFound):
		render.Error(w, "Task not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrForbidden):
		render.Error(w, "Access denied", http.StatusForbidden)
	default:
		render.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
