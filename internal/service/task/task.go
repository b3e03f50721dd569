package task

import (
	"context"

	"github.com/google/uuid"

	"github.com/mkovalev/taskboard/internal/apperrors"
	"github.com/mkovalev/taskboard/internal/models"
	"github.com/mkovalev/taskboard/internal/repository"
)

// TaskService wraps the task store with the authorization rules the
// store itself doesn't know: a task may be touched by its owner or by an
// admin, and only admins may hard-delete.
type TaskService struct {
	taskRepo repository.TaskRepo
}

func NewService(taskRepo repository.TaskRepo) *TaskService {
	return &TaskService{taskRepo: taskRepo}
}

func (s *TaskService) CreateTask(ctx context.Context, requester models.User, params repository.CreateTaskParams) (models.Task, error) {
	params.OwnerID = requester.ID
	return s.taskRepo.CreateTask(ctx, params)
}

func (s *TaskService) GetTask(ctx context.Context, requester models.User, taskID uuid.UUID) (models.Task, error) {
	task, err := s.taskRepo.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}

	if err := authorize(requester, task); err != nil {
		return models.Task{}, err
	}

	return task, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, requester models.User, taskID uuid.UUID, params repository.UpdateTaskParams) (models.Task, error) {
	// Ownership is checked against the current document before writing
	task, err := s.taskRepo.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}

	if err := authorize(requester, task); err != nil {
		return models.Task{}, err
	}

	return s.taskRepo.UpdateTask(ctx, taskID, params)
}

// ListTasks is always owner-scoped for non-admins; admins see every
// live task
func (s *TaskService) ListTasks(ctx context.Context, requester models.User, params repository.ListTasksParams) ([]models.Task, int64, error) {
	if !requester.IsAdmin() {
		params.OwnerID = &requester.ID
	}

	return s.taskRepo.ListTasks(ctx, params)
}

// DeleteTask tombstones the task. A hard (physical) delete happens only
// when an admin explicitly asks for it; for everyone else the record
// stays in the store and disappears from reads.
func (s *TaskService) DeleteTask(ctx context.Context, requester models.User, taskID uuid.UUID, hard bool) error {
	task, err := s.taskRepo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if err := authorize(requester, task); err != nil {
		return err
	}

	if requester.IsAdmin() && hard {
		return s.taskRepo.HardDeleteTask(ctx, taskID)
	}

	return s.taskRepo.SoftDeleteTask(ctx, taskID)
}

// authorize permits admins and the task's owner, everyone else is denied
// whatever the task contains
func authorize(requester models.User, task models.Task) error {
	if requester.IsAdmin() || requester.ID == task.OwnerID {
		return nil
	}
	return apperrors.ErrForbidden
}
