package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mkovalev/taskboard/internal/models"
)

type CreateUserParams struct {
	Name           string
	Email          string
	HashedPassword string
	Role           models.Role
}

// UpdateUserParams are partial: nil fields are left untouched
type UpdateUserParams struct {
	Name     *string
	Email    *string
	Role     *models.Role
	IsActive *bool
}

type ListUsersParams struct {
	Role     *models.Role
	IsActive *bool
	Search   string // matches name or email, case-insensitive
	Page     int
	Limit    int
}

// User repository interface
type UserRepo interface {
	// Create user. Email is stored lowercased.
	// If a user with the same email exists must return apperrors.ErrEmailTaken
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by id or email (email compared lowercased)
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Partial update of profile and admin-managed fields
	UpdateUser(ctx context.Context, userID uuid.UUID, params UpdateUserParams) (models.User, error)

	// Set or clear the single stored refresh token. nil clears it.
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token *string) error

	// Rotate the stored refresh token in one atomic update: the write
	// happens only if the stored token equals 'presented'. A mismatch
	// (stale, already rotated or cleared token) must return
	// apperrors.ErrRefreshReused. A concurrent-refresh race loser
	// observes the same error, never a partial write.
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, presented string, next string) (models.User, error)

	// List users with paging and filters
	ListUsers(ctx context.Context, params ListUsersParams) ([]models.User, int64, error)
}

type CreateTaskParams struct {
	Title       string
	Description string
	Status      models.TaskStatus
	OwnerID     uuid.UUID
	Tags        []string
	DueDate     *time.Time
}

// UpdateTaskParams are partial: nil fields are left untouched.
// ClearDueDate removes the due date regardless of DueDate.
type UpdateTaskParams struct {
	Title        *string
	Description  *string
	Status       *models.TaskStatus
	Tags         *[]string
	DueDate      *time.Time
	ClearDueDate bool
}

type ListTasksParams struct {
	OwnerID *uuid.UUID // nil lists tasks of every owner (admin)
	Status  *models.TaskStatus
	Search  string // full-text over title and description
	Page    int
	Limit   int
	Sort    string // field name, '-' prefix for descending; default -createdAt
}

// Task repository interface.
// Every read excludes soft-deleted (tombstoned) tasks; if the task is
// absent or tombstoned the repo must return apperrors.ErrTaskNotFound.
type TaskRepo interface {
	CreateTask(ctx context.Context, params CreateTaskParams) (models.Task, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (models.Task, error)
	UpdateTask(ctx context.Context, taskID uuid.UUID, params UpdateTaskParams) (models.Task, error)
	ListTasks(ctx context.Context, params ListTasksParams) ([]models.Task, int64, error)

	// Set the tombstone flag in one atomic update
	SoftDeleteTask(ctx context.Context, taskID uuid.UUID) error

	// Remove the document permanently
	HardDeleteTask(ctx context.Context, taskID uuid.UUID) error
}
