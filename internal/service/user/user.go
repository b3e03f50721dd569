package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/mkovalev/taskboard/internal/models"
	"github.com/mkovalev/taskboard/internal/repository"
)

// UserService covers the profile and admin surfaces of the user store.
// Role and active flag are mutable through UpdateUser only, which the
// router exposes to admins.
type UserService struct {
	userRepo repository.UserRepo
}

func NewService(userRepo repository.UserRepo) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}

// UpdateProfile updates the caller's own name and email; role and
// active flag are never touched here
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, name *string, email *string) (models.User, error) {
	return s.userRepo.UpdateUser(ctx, userID, repository.UpdateUserParams{
		Name:  name,
		Email: email,
	})
}

func (s *UserService) ListUsers(ctx context.Context, params repository.ListUsersParams) ([]models.User, int64, error) {
	return s.userRepo.ListUsers(ctx, params)
}

func (s *UserService) UpdateUser(ctx context.Context, userID uuid.UUID, params repository.UpdateUserParams) (models.User, error) {
	return s.userRepo.UpdateUser(ctx, userID, params)
}
