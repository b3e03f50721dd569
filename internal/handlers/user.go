package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/mkovalev/taskboard/internal/apperrors"
	"github.com/mkovalev/taskboard/internal/handlers/render"
	"github.com/mkovalev/taskboard/internal/handlers/userctx"
	"github.com/mkovalev/taskboard/internal/models"
	"github.com/mkovalev/taskboard/internal/repository"
)

type userService interface {
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, name *string, email *string) (models.User, error)
	ListUsers(ctx context.Context, params repository.ListUsersParams) ([]models.User, int64, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, params repository.UpdateUserParams) (models.User, error)
}

type UserHandler struct {
	userService userService
}

func NewUser(userService userService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Handler returns routes available to any authenticated user
func (h *UserHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", h.me)
	mux.HandleFunc("PUT /me", h.updateMe)

	return mux
}

// AdminHandler returns routes for the admin role only
func (h *UserHandler) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.list)
	mux.HandleFunc("PUT /{id}", h.update)

	return mux
}

type userResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	User    models.PublicUser `json:"user"`
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, userResponse{Success: true, User: user.Public()})
}

func (h *UserHandler) updateMe(w http.ResponseWriter, r *http.Request) {
	type UpdateMeRequest struct {
		Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
		Email *string `json:"email" validate:"omitempty,email"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[UpdateMeRequest](w, r)
	if err != nil {
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), user.ID, data.Name, data.Email)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrEmailTaken):
			render.Error(w, "Email already exists", http.StatusConflict)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.Error(w, "User not found", http.StatusNotFound)
		default:
			render.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, userResponse{Success: true, Message: "Profile updated successfully", User: updated.Public()})
}

func (h *UserHandler) list(w http.ResponseWriter, r *http.Request) {
	type ListUsersResponse struct {
		Success    bool                `json:"success"`
		Users      []models.PublicUser `json:"users"`
		Pagination pagination          `json:"pagination"`
	}

	params := repository.ListUsersParams{
		Search: r.URL.Query().Get("search"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 20),
	}

	if role := models.Role(r.URL.Query().Get("role")); role != "" {
		if !role.Valid() {
			render.Error(w, "Unknown role filter", http.StatusBadRequest)
			return
		}
		params.Role = &role
	}
	if raw := r.URL.Query().Get("isActive"); raw != "" {
		active := raw == "true"
		params.IsActive = &active
	}

	users, total, err := h.userService.ListUsers(r.Context(), params)
	if err != nil {
		render.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	public := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}

	render.JSON(w, ListUsersResponse{
		Success:    true,
		Users:      public,
		Pagination: newPagination(total, params.Page, params.Limit),
	})
}

func (h *UserHandler) update(w http.ResponseWriter, r *http.Request) {
	type UpdateUserRequest struct {
		Name     *string      `json:"name" validate:"omitempty,min=1,max=100"`
		Email    *string      `json:"email" validate:"omitempty,email"`
		Role     *models.Role `json:"role" validate:"omitempty,oneof=user admin"`
		IsActive *bool        `json:"isActive"`
	}

	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.Error(w, "Invalid ID format", http.StatusBadRequest)
		return
	}

	data, err := render.BindAndValidate[UpdateUserRequest](w, r)
	if err != nil {
		return
	}

	updated, err := h.userService.UpdateUser(r.Context(), userID, repository.UpdateUserParams{
		Name:     data.Name,
		Email:    data.Email,
		Role:     data.Role,
		IsActive: data.IsActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.Error(w, "User not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrEmailTaken):
			render.Error(w, "Email already exists", http.StatusConflict)
		default:
			render.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, userResponse{Success: true, Message: "User updated successfully", User: updated.Public()})
}

type pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

func newPagination(total int64, page int, limit int) pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	return pagination{
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: (total + int64(limit) - 1) / int64(limit),
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return def
	}
	return value
}
