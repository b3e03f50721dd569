package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mkovalev/taskboard/internal/apperrors"
	"github.com/mkovalev/taskboard/internal/handlers/render"
	"github.com/mkovalev/taskboard/internal/handlers/userctx"
	"github.com/mkovalev/taskboard/internal/models"
)

const refreshCookieName = "refreshToken"

type authService interface {
	// Register user. Has to return apperrors.ErrEmailTaken if the email
	// is already registered (case-insensitive)
	Register(ctx context.Context, name string, email string, password string) (models.User, models.TokenPair, error)

	// Login user. Has to return the same apperrors.ErrInvalidCredentials
	// for unknown email and wrong password, and
	// apperrors.ErrAccountInactive for deactivated accounts
	Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error)

	// Refresh tokens using the presented refresh token, rotating the
	// stored one
	Refresh(ctx context.Context, presented string) (models.TokenPair, error)

	// Logout clears the stored refresh token
	Logout(ctx context.Context, userID uuid.UUID) error
}

type AuthHandler struct {
	authService authService

	// Secure is set on the refresh cookie in production
	secureCookie bool
}

func NewAuth(auth authService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: auth, secureCookie: secureCookie}
}

// Handler returns the unauthenticated part of the auth surface; logout
// is registered separately behind the auth middleware
func (h *AuthHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /refresh", h.refresh)

	return mux
}

func (h *AuthHandler) LogoutHandler() http.Handler {
	return http.HandlerFunc(h.logout)
}

// authUser is the user shape auth responses expose
type authUser struct {
	ID    uuid.UUID   `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Name     string `json:"name" validate:"required,min=1,max=100"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}
	type RegisterSuccessResponse struct {
		Success     bool     `json:"success"`
		Message     string   `json:"message"`
		User        authUser `json:"user"`
		AccessToken string   `json:"accessToken"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	user, pair, err := h.authService.Register(r.Context(), data.Name, data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrEmailTaken):
			render.Error(w, "Email already exists", http.StatusConflict)
		default:
			render.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.setRefreshCookie(w, pair.Refresh)
	render.JSONWithStatus(w, RegisterSuccessResponse{
		Success:     true,
		Message:     "User registered successfully",
		User:        authUser{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role},
		AccessToken: pair.Access.Value,
	}, http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	type LoginSuccessResponse struct {
		Success     bool     `json:"success"`
		Message     string   `json:"message"`
		User        authUser `json:"user"`
		AccessToken string   `json:"accessToken"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	user, pair, err := h.authService.Login(r.Context(), data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.Error(w, "Invalid credentials", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrAccountInactive):
			render.Error(w, "Account is inactive", http.StatusForbidden)
		default:
			render.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.setRefreshCookie(w, pair.Refresh)
	render.JSON(w, LoginSuccessResponse{
		Success:     true,
		Message:     "User logged in successfully",
		User:        authUser{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role},
		AccessToken: pair.Access.Value,
	})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshRequest struct {
		RefreshToken string `json:"refreshToken"`
	}
	type RefreshSuccessResponse struct {
		Success     bool   `json:"success"`
		Message     string `json:"message"`
		AccessToken string `json:"accessToken"`
	}

	// Refresh token comes from the cookie, or the body as a fallback
	presented := ""
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		presented = cookie.Value
	}
	if presented == "" && r.Body != nil {
		var data RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&data)
		presented = data.RefreshToken
	}

	if presented == "" {
		render.Error(w, "Refresh token required", http.StatusUnauthorized)
		return
	}

	pair, err := h.authService.Refresh(r.Context(), presented)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTokenExpired):
			render.Error(w, "Refresh token expired", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrRefreshReused):
			render.Error(w, "Refresh token is expired or used", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrAccountInactive):
			render.Error(w, "Account is inactive", http.StatusForbidden)
		default:
			render.Error(w, "Invalid refresh token", http.StatusUnauthorized)
		}
		return
	}

	h.setRefreshCookie(w, pair.Refresh)
	render.JSON(w, RefreshSuccessResponse{
		Success:     true,
		Message:     "Access token refreshed",
		AccessToken: pair.Access.Value,
	})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutSuccessResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.authService.Logout(r.Context(), user.ID); err != nil {
		render.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.clearRefreshCookie(w)
	render.JSON(w, LogoutSuccessResponse{Success: true, Message: "User logged out successfully"})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, refresh models.IssuedToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refresh.Value,
		Path:     "/",
		MaxAge:   int(time.Until(refresh.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}
