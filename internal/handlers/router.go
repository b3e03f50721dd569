package handlers

import (
	"context"
	"net/http"

	"github.com/mkovalev/taskboard/internal/handlers/middleware"
	"github.com/mkovalev/taskboard/internal/handlers/render"
	"github.com/mkovalev/taskboard/internal/logger"
	"github.com/mkovalev/taskboard/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// mount serves h under prefix. The bare prefix (no trailing slash) is
// served as "/" instead of the redirect StripPrefix would trigger,
// which matters for POST requests.
func mount(prefix string, h http.Handler) http.Handler {
	stripped := http.StripPrefix(prefix, h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == prefix {
			r2 := r.Clone(r.Context())
			r2.URL.Path = "/"
			h.ServeHTTP(w, r2)
			return
		}
		stripped.ServeHTTP(w, r)
	})
}

// authenticator backs the access token gate on protected routes
type authenticator interface {
	Authenticate(ctx context.Context, access string) (models.User, error)
}

type rateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type RouterConfig struct {
	Auth  *AuthHandler
	Users *UserHandler
	Tasks *TaskHandler

	Authenticator authenticator

	// AllowedOrigins for CORS; empty disables cross-origin access
	AllowedOrigins []string

	// RateLimiter throttles the auth endpoints when set, nil disables
	RateLimiter rateLimiter

	Logger logger.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	withAuth := middleware.AuthMiddleware(cfg.Authenticator)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	authRoutes := cfg.Auth.Handler()
	if cfg.RateLimiter != nil {
		authRoutes = middleware.RateLimitMiddleware(cfg.RateLimiter, cfg.Logger)(authRoutes)
	}

	api := http.NewServeMux()
	api.Handle("/auth/", http.StripPrefix("/auth", authRoutes))
	api.Handle("POST /auth/logout", withAuth(cfg.Auth.LogoutHandler()))

	api.Handle("/users/me", withAuth(http.StripPrefix("/users", cfg.Users.Handler())))
	api.Handle("/users/", withAuth(adminOnly(http.StripPrefix("/users", cfg.Users.AdminHandler()))))

	taskRoutes := withAuth(mount("/tasks", cfg.Tasks.Handler()))
	api.Handle("/tasks", taskRoutes)
	api.Handle("/tasks/", taskRoutes)

	api.HandleFunc("GET /health", handleHealth)

	root := http.NewServeMux()
	root.Handle("/api/v1/", http.StripPrefix("/api/v1", api))

	return chain(root,
		middleware.LoggerMiddleware(cfg.Logger),
		middleware.SecureHeadersMiddleware(),
		middleware.CORSMiddleware(cfg.AllowedOrigins),
	)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	render.JSON(w, struct {
		Success bool   `json:"success"`
		Status  string `json:"status"`
	}{Success: true, Status: "ok"})
}
