package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mkovalev/taskboard/internal/apperrors"
	"github.com/mkovalev/taskboard/internal/handlers/render"
	"github.com/mkovalev/taskboard/internal/handlers/userctx"
	"github.com/mkovalev/taskboard/internal/models"
)

const bearerPrefix = "Bearer "

type authService interface {
	Authenticate(ctx context.Context, access string) (models.User, error)
}

// AuthMiddleware validates the bearer access token on every request and
// attaches the resolved user to the request context. It is a pure gate:
// no session affinity, the user is re-resolved each time.
//
// Expired tokens get a distinct machine-checkable code so clients know
// to refresh instead of re-login.
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				render.Error(w, "Access denied. No token provided.", http.StatusUnauthorized)
				return
			}

			user, err := as.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, apperrors.ErrTokenExpired):
					render.ErrorCoded(w, "Token expired", render.CodeTokenExpired, http.StatusUnauthorized)
				case errors.Is(err, apperrors.ErrTokenInvalid):
					render.Error(w, "Invalid token", http.StatusUnauthorized)
				case errors.Is(err, apperrors.ErrUserNotFound):
					render.Error(w, "User not found", http.StatusNotFound)
				case errors.Is(err, apperrors.ErrAccountInactive):
					render.Error(w, "Account is inactive", http.StatusForbidden)
				default:
					render.Error(w, "Internal server error", http.StatusInternalServerError)
				}
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}
