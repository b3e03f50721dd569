package middleware

import (
	"net/http"

	"github.com/mkovalev/taskboard/internal/handlers/render"
	"github.com/mkovalev/taskboard/internal/handlers/userctx"
	"github.com/mkovalev/taskboard/internal/models"
)

// RequireRole passes the request through only when the authenticated
// user's role is in the allowed set. Compose it after AuthMiddleware;
// a stateless predicate, no lookups of its own.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userctx.FromContext(r.Context())
			if !ok {
				render.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			if _, ok := allowed[user.Role]; !ok {
				render.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
