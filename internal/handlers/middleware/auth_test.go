package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mkovalev/taskboard/internal/apperrors"
	"github.com/mkovalev/taskboard/internal/handlers/userctx"
	"github.com/mkovalev/taskboard/internal/models"
)

type fakeAuthenticator struct {
	user models.User
	err  error
}

func (f fakeAuthenticator) Authenticate(_ context.Context, access string) (models.User, error) {
	if access == "" {
		return models.User{}, apperrors.ErrNoToken
	}
	return f.user, f.err
}

func Test_AuthMiddleware(t *testing.T) {
	t.Parallel()

	user := models.User{ID: uuid.New(), Name: "Mikhail", Role: models.RoleUser, IsActive: true}

	// Handler that records whether it was reached and with which user
	makeNext := func(reached *bool, gotUser *models.User) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*reached = true
			if u, ok := userctx.FromContext(r.Context()); ok {
				*gotUser = u
			}
		})
	}

	do := func(t *testing.T, as fakeAuthenticator, authHeader string) (*httptest.ResponseRecorder, bool, models.User) {
		t.Helper()

		var reached bool
		var gotUser models.User

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}

		rec := httptest.NewRecorder()
		AuthMiddleware(as)(makeNext(&reached, &gotUser)).ServeHTTP(rec, req)

		return rec, reached, gotUser
	}

	t.Run("valid token passes the user through", func(t *testing.T) {
		rec, reached, gotUser := do(t, fakeAuthenticator{user: user}, "Bearer sometoken")

		require.True(t, reached, "request should reach the handler")
		require.Equal(t, user.ID, gotUser.ID, "user should be attached to the context")
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("no token", func(t *testing.T) {
		rec, reached, _ := do(t, fakeAuthenticator{user: user}, "")

		require.False(t, reached)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.JSONEq(t, `{"success": false, "message": "Access denied. No token provided."}`, rec.Body.String())
	})

	t.Run("malformed authorization header", func(t *testing.T) {
		rec, reached, _ := do(t, fakeAuthenticator{user: user}, "Basic dXNlcjpwd2Q=")

		require.False(t, reached)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token carries the expiry code", func(t *testing.T) {
		rec, reached, _ := do(t, fakeAuthenticator{err: apperrors.ErrTokenExpired}, "Bearer expired")

		require.False(t, reached)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.JSONEq(t, `{"success": false, "message": "Token expired", "code": "token_expired"}`, rec.Body.String())
	})

	t.Run("invalid token", func(t *testing.T) {
		rec, reached, _ := do(t, fakeAuthenticator{err: apperrors.ErrTokenInvalid}, "Bearer garbage")

		require.False(t, reached)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.JSONEq(t, `{"success": false, "message": "Invalid token"}`, rec.Body.String())
	})

	t.Run("user deleted after token was issued", func(t *testing.T) {
		rec, reached, _ := do(t, fakeAuthenticator{err: apperrors.ErrUserNotFound}, "Bearer orphaned")

		require.False(t, reached)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("inactive account", func(t *testing.T) {
		rec, reached, _ := do(t, fakeAuthenticator{err: apperrors.ErrAccountInactive}, "Bearer inactive")

		require.False(t, reached)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.JSONEq(t, `{"success": false, "message": "Account is inactive"}`, rec.Body.String())
	})
}

func Test_RequireRole(t *testing.T) {
	t.Parallel()

	do := func(t *testing.T, user *models.User, roles ...models.Role) (*httptest.ResponseRecorder, bool) {
		t.Helper()

		var reached bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if user != nil {
			req = req.WithContext(userctx.New(req.Context(), *user))
		}

		rec := httptest.NewRecorder()
		RequireRole(roles...)(next).ServeHTTP(rec, req)

		return rec, reached
	}

	t.Run("allowed role", func(t *testing.T) {
		admin := models.User{ID: uuid.New(), Role: models.RoleAdmin}
		rec, reached := do(t, &admin, models.RoleAdmin)

		require.True(t, reached)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("role not allowed", func(t *testing.T) {
		user := models.User{ID: uuid.New(), Role: models.RoleUser}
		rec, reached := do(t, &user, models.RoleAdmin)

		require.False(t, reached)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.JSONEq(t, `{"success": false, "message": "Insufficient permissions"}`, rec.Body.String())
	})

	t.Run("no user in context", func(t *testing.T) {
		rec, reached := do(t, nil, models.RoleAdmin)

		require.False(t, reached)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
