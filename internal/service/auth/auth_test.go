package auth

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/mkovalev/taskboard/internal/apperrors"
	"github.com/mkovalev/taskboard/internal/models"
	"github.com/mkovalev/taskboard/internal/repository"
	"github.com/mkovalev/taskboard/internal/repository/postgres"
	"github.com/mkovalev/taskboard/internal/service/auth/tokenmanager"
	"github.com/mkovalev/taskboard/internal/testutil"
)

func Test_Auth(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Begin new db transaction and create new AuthService
	// Rollback transaction when test stops
	withTx := func(dbpool *pgxpool.Pool, accessTTL time.Duration, refreshTTL time.Duration, t *testing.T, fn func(s *AuthService, userRepo *postgres.UserRepo)) {
		testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
			userRepo := &postgres.UserRepo{DB: tx}

			tokenManager, err := tokenmanager.New(tokenmanager.Config{
				AccessSecret:  "access-test-secret",
				RefreshSecret: "refresh-test-secret",
				AccessTTL:     accessTTL,
				RefreshTTL:    refreshTTL,
			})
			require.NoError(t, err, "token manager should be created without errors")

			s, err := NewService(Config{}, tokenManager, userRepo)
			require.NoError(t, err, "auth service couldn't be started", err)

			fn(s, userRepo)
		})
	}

	t.Run("Register", func(t *testing.T) {
		t.Run("new user ok", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, userRepo *postgres.UserRepo) {
				user, pair, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")

				require.NoError(t, err, "registering new user should be ok")
				require.Equal(t, "m@example.com", user.Email)
				require.Equal(t, models.RoleUser, user.Role, "new users always get the user role")
				require.True(t, user.IsActive)
				require.NotEmpty(t, pair.Access.Value, "access token should not be empty")
				require.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")

				stored, err := userRepo.GetUserByID(t.Context(), user.ID)
				require.NoError(t, err)
				require.NotNil(t, stored.RefreshToken)
				require.Equal(t, pair.Refresh.Value, *stored.RefreshToken, "issued refresh token should be stored on the user")
			})
		})

		t.Run("fail if email taken", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ *postgres.UserRepo) {
				_, _, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				_, _, err = s.Register(t.Context(), "Other", "M@Example.Com", "pwd2")
				require.ErrorIs(t, err, apperrors.ErrEmailTaken, "email match should be case-insensitive")
			})
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("ok", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ *postgres.UserRepo) {
				registered, firstPair, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				user, pair, err := s.Login(t.Context(), "m@example.com", "pwd")
				require.NoError(t, err)
				require.Equal(t, registered.ID, user.ID)
				require.NotEmpty(t, pair.Access.Value)
				require.NotEqual(t, firstPair.Refresh.Value, pair.Refresh.Value, "login should mint and store a new refresh token")
			})
		})

		t.Run("unknown email and wrong password fail the same way", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ *postgres.UserRepo) {
				_, _, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				_, _, unknownErr := s.Login(t.Context(), "nobody@example.com", "pwd")
				_, _, wrongErr := s.Login(t.Context(), "m@example.com", "not-the-password")

				require.ErrorIs(t, unknownErr, apperrors.ErrInvalidCredentials)
				require.ErrorIs(t, wrongErr, apperrors.ErrInvalidCredentials)
				require.Equal(t, unknownErr, wrongErr, "both failures should be indistinguishable to the caller")
			})
		})

		t.Run("inactive account", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, userRepo *postgres.UserRepo) {
				user, _, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				inactive := false
				_, err = userRepo.UpdateUser(t.Context(), user.ID, repository.UpdateUserParams{IsActive: &inactive})
				require.NoError(t, err)

				_, _, err = s.Login(t.Context(), "m@example.com", "pwd")
				require.ErrorIs(t, err, apperrors.ErrAccountInactive)
			})
		})
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("rotates the stored token", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, userRepo *postgres.UserRepo) {
				user, pair, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				newPair, err := s.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)
				require.NotEqual(t, pair.Refresh.Value, newPair.Refresh.Value)

				stored, err := userRepo.GetUserByID(t.Context(), user.ID)
				require.NoError(t, err)
				require.NotNil(t, stored.RefreshToken)
				require.Equal(t, newPair.Refresh.Value, *stored.RefreshToken)
			})
		})

		t.Run("a rotated-out token is single use", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ *postgres.UserRepo) {
				_, pair, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshReused, "the old token was rotated out and must be rejected")
			})
		})

		t.Run("empty token", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ *postgres.UserRepo) {
				_, err := s.Refresh(t.Context(), "")
				require.ErrorIs(t, err, apperrors.ErrNoToken)
			})
		})

		t.Run("expired token", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, -time.Minute, t, func(s *AuthService, _ *postgres.UserRepo) {
				_, pair, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrTokenExpired)
			})
		})

		t.Run("token after logout", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ *postgres.UserRepo) {
				user, pair, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				require.NoError(t, s.Logout(t.Context(), user.ID))

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshReused, "logout clears the stored token so the old one must not refresh")
			})
		})

		t.Run("inactive account", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, userRepo *postgres.UserRepo) {
				user, pair, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				inactive := false
				_, err = userRepo.UpdateUser(t.Context(), user.ID, repository.UpdateUserParams{IsActive: &inactive})
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrAccountInactive)
			})
		})
	})

	t.Run("Logout", func(t *testing.T) {
		t.Run("idempotent", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ *postgres.UserRepo) {
				user, _, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				require.NoError(t, s.Logout(t.Context(), user.ID))
				require.NoError(t, s.Logout(t.Context(), user.ID), "second logout should succeed too")
			})
		})
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("ok", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ *postgres.UserRepo) {
				registered, pair, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				user, err := s.Authenticate(t.Context(), pair.Access.Value)
				require.NoError(t, err)
				require.Equal(t, registered.ID, user.ID)
			})
		})

		t.Run("deactivation takes effect immediately", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, userRepo *postgres.UserRepo) {
				user, pair, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				inactive := false
				_, err = userRepo.UpdateUser(t.Context(), user.ID, repository.UpdateUserParams{IsActive: &inactive})
				require.NoError(t, err)

				_, err = s.Authenticate(t.Context(), pair.Access.Value)
				require.ErrorIs(t, err, apperrors.ErrAccountInactive, "a still-valid token must not outlive the account state")
			})
		})

		t.Run("expired token", func(t *testing.T) {
			withTx(pg.Pool, -time.Minute, 24*time.Hour, t, func(s *AuthService, _ *postgres.UserRepo) {
				_, pair, err := s.Register(t.Context(), "Mikhail", "m@example.com", "pwd")
				require.NoError(t, err)

				_, err = s.Authenticate(t.Context(), pair.Access.Value)
				require.ErrorIs(t, err, apperrors.ErrTokenExpired)
			})
		})

		t.Run("empty token", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ *postgres.UserRepo) {
				_, err := s.Authenticate(t.Context(), "")
				require.ErrorIs(t, err, apperrors.ErrNoToken)
			})
		})
	})
}
