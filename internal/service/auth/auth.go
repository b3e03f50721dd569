package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkovalev/taskboard/internal/apperrors"
	"github.com/mkovalev/taskboard/internal/models"
	"github.com/mkovalev/taskboard/internal/repository"
	"github.com/mkovalev/taskboard/internal/service/auth/tokenmanager"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Hasher to use during registration or login
	// BcryptHasher is used if not set
	Hasher PasswordHasher
}

// AuthService orchestrates the session lifecycle: registration, login,
// refresh-token rotation and logout. The stored refresh token is the
// single source of truth for a user's session; every login and refresh
// overwrites it, logout clears it.
type AuthService struct {
	token    *tokenmanager.TokenManager
	hasher   PasswordHasher
	userRepo repository.UserRepo

	// Hash compared against when the email is unknown, so login takes
	// the same time for "no such user" and "wrong password"
	dummyHash string
}

func NewService(cfg Config, token *tokenmanager.TokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	if token == nil || userRepo == nil {
		return nil, errors.New("token manager and user repo must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("error while preparing hasher. Err: %w", err)
	}

	return &AuthService{
		token:     token,
		hasher:    hasher,
		userRepo:  userRepo,
		dummyHash: dummyHash,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, name string, email string, password string) (models.User, models.TokenPair, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, repository.CreateUserParams{
		Name:           name,
		Email:          email,
		HashedPassword: hash,
		Role:           models.RoleUser,
	})
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		// Same error for unknown email and wrong password, and a compare
		// against the dummy hash so both paths cost the same
		_ = s.hasher.Compare(s.dummyHash, password)
		return models.User{}, models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return models.User{}, models.TokenPair{}, apperrors.ErrAccountInactive
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a brand-new pair and
// rotates the stored token. A presented token that no longer matches the
// stored one is treated as reuse of a rotated-out token, not as a retry.
func (s *AuthService) Refresh(ctx context.Context, presented string) (models.TokenPair, error) {
	if presented == "" {
		return models.TokenPair{}, apperrors.ErrNoToken
	}

	claims, err := s.token.ParseRefresh(presented)
	if err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return models.TokenPair{}, apperrors.ErrTokenInvalid
		}
		return models.TokenPair{}, err
	}

	if !user.IsActive {
		return models.TokenPair{}, apperrors.ErrAccountInactive
	}

	access, err := s.token.IssueAccess(user)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := s.token.IssueRefresh(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	// Compare-and-swap against the stored token; the race loser of two
	// concurrent refreshes gets ErrRefreshReused here
	if _, err := s.userRepo.RotateRefreshToken(ctx, user.ID, presented, refresh.Value); err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Logout clears the stored refresh token. Idempotent: logging out an
// already logged-out user succeeds.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.userRepo.SetRefreshToken(ctx, userID, nil)
}

// Authenticate resolves a bearer access token into the current user.
// The token only routes the lookup: the user is always re-read from the
// store, so deactivation and deletion take effect immediately.
func (s *AuthService) Authenticate(ctx context.Context, access string) (models.User, error) {
	if access == "" {
		return models.User{}, apperrors.ErrNoToken
	}

	claims, err := s.token.ParseAccess(access)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return models.User{}, err
	}

	if !user.IsActive {
		return models.User{}, apperrors.ErrAccountInactive
	}

	return user, nil
}

// issuePair mints both tokens and overwrites the stored refresh token,
// invalidating whatever token was stored before
func (s *AuthService) issuePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	access, err := s.token.IssueAccess(user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	refresh, err := s.token.IssueRefresh(user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	if err := s.userRepo.SetRefreshToken(ctx, user.ID, &refresh.Value); err != nil {
		return models.TokenPair{}, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}
