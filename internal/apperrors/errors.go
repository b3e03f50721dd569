package apperrors

import (
	"errors"
)

var (
	ErrEmailTaken         = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")

	ErrNoToken       = errors.New("no token provided")
	ErrTokenInvalid  = errors.New("token is invalid")
	ErrTokenExpired  = errors.New("token is expired")
	ErrRefreshReused = errors.New("refresh token is expired or used")

	ErrForbidden = errors.New("access denied")

	ErrTaskNotFound = errors.New("task not found")
)
