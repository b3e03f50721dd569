package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User as stored in the credential store.
// HashedPassword and RefreshToken must never be serialized outward;
// handlers render users through PublicUser only.
type User struct {
	ID             uuid.UUID
	Name           string
	Email          string
	HashedPassword string
	Role           Role
	IsActive       bool
	RefreshToken   *string // nil when logged out
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PublicUser is the sanitized shape attached to request contexts
// and returned in responses.
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
