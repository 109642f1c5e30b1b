package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role of an account.
type Role string

const (
	RoleUser   Role = "USER"
	RoleAdmin  Role = "ADMIN"
	RoleSystem Role = "SYSTEM"
)

// User is the account that owns requests.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Role      Role      `json:"role" db:"role"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Actor is the already-authenticated caller of a lifecycle action.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// SystemActor is used for time-based transitions such as offer expiry.
var SystemActor = Actor{Role: RoleSystem}

// IsAdmin reports whether the actor may use the admin surface.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// UserInput provisions or updates an account mirrored from the identity provider.
type UserInput struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Role     Role   `json:"role" validate:"omitempty,oneof=USER ADMIN"`
}
