package entities

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User represents a user in the system. Users created from an OAuth login
// may carry a synthesized email; that email and the display name are
// reference data and are never overwritten by later logins.
type User struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	DisplayName  string     `json:"display_name" db:"name"` // db column is 'name'
	AvatarURL    *string    `json:"avatar_url,omitempty" db:"avatar_url"`
	Timezone     *string    `json:"timezone,omitempty" db:"timezone"` // IANA name, e.g. "Europe/Berlin"
	PasswordHash *string    `json:"-" db:"password_hash"` // never serialize to JSON; nil for OAuth-only users
	Role         Role       `json:"role" db:"role"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}

// Role represents user roles in the system
type Role string

const (
	RoleUser    Role = "user"
	RoleAnalyst Role = "analyst"
	RoleAdmin   Role = "admin"
)

// HasRole checks if the user has a specific role
func (u *User) HasRole(role Role) bool {
	return u.Role == role
}

// IsAdmin returns true if the user is an admin
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// VerifyPassword checks if the provided password matches the hashed password
func (u *User) VerifyPassword(password string) bool {
	if u.PasswordHash == nil {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password))
	return err == nil
}
