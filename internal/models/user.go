package models

import (
	"time"
)

// Role selects which view a signed-in user gets
type Role string

const (
	RoleWaitress      Role = "waitress"
	RoleKitchen       Role = "kitchen"
	RoleBartender     Role = "bartender"
	RoleAdministrator Role = "administrator"
)

// ParseRole validates a role name
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleWaitress, RoleKitchen, RoleBartender, RoleAdministrator:
		return Role(s), nil
	default:
		return "", ValidationError{Field: "role", Message: "unknown role " + s}
	}
}

// Department returns the fulfilment department a role works for, if any.
func (r Role) Department() (Department, bool) {
	switch r {
	case RoleKitchen:
		return Kitchen, true
	case RoleBartender:
		return Bar, true
	default:
		return "", false
	}
}

// User is a staff account
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	FullName     string    `json:"full_name" db:"full_name"`
	Role         Role      `json:"role" db:"role"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at,omitempty" db:"created_at"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /auth/login
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	Role        Role      `json:"role"`
	FullName    string    `json:"full_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}
