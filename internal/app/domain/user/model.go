package user

import (
	"fmt"
	"time"
)

// Role classifies what a user is allowed to do.
type Role string

const (
	// RoleAdmin can manage the catalog and other users.
	RoleAdmin Role = "admin"
	// RoleCustomer can browse the catalog and place orders.
	RoleCustomer Role = "customer"
)

// ParseRole validates a raw role value.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleCustomer:
		return RoleCustomer, nil
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// User represents a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
