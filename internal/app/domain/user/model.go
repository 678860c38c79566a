package user

import (
	"strings"
	"time"
)

// Role determines what a user may do on the marketplace.
type Role string

const (
	RoleFreelancer   Role = "freelancer"
	RoleProductOwner Role = "product_owner"
	RoleAdmin        Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleFreelancer, RoleProductOwner, RoleAdmin:
		return true
	}
	return false
}

// User is a registered marketplace participant.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeEmail trims and lower-cases an address for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
