package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a user
type Role string

const (
	RoleWorker Role = "Worker"
	RoleBuyer  Role = "Buyer"
	RoleAdmin  Role = "Admin"
)

// Valid reports whether the role is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleWorker, RoleBuyer, RoleAdmin:
		return true
	}
	return false
}

// StartingCoins returns the signup grant for a role. Admins are promoted,
// never registered, so they start with nothing.
func (r Role) StartingCoins() int64 {
	switch r {
	case RoleWorker:
		return 10
	case RoleBuyer:
		return 50
	default:
		return 0
	}
}

// User represents a user in the system. Coins is the spendable balance;
// CoinsLocked holds coins reserved by pending withdrawal requests. Both are
// mutated only through the ledger.
type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	Name        string    `json:"name" db:"name"`
	Role        Role      `json:"role" db:"role"`
	Coins       int64     `json:"coins" db:"coins"`
	CoinsLocked int64     `json:"coins_locked" db:"coins_locked"`
	ImageURL    *string   `json:"image_url,omitempty" db:"image_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastLogIn   time.Time `json:"last_log_in" db:"last_log_in"`
}
