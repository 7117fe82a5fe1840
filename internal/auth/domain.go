package auth

import (
	"time"

	"github.com/iris-crm/iris/internal/crm"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	Role         crm.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
