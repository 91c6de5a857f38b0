package auth

import (
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/users"
)

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// normalize matches the lowercase form accounts are stored with.
func (in LoginInput) normalize() LoginInput {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return in
}

// Session is the outcome of a successful login.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      users.User `json:"user"`
}
