package users

import (
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// User represents a user account. Users hold no permissions of their own.
type User struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	PasswordHash string      `json:"-"`
	Status       rbac.Status `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// CreateInput carries the payload for creating a user.
type CreateInput struct {
	Email    string      `json:"email" validate:"required,email,max=255"`
	Name     string      `json:"name" validate:"required,max=128"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Status   rbac.Status `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE SUSPENDED"`
}

func (in CreateInput) normalize() CreateInput {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.Status = rbac.Status(strings.ToUpper(strings.TrimSpace(string(in.Status))))
	if in.Status == "" {
		in.Status = rbac.StatusActive
	}
	return in
}

// AssignInput names a single role to add.
type AssignInput struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

// RolesInput replaces the full set of roles held by a user.
type RolesInput struct {
	RoleIDs []int64 `json:"role_ids"`
}
