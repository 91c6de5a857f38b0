package roles

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// Role represents a role together with its permission set.
type Role = rbac.Role

// CreateInput carries the payload for creating a role.
type CreateInput struct {
	Name          string  `json:"name" validate:"required,max=64,slug"`
	DisplayName   string  `json:"display_name" validate:"max=128"`
	Description   string  `json:"description" validate:"max=255"`
	PermissionIDs []int64 `json:"permission_ids"`
}

// UpdateInput carries the editable role fields. Name is immutable.
type UpdateInput struct {
	DisplayName string `json:"display_name" validate:"max=128"`
	Description string `json:"description" validate:"max=255"`
}

// PermissionsInput replaces the permission set of a role.
type PermissionsInput struct {
	PermissionIDs []int64 `json:"permission_ids"`
}

var titleCaser = cases.Title(language.English)

// DefaultDisplayName renders a role name such as "super_admin" as "Super Admin".
func DefaultDisplayName(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

func (in CreateInput) normalize() CreateInput {
	in.Name = strings.ToLower(strings.TrimSpace(in.Name))
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Description = strings.TrimSpace(in.Description)
	if in.DisplayName == "" {
		in.DisplayName = DefaultDisplayName(in.Name)
	}
	in.PermissionIDs = rbac.UniqueIDs(in.PermissionIDs)
	return in
}
