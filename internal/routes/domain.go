// Package routes manages navigable admin routes, projects them into a menu
// for a principal and answers route-access queries.
package routes

import (
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// Route is a navigable admin page. An empty permission set means any
// authenticated principal may see it; otherwise holding any one suffices.
type Route struct {
	ID          int64             `json:"id"`
	Path        string            `json:"path"`
	Name        string            `json:"name"`
	Title       string            `json:"title"`
	Icon        *string           `json:"icon,omitempty"`
	ParentID    *int64            `json:"parent_id,omitempty"`
	Order       int               `json:"order"`
	Hidden      bool              `json:"hidden"`
	Permissions []rbac.Permission `json:"permissions"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// IsPublic reports whether the route carries no permission requirement.
func (r Route) IsPublic() bool {
	return len(r.Permissions) == 0
}

// Requirements returns the any-of requirements guarding the route.
func (r Route) Requirements() []rbac.Requirement {
	return rbac.RequirementsOf(r.Permissions)
}

// MenuNode is a visible menu entry. Only top-level nodes carry children.
type MenuNode struct {
	ID       int64      `json:"id"`
	Path     string     `json:"path"`
	Name     string     `json:"name"`
	Title    string     `json:"title"`
	Icon     *string    `json:"icon,omitempty"`
	Order    int        `json:"order"`
	Children []MenuNode `json:"children,omitempty"`
}

// Input carries create and update payloads.
type Input struct {
	Path          string  `json:"path" validate:"required,startswith=/,max=255"`
	Name          string  `json:"name" validate:"required,max=128"`
	Title         string  `json:"title" validate:"required,max=255"`
	Icon          *string `json:"icon" validate:"omitempty,max=64"`
	ParentID      *int64  `json:"parent_id" validate:"omitempty,gt=0"`
	Order         int     `json:"order"`
	Hidden        bool    `json:"hidden"`
	PermissionIDs []int64 `json:"permission_ids"`
}

func (in Input) normalize() Input {
	in.Path = strings.TrimSpace(in.Path)
	if len(in.Path) > 1 {
		in.Path = strings.TrimRight(in.Path, "/")
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Title = strings.TrimSpace(in.Title)
	if in.Icon != nil {
		icon := strings.TrimSpace(*in.Icon)
		in.Icon = &icon
		if icon == "" {
			in.Icon = nil
		}
	}
	in.PermissionIDs = rbac.UniqueIDs(in.PermissionIDs)
	return in
}

// AccessResult answers a route-access query.
type AccessResult struct {
	Path    string `json:"path"`
	Allowed bool   `json:"allowed"`
}
