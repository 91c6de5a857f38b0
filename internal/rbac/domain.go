package rbac

import (
	"regexp"
	"strings"
	"time"
)

// Action is an operation kind on a resource.
type Action string

// Supported actions. ActionManage grants every action on its resource.
const (
	ActionCreate Action = "CREATE"
	ActionRead   Action = "READ"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionManage Action = "MANAGE"
	ActionImport Action = "IMPORT"
	ActionExport Action = "EXPORT"
)

var allActions = []Action{
	ActionCreate,
	ActionRead,
	ActionUpdate,
	ActionDelete,
	ActionManage,
	ActionImport,
	ActionExport,
}

// Actions lists every supported action.
func Actions() []Action {
	out := make([]Action, len(allActions))
	copy(out, allActions)
	return out
}

// Valid reports whether a is one of the supported actions.
func (a Action) Valid() bool {
	for _, candidate := range allActions {
		if a == candidate {
			return true
		}
	}
	return false
}

// ParseAction normalises raw input into an Action.
func ParseAction(raw string) (Action, error) {
	action := Action(strings.ToUpper(strings.TrimSpace(raw)))
	if !action.Valid() {
		return "", &ValidationError{Field: "action", Reason: "unknown action " + raw}
	}
	return action, nil
}

var resourcePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidResource reports whether resource matches the catalog naming rule.
func ValidResource(resource string) bool {
	return resourcePattern.MatchString(resource)
}

// Permission is a grantable (resource, action) pair.
type Permission struct {
	ID          int64     `json:"id"`
	Resource    string    `json:"resource"`
	Action      Action    `json:"action"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key returns the canonical "resource:ACTION" form.
func (p Permission) Key() string {
	return GrantKey(p.Resource, p.Action)
}

// Role is a named bundle of permissions.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	Description string       `json:"description"`
	IsSystem    bool         `json:"is_system"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Status describes whether an account may authenticate.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

// Principal describes the authenticated actor together with its current roles.
type Principal struct {
	ID     int64  `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Roles  []Role `json:"roles"`
}

// IsActive reports whether the principal may authenticate.
func (p *Principal) IsActive() bool {
	return p != nil && p.Status == StatusActive
}
