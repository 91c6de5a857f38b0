package rbac

import (
	"context"
	"errors"
	"strings"
)

// Usage counts the references that block deleting a permission.
type Usage struct {
	Roles  int
	Routes int
}

// Total returns the number of references.
func (u Usage) Total() int { return u.Roles + u.Routes }

// Repository abstracts permission catalog persistence.
type Repository interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	FindPermission(ctx context.Context, resource string, action Action) (Permission, error)
	CreatePermission(ctx context.Context, p Permission) (Permission, error)
	UpdatePermission(ctx context.Context, p Permission) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error
	PermissionUsage(ctx context.Context, id int64) (Usage, error)
}

// PermissionInput carries create and update payloads.
type PermissionInput struct {
	Resource    string `json:"resource" validate:"required,max=64,resource"`
	Action      Action `json:"action" validate:"required,action"`
	Description string `json:"description" validate:"max=255"`
}

func (in PermissionInput) normalize() PermissionInput {
	in.Resource = strings.TrimSpace(in.Resource)
	in.Action = Action(strings.ToUpper(strings.TrimSpace(string(in.Action))))
	in.Description = strings.TrimSpace(in.Description)
	return in
}

// Service orchestrates permission catalog operations.
type Service struct {
	repo Repository
}

// NewService constructs a Service backed by the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListPermissions returns all permissions ordered by resource then action.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// GetPermission fetches a permission by ID.
func (s *Service) GetPermission(ctx context.Context, id int64) (Permission, error) {
	return s.repo.GetPermission(ctx, id)
}

// CreatePermission adds a new (resource, action) pair to the catalog.
func (s *Service) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	in = in.normalize()
	if err := Validate(in); err != nil {
		return Permission{}, err
	}
	if err := s.ensureUnique(ctx, in.Resource, in.Action, 0); err != nil {
		return Permission{}, err
	}
	return s.repo.CreatePermission(ctx, Permission{
		Resource:    in.Resource,
		Action:      in.Action,
		Description: in.Description,
	})
}

// UpdatePermission edits a permission, re-validating (resource, action)
// uniqueness. The pair cannot change while a role or route references it;
// description edits are always allowed.
func (s *Service) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error) {
	in = in.normalize()
	if err := Validate(in); err != nil {
		return Permission{}, err
	}
	current, err := s.repo.GetPermission(ctx, id)
	if err != nil {
		return Permission{}, err
	}
	if current.Resource != in.Resource || current.Action != in.Action {
		if err := s.ensureUnreferenced(ctx, id); err != nil {
			return Permission{}, err
		}
		if err := s.ensureUnique(ctx, in.Resource, in.Action, id); err != nil {
			return Permission{}, err
		}
	}
	current.Resource = in.Resource
	current.Action = in.Action
	current.Description = in.Description
	return s.repo.UpdatePermission(ctx, current)
}

// DeletePermission removes a permission that no role or route references.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	if _, err := s.repo.GetPermission(ctx, id); err != nil {
		return err
	}
	if err := s.ensureUnreferenced(ctx, id); err != nil {
		return err
	}
	return s.repo.DeletePermission(ctx, id)
}

// ensureUnreferenced fails with InUseError while any role or route holds the
// permission. A referenced permission keeps its (resource, action) identity.
func (s *Service) ensureUnreferenced(ctx context.Context, id int64) error {
	usage, err := s.repo.PermissionUsage(ctx, id)
	if err != nil {
		return err
	}
	if usage.Roles > 0 {
		return &InUseError{Entity: "permission", ID: id, By: "roles", Count: usage.Roles}
	}
	if usage.Routes > 0 {
		return &InUseError{Entity: "permission", ID: id, By: "routes", Count: usage.Routes}
	}
	return nil
}

// EnsurePermission returns the existing permission for (resource, action) or
// creates it.
func (s *Service) EnsurePermission(ctx context.Context, resource string, action Action, description string) (Permission, error) {
	existing, err := s.repo.FindPermission(ctx, resource, action)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Permission{}, err
	}
	return s.CreatePermission(ctx, PermissionInput{Resource: resource, Action: action, Description: description})
}

func (s *Service) ensureUnique(ctx context.Context, resource string, action Action, selfID int64) error {
	existing, err := s.repo.FindPermission(ctx, resource, action)
	switch {
	case err == nil && existing.ID != selfID:
		return &ConflictError{Entity: "permission", Field: "resource_action", Value: GrantKey(resource, action)}
	case err == nil, errors.Is(err, ErrNotFound):
		return nil
	default:
		return err
	}
}
