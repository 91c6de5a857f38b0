package roles

import (
	"context"
	"errors"
	"strings"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	FindRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, role Role, permissionIDs []int64) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	DeleteRole(ctx context.Context, id int64) error
	CountAssignedUsers(ctx context.Context, id int64) (int, error)
	MissingPermissions(ctx context.Context, ids []int64) ([]int64, error)
}

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns a role with its permissions.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole creates a non-system role.
func (s *Service) CreateRole(ctx context.Context, in CreateInput) (Role, error) {
	return s.create(ctx, in, false)
}

func (s *Service) create(ctx context.Context, in CreateInput, system bool) (Role, error) {
	in = in.normalize()
	if err := rbac.Validate(in); err != nil {
		return Role{}, err
	}
	if _, err := s.repo.FindRoleByName(ctx, in.Name); err == nil {
		return Role{}, &rbac.ConflictError{Entity: "role", Field: "name", Value: in.Name}
	} else if !errors.Is(err, rbac.ErrNotFound) {
		return Role{}, err
	}
	if err := s.checkPermissions(ctx, in.PermissionIDs); err != nil {
		return Role{}, err
	}
	return s.repo.CreateRole(ctx, Role{
		Name:        in.Name,
		DisplayName: in.DisplayName,
		Description: in.Description,
		IsSystem:    system,
	}, in.PermissionIDs)
}

// UpdateRole edits display name and description of a non-system role.
func (s *Service) UpdateRole(ctx context.Context, id int64, in UpdateInput) (Role, error) {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Description = strings.TrimSpace(in.Description)
	if err := rbac.Validate(in); err != nil {
		return Role{}, err
	}
	role, err := s.mutable(ctx, id)
	if err != nil {
		return Role{}, err
	}
	role.DisplayName = in.DisplayName
	if role.DisplayName == "" {
		role.DisplayName = DefaultDisplayName(role.Name)
	}
	role.Description = in.Description
	return s.repo.UpdateRole(ctx, role)
}

// ReplacePermissions swaps the role's permission set for ids. Applying the
// same set twice leaves the role unchanged.
func (s *Service) ReplacePermissions(ctx context.Context, id int64, ids []int64) (Role, error) {
	if _, err := s.mutable(ctx, id); err != nil {
		return Role{}, err
	}
	ids = rbac.UniqueIDs(ids)
	if err := s.checkPermissions(ctx, ids); err != nil {
		return Role{}, err
	}
	if err := s.repo.ReplacePermissions(ctx, id, ids); err != nil {
		return Role{}, err
	}
	return s.repo.GetRole(ctx, id)
}

// DeleteRole removes a non-system role that no user holds.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	if _, err := s.mutable(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountAssignedUsers(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return &rbac.InUseError{Entity: "role", ID: id, By: "users", Count: count}
	}
	return s.repo.DeleteRole(ctx, id)
}

// EnsureSystemRole creates the named system role or resets the permission set
// of an existing one. Seeding is the only writer of system roles.
func (s *Service) EnsureSystemRole(ctx context.Context, name, description string, permissionIDs []int64) (Role, error) {
	existing, err := s.repo.FindRoleByName(ctx, name)
	switch {
	case errors.Is(err, rbac.ErrNotFound):
		return s.create(ctx, CreateInput{Name: name, Description: description, PermissionIDs: permissionIDs}, true)
	case err != nil:
		return Role{}, err
	}
	ids := rbac.UniqueIDs(permissionIDs)
	if err := s.checkPermissions(ctx, ids); err != nil {
		return Role{}, err
	}
	if err := s.repo.ReplacePermissions(ctx, existing.ID, ids); err != nil {
		return Role{}, err
	}
	return s.repo.GetRole(ctx, existing.ID)
}

func (s *Service) mutable(ctx context.Context, id int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if role.IsSystem {
		return Role{}, rbac.ErrSystemRole
	}
	return role, nil
}

func (s *Service) checkPermissions(ctx context.Context, ids []int64) error {
	missing, err := s.repo.MissingPermissions(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &rbac.ReferenceError{Field: "permission_ids", ID: missing[0]}
	}
	return nil
}
