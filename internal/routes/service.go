package routes

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// RepositoryPort defines data access methods for routes.
type RepositoryPort interface {
	ListRoutes(ctx context.Context) ([]Route, error)
	GetRoute(ctx context.Context, id int64) (Route, error)
	FindByPath(ctx context.Context, path string) (Route, error)
	FindByName(ctx context.Context, name string) (Route, error)
	CreateRoute(ctx context.Context, route Route, permissionIDs []int64) (Route, error)
	UpdateRoute(ctx context.Context, route Route, permissionIDs []int64) (Route, error)
	DeleteRoute(ctx context.Context, id int64) error
	CountChildren(ctx context.Context, id int64) (int, error)
	MissingPermissions(ctx context.Context, ids []int64) ([]int64, error)
}

// Service manages routes and answers menu and access queries.
type Service struct {
	repo       RepositoryPort
	principals rbac.PrincipalResolver
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, principals rbac.PrincipalResolver) *Service {
	return &Service{repo: repo, principals: principals}
}

// ListRoutes returns every route including hidden ones.
func (s *Service) ListRoutes(ctx context.Context) ([]Route, error) {
	return s.repo.ListRoutes(ctx)
}

// GetRoute returns a single route.
func (s *Service) GetRoute(ctx context.Context, id int64) (Route, error) {
	return s.repo.GetRoute(ctx, id)
}

// CreateRoute validates and stores a new route.
func (s *Service) CreateRoute(ctx context.Context, in Input) (Route, error) {
	in = in.normalize()
	if err := s.check(ctx, 0, in); err != nil {
		return Route{}, err
	}
	return s.repo.CreateRoute(ctx, fromInput(in), in.PermissionIDs)
}

// UpdateRoute replaces every field of a route, including its permission set.
func (s *Service) UpdateRoute(ctx context.Context, id int64, in Input) (Route, error) {
	in = in.normalize()
	current, err := s.repo.GetRoute(ctx, id)
	if err != nil {
		return Route{}, err
	}
	if err := s.check(ctx, id, in); err != nil {
		return Route{}, err
	}
	route := fromInput(in)
	route.ID = current.ID
	route.CreatedAt = current.CreatedAt
	return s.repo.UpdateRoute(ctx, route, in.PermissionIDs)
}

// DeleteRoute removes a route that has no children.
func (s *Service) DeleteRoute(ctx context.Context, id int64) error {
	if _, err := s.repo.GetRoute(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return &rbac.InUseError{Entity: "route", ID: id, By: "child routes", Count: count}
	}
	return s.repo.DeleteRoute(ctx, id)
}

// GetMenuForPrincipal projects the menu for the principal's current ability.
// Unknown or inactive principals get ErrUnauthenticated.
func (s *Service) GetMenuForPrincipal(ctx context.Context, principalID int64) ([]MenuNode, error) {
	var (
		all       []Route
		principal *rbac.Principal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = s.repo.ListRoutes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		principal, err = s.principals.ResolvePrincipal(gctx, principalID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			return nil, rbac.ErrUnauthenticated
		}
		return nil, err
	}
	if !principal.IsActive() {
		return nil, rbac.ErrUnauthenticated
	}
	return ProjectMenu(all, rbac.DeriveAbility(principal.Roles)), nil
}

// CheckAccess reports whether the principal may open path. Unknown paths,
// unknown principals and inactive principals all yield false, so callers
// cannot tell a missing route from a forbidden one. Store failures return
// false together with the error.
func (s *Service) CheckAccess(ctx context.Context, principalID int64, path string) (bool, error) {
	route, err := s.repo.FindByPath(ctx, path)
	if errors.Is(err, rbac.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	principal, err := s.principals.ResolvePrincipal(ctx, principalID)
	if errors.Is(err, rbac.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !principal.IsActive() {
		return false, nil
	}
	if route.IsPublic() {
		return true, nil
	}
	return rbac.DeriveAbility(principal.Roles).CanPerformAny(route.Requirements()...), nil
}

func (s *Service) check(ctx context.Context, selfID int64, in Input) error {
	if err := rbac.Validate(in); err != nil {
		return err
	}
	if err := s.checkUnique(ctx, selfID, in); err != nil {
		return err
	}
	if in.ParentID != nil {
		if err := s.checkParent(ctx, selfID, *in.ParentID); err != nil {
			return err
		}
	}
	missing, err := s.repo.MissingPermissions(ctx, in.PermissionIDs)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &rbac.ReferenceError{Field: "permission_ids", ID: missing[0]}
	}
	return nil
}

func (s *Service) checkUnique(ctx context.Context, selfID int64, in Input) error {
	byPath, err := s.repo.FindByPath(ctx, in.Path)
	switch {
	case err == nil && byPath.ID != selfID:
		return &rbac.ConflictError{Entity: "route", Field: "path", Value: in.Path}
	case err != nil && !errors.Is(err, rbac.ErrNotFound):
		return err
	}
	byName, err := s.repo.FindByName(ctx, in.Name)
	switch {
	case err == nil && byName.ID != selfID:
		return &rbac.ConflictError{Entity: "route", Field: "name", Value: in.Name}
	case err != nil && !errors.Is(err, rbac.ErrNotFound):
		return err
	}
	return nil
}

// checkParent rejects missing parents and parent chains that lead back to the
// route being edited.
func (s *Service) checkParent(ctx context.Context, selfID, parentID int64) error {
	if parentID == selfID {
		return &rbac.ValidationError{Field: "parent_id", Reason: "route cannot be its own parent"}
	}
	seen := map[int64]struct{}{}
	next := &parentID
	for next != nil {
		if selfID != 0 && *next == selfID {
			return &rbac.ValidationError{Field: "parent_id", Reason: "parent chain forms a cycle"}
		}
		if _, ok := seen[*next]; ok {
			return fmt.Errorf("routes: cycle detected at route %d", *next)
		}
		seen[*next] = struct{}{}
		parent, err := s.repo.GetRoute(ctx, *next)
		if errors.Is(err, rbac.ErrNotFound) {
			return &rbac.ReferenceError{Field: "parent_id", ID: *next}
		}
		if err != nil {
			return err
		}
		next = parent.ParentID
	}
	return nil
}

func fromInput(in Input) Route {
	return Route{
		Path:     in.Path,
		Name:     in.Name,
		Title:    in.Title,
		Icon:     in.Icon,
		ParentID: in.ParentID,
		Order:    in.Order,
		Hidden:   in.Hidden,
	}
}
