package users

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	UserRoles(ctx context.Context, userID int64) ([]rbac.Role, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
	RevokeRole(ctx context.Context, userID, roleID int64) error
	ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error
	MissingRoles(ctx context.Context, ids []int64) ([]int64, error)
}

// Service handles user accounts and their role assignments.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// FindByEmail looks a user up by login email.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, email)
}

// CreateUser hashes the password and stores a new account.
func (s *Service) CreateUser(ctx context.Context, in CreateInput) (User, error) {
	in = in.normalize()
	if err := rbac.Validate(in); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, User{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: string(hash),
		Status:       in.Status,
	})
}

// ResolvePrincipal loads the user and the roles assigned right now.
func (s *Service) ResolvePrincipal(ctx context.Context, id int64) (*rbac.Principal, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	roles, err := s.repo.UserRoles(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("users: load roles for %d: %w", id, err)
	}
	return &rbac.Principal{
		ID:     user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Status: user.Status,
		Roles:  roles,
	}, nil
}

// UserRoles returns the roles held by an existing user.
func (s *Service) UserRoles(ctx context.Context, userID int64) ([]rbac.Role, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.UserRoles(ctx, userID)
}

// AssignRole grants a role to a user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	if err := rbac.Validate(AssignInput{RoleID: roleID}); err != nil {
		return err
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	if err := s.checkRoles(ctx, []int64{roleID}); err != nil {
		return err
	}
	return s.repo.AssignRole(ctx, userID, roleID)
}

// RevokeRole removes a role from a user. Revoking a role the user does not
// hold succeeds.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID int64) error {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.RevokeRole(ctx, userID, roleID)
}

// ReplaceRoles sets the user's roles to exactly roleIDs.
func (s *Service) ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) ([]rbac.Role, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	roleIDs = rbac.UniqueIDs(roleIDs)
	if err := s.checkRoles(ctx, roleIDs); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceRoles(ctx, userID, roleIDs); err != nil {
		return nil, err
	}
	return s.repo.UserRoles(ctx, userID)
}

func (s *Service) checkRoles(ctx context.Context, ids []int64) error {
	missing, err := s.repo.MissingRoles(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &rbac.ReferenceError{Field: "role_id", ID: missing[0]}
	}
	return nil
}

var _ rbac.PrincipalResolver = (*Service)(nil)
