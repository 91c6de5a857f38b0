package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
	"github.com/odyssey-erp/odyssey-admin/internal/users"
)

// UserStore looks accounts up by login email.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
}

// Revoker records logged-out token ids.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// Service wraps authentication business rules.
type Service struct {
	users   UserStore
	tokens  *TokenManager
	revoker Revoker
}

// NewService constructs a new Service.
func NewService(users UserStore, tokens *TokenManager, revoker Revoker) *Service {
	return &Service{users: users, tokens: tokens, revoker: revoker}
}

// Login validates email/password credentials and issues a token. Unknown
// emails, wrong passwords and non-active accounts are indistinguishable.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	in = in.normalize()
	if err := rbac.Validate(in); err != nil {
		return Session{}, err
	}
	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			return Session{}, shared.ErrInvalidCredentials
		}
		return Session{}, err
	}
	if user.Status != rbac.StatusActive {
		return Session{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return Session{}, shared.ErrInvalidCredentials
	}
	token, claims, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// Logout revokes the token so later requests carrying it are rejected.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	return s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
