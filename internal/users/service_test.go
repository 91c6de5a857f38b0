package users

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

type mockRepo struct {
	users   map[int64]User
	roles   map[int64]rbac.Role
	holding map[int64]map[int64]struct{}
	nextID  int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		users: map[int64]User{
			1: {ID: 1, Email: "a@example.com", Name: "Ana", Status: rbac.StatusActive},
			2: {ID: 2, Email: "b@example.com", Name: "Budi", Status: rbac.StatusSuspended},
		},
		roles: map[int64]rbac.Role{
			10: {ID: 10, Name: "admin_a", Permissions: []rbac.Permission{{Resource: "route", Action: rbac.ActionManage}}},
			11: {ID: 11, Name: "admin_b", Permissions: []rbac.Permission{{Resource: "user", Action: rbac.ActionRead}}},
		},
		holding: map[int64]map[int64]struct{}{},
		nextID:  3,
	}
}

func (m *mockRepo) ListUsers(context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *mockRepo) GetUser(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, rbac.ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) FindByEmail(_ context.Context, email string) (User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, rbac.ErrNotFound
}

func (m *mockRepo) CreateUser(_ context.Context, user User) (User, error) {
	for _, u := range m.users {
		if u.Email == user.Email {
			return User{}, &rbac.ConflictError{Entity: "user", Field: "email", Value: user.Email}
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return user, nil
}

func (m *mockRepo) UserRoles(_ context.Context, userID int64) ([]rbac.Role, error) {
	out := make([]rbac.Role, 0)
	for id := range m.holding[userID] {
		out = append(out, m.roles[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepo) AssignRole(_ context.Context, userID, roleID int64) error {
	if m.holding[userID] == nil {
		m.holding[userID] = map[int64]struct{}{}
	}
	m.holding[userID][roleID] = struct{}{}
	return nil
}

func (m *mockRepo) RevokeRole(_ context.Context, userID, roleID int64) error {
	delete(m.holding[userID], roleID)
	return nil
}

func (m *mockRepo) ReplaceRoles(_ context.Context, userID int64, roleIDs []int64) error {
	m.holding[userID] = map[int64]struct{}{}
	for _, id := range roleIDs {
		m.holding[userID][id] = struct{}{}
	}
	return nil
}

func (m *mockRepo) MissingRoles(_ context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	for _, id := range ids {
		if _, ok := m.roles[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func TestResolvePrincipalReflectsCurrentAssignments(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	p, err := svc.ResolvePrincipal(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, p.Roles)
	assert.Zero(t, rbac.DeriveAbility(p.Roles).Len())

	require.NoError(t, svc.AssignRole(ctx, 1, 10))
	p, err = svc.ResolvePrincipal(ctx, 1)
	require.NoError(t, err)
	ability := rbac.DeriveAbility(p.Roles)
	assert.True(t, ability.CanPerform(rbac.ActionDelete, "route"))
	assert.False(t, ability.CanPerform(rbac.ActionRead, "user"))

	require.NoError(t, svc.RevokeRole(ctx, 1, 10))
	p, err = svc.ResolvePrincipal(ctx, 1)
	require.NoError(t, err)
	assert.False(t, rbac.DeriveAbility(p.Roles).CanPerform(rbac.ActionDelete, "route"))
}

func TestResolvePrincipalKeepsStatus(t *testing.T) {
	svc := NewService(newMockRepo())

	p, err := svc.ResolvePrincipal(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, p.IsActive())

	_, err = svc.ResolvePrincipal(context.Background(), 404)
	assert.ErrorIs(t, err, rbac.ErrNotFound)
}

func TestAssignRoleChecksReferences(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	err := svc.AssignRole(ctx, 1, 99)
	var ref *rbac.ReferenceError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, "role_id", ref.Field)

	assert.ErrorIs(t, svc.AssignRole(ctx, 404, 10), rbac.ErrNotFound)
	assert.ErrorIs(t, svc.AssignRole(ctx, 1, 0), rbac.ErrValidation)
}

func TestAssignIsIdempotentAndRevokeOfMissingSucceeds(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.AssignRole(ctx, 1, 11))
	require.NoError(t, svc.AssignRole(ctx, 1, 11))
	roles, err := svc.UserRoles(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, roles, 1)

	assert.NoError(t, svc.RevokeRole(ctx, 1, 10))
}

func TestReplaceRoles(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()
	require.NoError(t, svc.AssignRole(ctx, 1, 10))

	roles, err := svc.ReplaceRoles(ctx, 1, []int64{11, 11})
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "admin_b", roles[0].Name)

	_, err = svc.ReplaceRoles(ctx, 1, []int64{11, 77})
	assert.ErrorIs(t, err, rbac.ErrInvalidReference)
	roles, _ = svc.UserRoles(ctx, 1)
	assert.Len(t, roles, 1)

	roles, err = svc.ReplaceRoles(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestCreateUserHashesPassword(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateInput{Email: " New@Example.com ", Name: "New", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, rbac.StatusActive, user.Status)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")))

	_, err = svc.CreateUser(ctx, CreateInput{Email: "new@example.com", Name: "Dup", Password: "another-pass"})
	assert.ErrorIs(t, err, rbac.ErrConflict)

	_, err = svc.CreateUser(ctx, CreateInput{Email: "not-an-email", Name: "X", Password: "s3cret-pass"})
	var verr *rbac.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)
}
