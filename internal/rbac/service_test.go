package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	perms  map[int64]Permission
	usage  map[int64]Usage
	nextID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{perms: map[int64]Permission{}, usage: map[int64]Usage{}, nextID: 1}
}

func (m *mockRepository) ListPermissions(context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(m.perms))
	for id := int64(1); id < m.nextID; id++ {
		if p, ok := m.perms[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepository) GetPermission(_ context.Context, id int64) (Permission, error) {
	p, ok := m.perms[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (m *mockRepository) FindPermission(_ context.Context, resource string, action Action) (Permission, error) {
	for _, p := range m.perms {
		if p.Resource == resource && p.Action == action {
			return p, nil
		}
	}
	return Permission{}, ErrNotFound
}

func (m *mockRepository) CreatePermission(_ context.Context, p Permission) (Permission, error) {
	p.ID = m.nextID
	m.nextID++
	m.perms[p.ID] = p
	return p, nil
}

func (m *mockRepository) UpdatePermission(_ context.Context, p Permission) (Permission, error) {
	if _, ok := m.perms[p.ID]; !ok {
		return Permission{}, ErrNotFound
	}
	m.perms[p.ID] = p
	return p, nil
}

func (m *mockRepository) DeletePermission(_ context.Context, id int64) error {
	if _, ok := m.perms[id]; !ok {
		return ErrNotFound
	}
	delete(m.perms, id)
	return nil
}

func (m *mockRepository) PermissionUsage(_ context.Context, id int64) (Usage, error) {
	return m.usage[id], nil
}

func TestCreatePermissionNormalisesAndValidates(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	created, err := svc.CreatePermission(ctx, PermissionInput{Resource: " user ", Action: "read"})
	require.NoError(t, err)
	assert.Equal(t, "user", created.Resource)
	assert.Equal(t, ActionRead, created.Action)

	_, err = svc.CreatePermission(ctx, PermissionInput{Resource: "User-Role", Action: ActionRead})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "resource", verr.Field)

	_, err = svc.CreatePermission(ctx, PermissionInput{Resource: "user", Action: "PUBLISH"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "action", verr.Field)
}

func TestCreatePermissionRejectsDuplicatePair(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()
	_, err := svc.CreatePermission(ctx, PermissionInput{Resource: "user", Action: ActionRead})
	require.NoError(t, err)

	_, err = svc.CreatePermission(ctx, PermissionInput{Resource: "user", Action: ActionRead})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "resource_action", conflict.Field)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdatePermissionRevalidatesUniqueness(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()
	read, _ := svc.CreatePermission(ctx, PermissionInput{Resource: "user", Action: ActionRead})
	update, _ := svc.CreatePermission(ctx, PermissionInput{Resource: "user", Action: ActionUpdate})

	_, err := svc.UpdatePermission(ctx, update.ID, PermissionInput{Resource: "user", Action: ActionRead})
	assert.ErrorIs(t, err, ErrConflict)

	same, err := svc.UpdatePermission(ctx, read.ID, PermissionInput{Resource: "user", Action: ActionRead, Description: "View users"})
	require.NoError(t, err)
	assert.Equal(t, "View users", same.Description)

	_, err = svc.UpdatePermission(ctx, 404, PermissionInput{Resource: "user", Action: ActionDelete})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePermissionKeepsReferencedIdentity(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()
	p, err := svc.CreatePermission(ctx, PermissionInput{Resource: "user", Action: ActionRead})
	require.NoError(t, err)
	repo.usage[p.ID] = Usage{Roles: 1}

	_, err = svc.UpdatePermission(ctx, p.ID, PermissionInput{Resource: "user", Action: ActionDelete})
	var inUse *InUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, "roles", inUse.By)
	assert.ErrorIs(t, err, ErrInUse)

	repo.usage[p.ID] = Usage{Routes: 1}
	_, err = svc.UpdatePermission(ctx, p.ID, PermissionInput{Resource: "account", Action: ActionRead})
	assert.ErrorIs(t, err, ErrInUse)

	unchanged, err := svc.GetPermission(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "user:READ", unchanged.Key())

	described, err := svc.UpdatePermission(ctx, p.ID, PermissionInput{Resource: "user", Action: ActionRead, Description: "View users"})
	require.NoError(t, err)
	assert.Equal(t, "View users", described.Description)

	repo.usage[p.ID] = Usage{}
	renamed, err := svc.UpdatePermission(ctx, p.ID, PermissionInput{Resource: "user", Action: ActionDelete})
	require.NoError(t, err)
	assert.Equal(t, "user:DELETE", renamed.Key())
}

func TestReferenceErrorIsValidationError(t *testing.T) {
	err := error(&ReferenceError{Field: "permission_ids", ID: 42})
	assert.ErrorIs(t, err, ErrInvalidReference)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeletePermissionBlockedWhileReferenced(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()
	p, _ := svc.CreatePermission(ctx, PermissionInput{Resource: "role", Action: ActionRead})

	repo.usage[p.ID] = Usage{Roles: 1}
	err := svc.DeletePermission(ctx, p.ID)
	var inUse *InUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, "roles", inUse.By)

	repo.usage[p.ID] = Usage{Routes: 2}
	err = svc.DeletePermission(ctx, p.ID)
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, "routes", inUse.By)
	assert.ErrorIs(t, err, ErrInUse)

	repo.usage[p.ID] = Usage{}
	require.NoError(t, svc.DeletePermission(ctx, p.ID))
	_, err = svc.GetPermission(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMissingPermissionIsNotFound(t *testing.T) {
	svc := NewService(newMockRepository())
	err := svc.DeletePermission(context.Background(), 7)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEnsurePermissionIsIdempotent(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.EnsurePermission(ctx, "news", ActionExport, "Export news")
	require.NoError(t, err)
	second, err := svc.EnsurePermission(ctx, "news", ActionExport, "Export news")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.perms, 1)
}
