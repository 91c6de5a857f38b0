package routes

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

type mockRepo struct {
	routes  map[int64]Route
	catalog map[int64]rbac.Permission
	nextID  int64
	listErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		routes: map[int64]Route{},
		catalog: map[int64]rbac.Permission{
			1: {ID: 1, Resource: "role", Action: rbac.ActionRead},
			2: {ID: 2, Resource: "user", Action: rbac.ActionRead},
			3: {ID: 3, Resource: "setting", Action: rbac.ActionRead},
		},
		nextID: 1,
	}
}

func (m *mockRepo) ListRoutes(context.Context) ([]Route, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Route, 0, len(m.routes))
	for _, r := range m.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRepo) GetRoute(_ context.Context, id int64) (Route, error) {
	r, ok := m.routes[id]
	if !ok {
		return Route{}, rbac.ErrNotFound
	}
	return r, nil
}

func (m *mockRepo) FindByPath(_ context.Context, path string) (Route, error) {
	for _, r := range m.routes {
		if r.Path == path {
			return r, nil
		}
	}
	return Route{}, rbac.ErrNotFound
}

func (m *mockRepo) FindByName(_ context.Context, name string) (Route, error) {
	for _, r := range m.routes {
		if r.Name == name {
			return r, nil
		}
	}
	return Route{}, rbac.ErrNotFound
}

func (m *mockRepo) attach(route Route, ids []int64) Route {
	route.Permissions = []rbac.Permission{}
	for _, id := range ids {
		route.Permissions = append(route.Permissions, m.catalog[id])
	}
	return route
}

func (m *mockRepo) CreateRoute(_ context.Context, route Route, ids []int64) (Route, error) {
	route.ID = m.nextID
	m.nextID++
	route = m.attach(route, ids)
	m.routes[route.ID] = route
	return route, nil
}

func (m *mockRepo) UpdateRoute(_ context.Context, route Route, ids []int64) (Route, error) {
	route = m.attach(route, ids)
	m.routes[route.ID] = route
	return route, nil
}

func (m *mockRepo) DeleteRoute(_ context.Context, id int64) error {
	delete(m.routes, id)
	return nil
}

func (m *mockRepo) CountChildren(_ context.Context, id int64) (int, error) {
	count := 0
	for _, r := range m.routes {
		if r.ParentID != nil && *r.ParentID == id {
			count++
		}
	}
	return count, nil
}

func (m *mockRepo) MissingPermissions(_ context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	for _, id := range ids {
		if _, ok := m.catalog[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type principals struct {
	byID map[int64]*rbac.Principal
	err  error
}

func (p principals) ResolvePrincipal(_ context.Context, id int64) (*rbac.Principal, error) {
	if p.err != nil {
		return nil, p.err
	}
	principal, ok := p.byID[id]
	if !ok {
		return nil, rbac.ErrNotFound
	}
	return principal, nil
}

func role(perms ...rbac.Permission) rbac.Role {
	return rbac.Role{Permissions: perms}
}

func seeded(t *testing.T) (*Service, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	people := principals{byID: map[int64]*rbac.Principal{
		1: {ID: 1, Status: rbac.StatusActive},
		2: {ID: 2, Status: rbac.StatusActive, Roles: []rbac.Role{role(p("role", rbac.ActionRead))}},
		3: {ID: 3, Status: rbac.StatusActive, Roles: []rbac.Role{role(p("user", rbac.ActionRead))}},
		4: {ID: 4, Status: rbac.StatusInactive, Roles: []rbac.Role{role(p("role", rbac.ActionManage))}},
	}}
	svc := NewService(repo, people)
	ctx := context.Background()
	_, err := svc.CreateRoute(ctx, Input{Path: "/dashboard", Name: "dashboard", Title: "Dashboard"})
	require.NoError(t, err)
	_, err = svc.CreateRoute(ctx, Input{Path: "/roles", Name: "roles", Title: "Roles", Order: 20, PermissionIDs: []int64{1}})
	require.NoError(t, err)
	_, err = svc.CreateRoute(ctx, Input{Path: "/users", Name: "users", Title: "Users", Order: 10, PermissionIDs: []int64{2}})
	require.NoError(t, err)
	return svc, repo
}

func TestCheckAccessRolesScenario(t *testing.T) {
	svc, _ := seeded(t)
	ctx := context.Background()

	allowed, err := svc.CheckAccess(ctx, 3, "/roles")
	require.NoError(t, err)
	assert.False(t, allowed)

	menu, err := svc.GetMenuForPrincipal(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"/dashboard", "/users"}, paths(menu))

	allowed, err = svc.CheckAccess(ctx, 2, "/roles")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckAccessFailsClosed(t *testing.T) {
	svc, _ := seeded(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		principal int64
		path      string
		want      bool
	}{
		{"public route", 1, "/dashboard", true},
		{"unknown path", 2, "/nowhere", false},
		{"unknown principal", 99, "/dashboard", false},
		{"inactive principal", 4, "/roles", false},
		{"inactive principal on public route", 4, "/dashboard", false},
		{"no roles", 1, "/users", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			allowed, err := svc.CheckAccess(ctx, tc.principal, tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, allowed)
		})
	}
}

func TestCheckAccessStoreFailureDenies(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, principals{err: errors.New("db down")})
	_, err := svc.CreateRoute(context.Background(), Input{Path: "/dashboard", Name: "dashboard", Title: "Dashboard"})
	require.NoError(t, err)

	allowed, err := svc.CheckAccess(context.Background(), 1, "/dashboard")

	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestGetMenuForPrincipal(t *testing.T) {
	svc, repo := seeded(t)
	ctx := context.Background()

	menu, err := svc.GetMenuForPrincipal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"/dashboard"}, paths(menu))

	_, err = svc.GetMenuForPrincipal(ctx, 4)
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)

	_, err = svc.GetMenuForPrincipal(ctx, 99)
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)

	repo.listErr = errors.New("db down")
	_, err = svc.GetMenuForPrincipal(ctx, 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, rbac.ErrUnauthenticated)
}

func TestCreateRouteConflictsAndReferences(t *testing.T) {
	svc, _ := seeded(t)
	ctx := context.Background()

	_, err := svc.CreateRoute(ctx, Input{Path: "/roles/", Name: "roles_again", Title: "Roles"})
	var conflict *rbac.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "path", conflict.Field)

	_, err = svc.CreateRoute(ctx, Input{Path: "/other", Name: "roles", Title: "Roles"})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "name", conflict.Field)

	_, err = svc.CreateRoute(ctx, Input{Path: "/child", Name: "child", Title: "Child", ParentID: ptr(int64(404))})
	var ref *rbac.ReferenceError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, "parent_id", ref.Field)

	_, err = svc.CreateRoute(ctx, Input{Path: "/child", Name: "child", Title: "Child", PermissionIDs: []int64{42}})
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, "permission_ids", ref.Field)

	_, err = svc.CreateRoute(ctx, Input{Path: "relative", Name: "relative", Title: "Relative"})
	var verr *rbac.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "path", verr.Field)
}

func TestUpdateRouteParentRules(t *testing.T) {
	svc, _ := seeded(t)
	ctx := context.Background()
	settings, err := svc.CreateRoute(ctx, Input{Path: "/settings", Name: "settings", Title: "Settings"})
	require.NoError(t, err)
	general, err := svc.CreateRoute(ctx, Input{Path: "/settings/general", Name: "general", Title: "General", ParentID: &settings.ID})
	require.NoError(t, err)

	_, err = svc.UpdateRoute(ctx, settings.ID, Input{Path: "/settings", Name: "settings", Title: "Settings", ParentID: &settings.ID})
	assert.ErrorIs(t, err, rbac.ErrValidation)

	_, err = svc.UpdateRoute(ctx, settings.ID, Input{Path: "/settings", Name: "settings", Title: "Settings", ParentID: &general.ID})
	assert.ErrorIs(t, err, rbac.ErrValidation)

	updated, err := svc.UpdateRoute(ctx, general.ID, Input{Path: "/settings/general", Name: "general", Title: "General settings", ParentID: &settings.ID, PermissionIDs: []int64{3}})
	require.NoError(t, err)
	assert.Equal(t, "General settings", updated.Title)
	assert.Len(t, updated.Permissions, 1)
}

func TestDeleteRouteWithChildrenRejected(t *testing.T) {
	svc, _ := seeded(t)
	ctx := context.Background()
	settings, err := svc.CreateRoute(ctx, Input{Path: "/settings", Name: "settings", Title: "Settings"})
	require.NoError(t, err)
	child, err := svc.CreateRoute(ctx, Input{Path: "/settings/general", Name: "general", Title: "General", ParentID: &settings.ID})
	require.NoError(t, err)

	err = svc.DeleteRoute(ctx, settings.ID)
	assert.ErrorIs(t, err, rbac.ErrInUse)

	require.NoError(t, svc.DeleteRoute(ctx, child.ID))
	require.NoError(t, svc.DeleteRoute(ctx, settings.ID))
	assert.ErrorIs(t, svc.DeleteRoute(ctx, settings.ID), rbac.ErrNotFound)
}
