package routes

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const routeColumns = `id, path, name, title, icon, parent_id, sort_order, hidden, created_at, updated_at`

func selectRoutes(ctx context.Context, q db.DBTX, tail string, args ...any) ([]Route, error) {
	rows, err := q.Query(ctx, `SELECT `+routeColumns+` FROM routes `+tail, args...)
	if err != nil {
		return nil, err
	}
	routes := make([]Route, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var route Route
		if err := rows.Scan(&route.ID, &route.Path, &route.Name, &route.Title, &route.Icon, &route.ParentID,
			&route.Order, &route.Hidden, &route.CreatedAt, &route.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		route.Permissions = []rbac.Permission{}
		index[route.ID] = len(routes)
		routes = append(routes, route)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return routes, nil
	}

	ids := make([]int64, len(routes))
	for i := range routes {
		ids[i] = routes[i].ID
	}
	permRows, err := q.Query(ctx, `
		SELECT rp.route_id, `+rbac.PermissionColumns("p")+`
		FROM route_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.route_id = ANY($1)
		ORDER BY p.resource, p.action`, ids)
	if err != nil {
		return nil, err
	}
	defer permRows.Close()
	for permRows.Next() {
		var routeID int64
		var p rbac.Permission
		var action string
		if err := permRows.Scan(&routeID, &p.ID, &p.Resource, &action, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Action = rbac.Action(action)
		i := index[routeID]
		routes[i].Permissions = append(routes[i].Permissions, p)
	}
	return routes, permRows.Err()
}

func (r *Repository) selectOne(ctx context.Context, tail string, args ...any) (Route, error) {
	routes, err := selectRoutes(ctx, r.pool, tail, args...)
	if err != nil {
		return Route{}, err
	}
	if len(routes) == 0 {
		return Route{}, rbac.ErrNotFound
	}
	return routes[0], nil
}

// ListRoutes returns every route ordered for menu projection.
func (r *Repository) ListRoutes(ctx context.Context) ([]Route, error) {
	return selectRoutes(ctx, r.pool, `ORDER BY sort_order, id`)
}

// GetRoute fetches a route by ID.
func (r *Repository) GetRoute(ctx context.Context, id int64) (Route, error) {
	return r.selectOne(ctx, `WHERE id = $1`, id)
}

// FindByPath fetches a route by its unique path.
func (r *Repository) FindByPath(ctx context.Context, path string) (Route, error) {
	return r.selectOne(ctx, `WHERE path = $1`, path)
}

// FindByName fetches a route by its unique name.
func (r *Repository) FindByName(ctx context.Context, name string) (Route, error) {
	return r.selectOne(ctx, `WHERE name = $1`, name)
}

// CreateRoute inserts a route and its permission links.
func (r *Repository) CreateRoute(ctx context.Context, route Route, permissionIDs []int64) (Route, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO routes (path, name, title, icon, parent_id, sort_order, hidden)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			route.Path, route.Name, route.Title, route.Icon, route.ParentID, route.Order, route.Hidden).Scan(&id)
		if err != nil {
			return err
		}
		return replacePermissions(ctx, tx, id, permissionIDs)
	})
	if err != nil {
		return Route{}, routeWriteError(err, route)
	}
	return r.GetRoute(ctx, id)
}

// UpdateRoute rewrites a route and replaces its permission links.
func (r *Repository) UpdateRoute(ctx context.Context, route Route, permissionIDs []int64) (Route, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE routes
			SET path = $2, name = $3, title = $4, icon = $5, parent_id = $6, sort_order = $7, hidden = $8, updated_at = NOW()
			WHERE id = $1`,
			route.ID, route.Path, route.Name, route.Title, route.Icon, route.ParentID, route.Order, route.Hidden)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return rbac.ErrNotFound
		}
		return replacePermissions(ctx, tx, route.ID, permissionIDs)
	})
	if err != nil {
		return Route{}, routeWriteError(err, route)
	}
	return r.GetRoute(ctx, route.ID)
}

func replacePermissions(ctx context.Context, tx pgx.Tx, routeID int64, permissionIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM route_permissions WHERE route_id = $1`, routeID); err != nil {
		return err
	}
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO route_permissions (route_id, permission_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`, routeID, permissionIDs)
	return err
}

// DeleteRoute removes a route. The RESTRICT parent key rejects the delete if a
// child appeared after the usage check.
func (r *Repository) DeleteRoute(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		if _, ok := db.ForeignKeyViolation(err); ok {
			return &rbac.InUseError{Entity: "route", ID: id, By: "child routes", Count: 1}
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

// CountChildren returns how many routes name id as their parent.
func (r *Repository) CountChildren(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM routes WHERE parent_id = $1`, id).Scan(&count)
	return count, err
}

// MissingPermissions returns the IDs that do not exist in the catalog.
func (r *Repository) MissingPermissions(ctx context.Context, ids []int64) ([]int64, error) {
	return rbac.MissingPermissionIDs(ctx, r.pool, ids)
}

func routeWriteError(err error, route Route) error {
	if constraint, ok := db.UniqueViolation(err); ok {
		if constraint == "routes_name_key" {
			return &rbac.ConflictError{Entity: "route", Field: "name", Value: route.Name}
		}
		return &rbac.ConflictError{Entity: "route", Field: "path", Value: route.Path}
	}
	if constraint, ok := db.ForeignKeyViolation(err); ok {
		if constraint == "routes_parent_id_fkey" {
			return &rbac.ReferenceError{Field: "parent_id"}
		}
		return &rbac.ReferenceError{Field: "permission_ids"}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.ErrNotFound
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
