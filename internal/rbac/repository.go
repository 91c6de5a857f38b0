package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const permissionColumns = `id, resource, action, description, created_at, updated_at`

// PermissionColumns returns the column list ScanPermissions expects, qualified
// with the given table alias.
func PermissionColumns(alias string) string {
	return alias + ".id, " + alias + ".resource, " + alias + ".action, " + alias + ".description, " + alias + ".created_at, " + alias + ".updated_at"
}

// ListPermissions returns the full catalog.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY resource, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanPermissions(rows)
}

// GetPermission fetches a permission by ID.
func (r *PGRepository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id)
	return scanPermission(row)
}

// FindPermission fetches a permission by its unique (resource, action) key.
func (r *PGRepository) FindPermission(ctx context.Context, resource string, action Action) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE resource = $1 AND action = $2`, resource, string(action))
	return scanPermission(row)
}

// CreatePermission inserts a permission.
func (r *PGRepository) CreatePermission(ctx context.Context, p Permission) (Permission, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (resource, action, description)
		VALUES ($1, $2, $3)
		RETURNING `+permissionColumns, p.Resource, string(p.Action), p.Description)
	created, err := scanPermission(row)
	if err != nil {
		return Permission{}, permissionWriteError(err, p)
	}
	return created, nil
}

// UpdatePermission updates resource, action and description.
func (r *PGRepository) UpdatePermission(ctx context.Context, p Permission) (Permission, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE permissions SET resource = $2, action = $3, description = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+permissionColumns, p.ID, p.Resource, string(p.Action), p.Description)
	updated, err := scanPermission(row)
	if err != nil {
		return Permission{}, permissionWriteError(err, p)
	}
	return updated, nil
}

// DeletePermission removes a permission. The RESTRICT foreign keys reject the
// delete if a reference appeared after the usage check.
func (r *PGRepository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		if _, ok := db.ForeignKeyViolation(err); ok {
			return &InUseError{Entity: "permission", ID: id, By: "roles or routes", Count: 1}
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PermissionUsage counts role and route references to a permission.
func (r *PGRepository) PermissionUsage(ctx context.Context, id int64) (Usage, error) {
	var usage Usage
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM role_permissions WHERE permission_id = $1),
			(SELECT COUNT(*) FROM route_permissions WHERE permission_id = $1)`, id).Scan(&usage.Roles, &usage.Routes)
	return usage, err
}

func permissionWriteError(err error, p Permission) error {
	if _, ok := db.UniqueViolation(err); ok {
		return &ConflictError{Entity: "permission", Field: "resource_action", Value: p.Key()}
	}
	return err
}

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	var action string
	if err := row.Scan(&p.ID, &p.Resource, &action, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	p.Action = Action(action)
	return p, nil
}

// ScanPermissions reads rows selected with the standard permission columns.
func ScanPermissions(rows pgx.Rows) ([]Permission, error) {
	perms := make([]Permission, 0)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// LoadRolePermissions returns the permissions of each given role keyed by role ID.
func LoadRolePermissions(ctx context.Context, q db.DBTX, roleIDs []int64) (map[int64][]Permission, error) {
	out := make(map[int64][]Permission, len(roleIDs))
	if len(roleIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
		SELECT rp.role_id, `+PermissionColumns("p")+`
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)
		ORDER BY p.resource, p.action`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var roleID int64
		var p Permission
		var action string
		if err := rows.Scan(&roleID, &p.ID, &p.Resource, &action, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Action = Action(action)
		out[roleID] = append(out[roleID], p)
	}
	return out, rows.Err()
}

// MissingPermissionIDs returns the IDs from ids that have no permission row.
func MissingPermissionIDs(ctx context.Context, q db.DBTX, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, `SELECT id FROM permissions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// UniqueIDs drops non-positive and duplicate IDs, keeping first-seen order.
func UniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var _ Repository = (*PGRepository)(nil)
