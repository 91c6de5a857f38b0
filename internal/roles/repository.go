package roles

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

const roleColumns = `r.id, r.name, r.display_name, r.description, r.is_system, r.created_at, r.updated_at`

// SelectRoles runs "SELECT <role columns> FROM roles r <tail>" and attaches
// each role's permissions.
func SelectRoles(ctx context.Context, q db.DBTX, tail string, args ...any) ([]Role, error) {
	rows, err := q.Query(ctx, `SELECT `+roleColumns+` FROM roles r `+tail, args...)
	if err != nil {
		return nil, err
	}
	roles := make([]Role, 0)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		roles = append(roles, role)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, len(roles))
	for i := range roles {
		ids[i] = roles[i].ID
	}
	perms, err := rbac.LoadRolePermissions(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		roles[i].Permissions = perms[roles[i].ID]
		if roles[i].Permissions == nil {
			roles[i].Permissions = []rbac.Permission{}
		}
	}
	return roles, nil
}

func selectOne(ctx context.Context, q db.DBTX, tail string, args ...any) (Role, error) {
	roles, err := SelectRoles(ctx, q, tail, args...)
	if err != nil {
		return Role{}, err
	}
	if len(roles) == 0 {
		return Role{}, rbac.ErrNotFound
	}
	return roles[0], nil
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	return SelectRoles(ctx, r.pool, `ORDER BY r.name`)
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	return selectOne(ctx, r.pool, `WHERE r.id = $1`, id)
}

// FindRoleByName fetches a role by its unique name.
func (r *Repository) FindRoleByName(ctx context.Context, name string) (Role, error) {
	return selectOne(ctx, r.pool, `WHERE r.name = $1`, name)
}

// CreateRole inserts a role and its permission links in one transaction.
func (r *Repository) CreateRole(ctx context.Context, role Role, permissionIDs []int64) (Role, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO roles (name, display_name, description, is_system)
			VALUES ($1, $2, $3, $4)
			RETURNING id`, role.Name, role.DisplayName, role.Description, role.IsSystem).Scan(&id)
		if err != nil {
			return err
		}
		return insertPermissions(ctx, tx, id, permissionIDs)
	})
	if err != nil {
		return Role{}, roleWriteError(err, role.Name)
	}
	return r.GetRole(ctx, id)
}

// UpdateRole updates display name and description.
func (r *Repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE roles SET display_name = $2, description = $3, updated_at = NOW()
		WHERE id = $1`, role.ID, role.DisplayName, role.Description)
	if err != nil {
		return Role{}, err
	}
	if tag.RowsAffected() == 0 {
		return Role{}, rbac.ErrNotFound
	}
	return r.GetRole(ctx, role.ID)
}

// ReplacePermissions deletes every permission link of the role and inserts
// the given set inside a single transaction.
func (r *Repository) ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		if err := insertPermissions(ctx, tx, roleID, permissionIDs); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE roles SET updated_at = NOW() WHERE id = $1`, roleID)
		return err
	})
	if _, ok := db.ForeignKeyViolation(err); ok {
		return &rbac.ReferenceError{Field: "permission_ids"}
	}
	return err
}

func insertPermissions(ctx context.Context, tx pgx.Tx, roleID int64, permissionIDs []int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`, roleID, permissionIDs)
	return err
}

// DeleteRole removes a role. The RESTRICT key on user_roles rejects the
// delete if an assignment appeared after the usage check.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if _, ok := db.ForeignKeyViolation(err); ok {
			return &rbac.InUseError{Entity: "role", ID: id, By: "users", Count: 1}
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

// CountAssignedUsers returns how many users hold the role.
func (r *Repository) CountAssignedUsers(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`, id).Scan(&count)
	return count, err
}

// MissingPermissions returns the IDs that do not exist in the catalog.
func (r *Repository) MissingPermissions(ctx context.Context, ids []int64) ([]int64, error) {
	return rbac.MissingPermissionIDs(ctx, r.pool, ids)
}

func roleWriteError(err error, name string) error {
	if _, ok := db.UniqueViolation(err); ok {
		return &rbac.ConflictError{Entity: "role", Field: "name", Value: name}
	}
	if _, ok := db.ForeignKeyViolation(err); ok {
		return &rbac.ReferenceError{Field: "permission_ids"}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.ErrNotFound
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
