package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is a single forward-only schema step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema steps in order.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create permissions",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					resource VARCHAR(64) NOT NULL CHECK (resource ~ '^[a-z0-9_]+$'),
					action VARCHAR(16) NOT NULL CHECK (action IN ('CREATE','READ','UPDATE','DELETE','MANAGE','IMPORT','EXPORT')),
					description TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT permissions_resource_action_key UNIQUE (resource, action)
				);`,
		},
		{
			Version:     2,
			Description: "create roles",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(64) NOT NULL,
					display_name VARCHAR(128) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT roles_name_key UNIQUE (name)
				);
				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE RESTRICT,
					PRIMARY KEY (role_id, permission_id)
				);`,
		},
		{
			Version:     3,
			Description: "create users and user_roles",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL,
					name VARCHAR(255) NOT NULL DEFAULT '',
					password_hash TEXT NOT NULL,
					status VARCHAR(16) NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE','INACTIVE','SUSPENDED')),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT users_email_key UNIQUE (email)
				);
				CREATE TABLE IF NOT EXISTS user_roles (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE RESTRICT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, role_id)
				);
				CREATE INDEX IF NOT EXISTS idx_user_roles_role_id ON user_roles(role_id);`,
		},
		{
			Version:     4,
			Description: "create routes and route_permissions",
			SQL: `
				CREATE TABLE IF NOT EXISTS routes (
					id BIGSERIAL PRIMARY KEY,
					path VARCHAR(255) NOT NULL,
					name VARCHAR(128) NOT NULL,
					title VARCHAR(255) NOT NULL,
					icon VARCHAR(64),
					parent_id BIGINT REFERENCES routes(id) ON DELETE RESTRICT,
					sort_order INT NOT NULL DEFAULT 0,
					hidden BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT routes_path_key UNIQUE (path),
					CONSTRAINT routes_name_key UNIQUE (name),
					CONSTRAINT routes_no_self_parent CHECK (parent_id IS NULL OR parent_id <> id)
				);
				CREATE TABLE IF NOT EXISTS route_permissions (
					route_id BIGINT NOT NULL REFERENCES routes(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE RESTRICT,
					PRIMARY KEY (route_id, permission_id)
				);
				CREATE INDEX IF NOT EXISTS idx_route_permissions_permission_id ON route_permissions(permission_id);
				CREATE INDEX IF NOT EXISTS idx_role_permissions_permission_id ON role_permissions(permission_id);`,
		},
	}
}

// Migrate applies pending migrations, recording each version in schema_migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return 0, fmt.Errorf("platform/db: create schema_migrations: %w", err)
	}
	applied := 0
	for _, m := range Migrations() {
		err := WithTx(ctx, pool, func(tx pgx.Tx) error {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return nil
			}
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`, m.Version, m.Description); err != nil {
				return err
			}
			applied++
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("platform/db: migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return applied, nil
}
