// Copyright 2026 The LangBuilder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/CloudGeometry/LangBuilder/internal/id"
	"github.com/CloudGeometry/LangBuilder/internal/rbac"
)

// uniqueViolation is the Postgres error code for unique constraint hits
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// RoleRepository implements rbac.RoleRepository
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Ensure inserts the role unless its name is already taken, and fills the
// ID from the persisted row either way.
func (r *RoleRepository) Ensure(ctx context.Context, role *rbac.Role) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO roles (id, name, description, is_system, is_global)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		RETURNING id
	`,
		role.ID, role.Name, role.Description, role.IsSystem, role.IsGlobal,
	).Scan(&role.ID)

	if err != nil {
		return fmt.Errorf("failed to ensure role: %w", err)
	}
	return nil
}

// GetByID retrieves a role by ID, including its grants
func (r *RoleRepository) GetByID(ctx context.Context, id uuid.UUID) (*rbac.Role, error) {
	return r.get(ctx, "id = $1", id)
}

// GetByName retrieves a role by canonical name, including its grants
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*rbac.Role, error) {
	return r.get(ctx, "name = $1", name)
}

func (r *RoleRepository) get(ctx context.Context, where string, arg any) (*rbac.Role, error) {
	var role rbac.Role

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, description, is_system, is_global, created_at, updated_at
		FROM roles
		WHERE `+where,
		arg,
	).Scan(
		&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.IsGlobal,
		&role.CreatedAt, &role.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rbac.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	if err := r.loadGrants(ctx, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) loadGrants(ctx context.Context, role *rbac.Role) error {
	rows, err := r.db.pool.Query(ctx, `
		SELECT p.action, p.resource
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.resource, p.action
	`, role.ID)
	if err != nil {
		return fmt.Errorf("failed to load role grants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var grant rbac.Grant
		if err := rows.Scan(&grant.Action, &grant.Resource); err != nil {
			return fmt.Errorf("failed to scan grant: %w", err)
		}
		role.Grants = append(role.Grants, grant)
	}
	return rows.Err()
}

// List retrieves all roles with their grants
func (r *RoleRepository) List(ctx context.Context) ([]*rbac.Role, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, description, is_system, is_global, created_at, updated_at
		FROM roles
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*rbac.Role
	for rows.Next() {
		var role rbac.Role
		if err := rows.Scan(
			&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.IsGlobal,
			&role.CreatedAt, &role.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, role := range roles {
		if err := r.loadGrants(ctx, role); err != nil {
			return nil, err
		}
	}
	return roles, nil
}

// PermissionRepository implements rbac.PermissionRepository
type PermissionRepository struct {
	db *DB
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// Ensure inserts the permission unless the (action, resource) pair exists,
// and fills the ID from the persisted row either way.
func (r *PermissionRepository) Ensure(ctx context.Context, p *rbac.Permission) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO permissions (id, action, resource, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (action, resource) DO UPDATE SET description = EXCLUDED.description
		RETURNING id
	`,
		p.ID, p.Action, p.Resource, p.Description,
	).Scan(&p.ID)

	if err != nil {
		return fmt.Errorf("failed to ensure permission: %w", err)
	}
	return nil
}

// AttachToRole links a permission to a role; already-linked pairs are a
// no-op.
func (r *PermissionRepository) AttachToRole(ctx context.Context, roleID, permissionID uuid.UUID) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO role_permissions (id, role_id, permission_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_id, permission_id) DO NOTHING
	`, id.New(), roleID, permissionID)

	if err != nil {
		return fmt.Errorf("failed to attach permission: %w", err)
	}
	return nil
}

// List retrieves the full permission catalog
func (r *PermissionRepository) List(ctx context.Context) ([]*rbac.Permission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, action, resource, description
		FROM permissions
		ORDER BY resource, action
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var permissions []*rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.ID, &p.Action, &p.Resource, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, &p)
	}
	return permissions, rows.Err()
}

// AssignmentRepository implements rbac.AssignmentRepository
type AssignmentRepository struct {
	db *DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create persists a new assignment. The unique constraint on the
// quadruple decides duplicates, so concurrent creators race safely.
func (r *AssignmentRepository) Create(ctx context.Context, a *rbac.Assignment) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO role_assignments (id, user_id, role_id, scope_type, scope_id, is_immutable, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		a.ID, a.UserID, a.RoleID, a.Scope.Kind(), a.Scope.IDPtr(), a.IsImmutable, a.CreatedBy,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return rbac.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// GetByID retrieves an assignment by ID
func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*rbac.Assignment, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, role_id, scope_type, scope_id, is_immutable, created_at, created_by
		FROM role_assignments
		WHERE id = $1
	`, id)

	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rbac.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// Find retrieves an assignment by its natural key
func (r *AssignmentRepository) Find(ctx context.Context, userID, roleID uuid.UUID, scope rbac.Scope) (*rbac.Assignment, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, role_id, scope_type, scope_id, is_immutable, created_at, created_by
		FROM role_assignments
		WHERE user_id = $1 AND role_id = $2 AND scope_type = $3 AND scope_id IS NOT DISTINCT FROM $4
	`, userID, roleID, scope.Kind(), scope.IDPtr())

	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rbac.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to find assignment: %w", err)
	}
	return a, nil
}

// UpdateRole changes the role of an assignment
func (r *AssignmentRepository) UpdateRole(ctx context.Context, id, roleID uuid.UUID) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE role_assignments SET role_id = $2 WHERE id = $1
	`, id, roleID)

	if err != nil {
		if isUniqueViolation(err) {
			return rbac.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return rbac.ErrAssignmentNotFound
	}
	return nil
}

// SetImmutable pins an assignment
func (r *AssignmentRepository) SetImmutable(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE role_assignments SET is_immutable = TRUE WHERE id = $1
	`, id)

	if err != nil {
		return fmt.Errorf("failed to pin assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return rbac.ErrAssignmentNotFound
	}
	return nil
}

// Delete removes an assignment
func (r *AssignmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM role_assignments WHERE id = $1
	`, id)

	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return rbac.ErrAssignmentNotFound
	}
	return nil
}

// ListForUserAndScope retrieves the assignments a user holds on one
// scope. Hits idx_scope_lookup.
func (r *AssignmentRepository) ListForUserAndScope(ctx context.Context, userID uuid.UUID, scope rbac.Scope) ([]*rbac.Assignment, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, role_id, scope_type, scope_id, is_immutable, created_at, created_by
		FROM role_assignments
		WHERE user_id = $1 AND scope_type = $2 AND scope_id IS NOT DISTINCT FROM $3
	`, userID, scope.Kind(), scope.IDPtr())
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	return collectAssignments(rows)
}

// List retrieves assignments matching the filter
func (r *AssignmentRepository) List(ctx context.Context, filter rbac.AssignmentFilter) ([]*rbac.Assignment, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, role_id, scope_type, scope_id, is_immutable, created_at, created_by
		FROM role_assignments
		WHERE ($1::uuid IS NULL OR user_id = $1)
		  AND ($2::uuid IS NULL OR role_id = $2)
		  AND ($3::text IS NULL OR scope_type = $3)
		ORDER BY created_at
	`, filter.UserID, filter.RoleID, scopeKindArg(filter.ScopeKind))
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	return collectAssignments(rows)
}

func scopeKindArg(kind *rbac.ScopeKind) *string {
	if kind == nil {
		return nil
	}
	s := string(*kind)
	return &s
}

func scanAssignment(row pgx.Row) (*rbac.Assignment, error) {
	var a rbac.Assignment
	var scopeType string
	var scopeID *uuid.UUID

	if err := row.Scan(
		&a.ID, &a.UserID, &a.RoleID, &scopeType, &scopeID,
		&a.IsImmutable, &a.CreatedAt, &a.CreatedBy,
	); err != nil {
		return nil, err
	}

	scope, err := rbac.NewScope(scopeType, scopeID)
	if err != nil {
		return nil, fmt.Errorf("stored assignment %s has invalid scope: %w", a.ID, err)
	}
	a.Scope = scope
	return &a, nil
}

func collectAssignments(rows pgx.Rows) ([]*rbac.Assignment, error) {
	var out []*rbac.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SeedStateRepository implements rbac.SeedStateRepository
type SeedStateRepository struct {
	db *DB
}

// NewSeedStateRepository creates a new seed state repository
func NewSeedStateRepository(db *DB) *SeedStateRepository {
	return &SeedStateRepository{db: db}
}

// Version returns the persisted seed version, 0 when never seeded.
func (r *SeedStateRepository) Version(ctx context.Context) (int, error) {
	var version int
	err := r.db.pool.QueryRow(ctx, `
		SELECT version FROM rbac_seed_state WHERE id = 1
	`).Scan(&version)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read seed state: %w", err)
	}
	return version, nil
}

// SetVersion records the applied seed version
func (r *SeedStateRepository) SetVersion(ctx context.Context, version int) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO rbac_seed_state (id, version, applied_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version, applied_at = NOW()
	`, version)

	if err != nil {
		return fmt.Errorf("failed to record seed version: %w", err)
	}
	return nil
}
