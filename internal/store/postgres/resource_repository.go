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

	"github.com/CloudGeometry/LangBuilder/internal/rbac"
	"github.com/CloudGeometry/LangBuilder/internal/resource"
)

// ProjectRepository implements resource.ProjectRepository. It also
// serves as the backfill's project lister.
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// CreateWithOwner inserts the project and the creator's Owner assignment
// in one transaction; both commit or neither does.
func (r *ProjectRepository) CreateWithOwner(ctx context.Context, p *resource.Project, a *rbac.Assignment) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO projects (id, name, description, user_id, is_starter)
		VALUES ($1, $2, $3, $4, $5)
	`,
		p.ID, p.Name, p.Description, p.OwnerID, p.IsStarter,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO role_assignments (id, user_id, role_id, scope_type, scope_id, is_immutable, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		a.ID, a.UserID, a.RoleID, a.Scope.Kind(), a.Scope.IDPtr(), a.IsImmutable, a.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return rbac.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to create owner assignment: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, projectID uuid.UUID) (*resource.Project, error) {
	var p resource.Project

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, description, user_id, is_starter, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, projectID).Scan(
		&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.IsStarter,
		&p.CreatedAt, &p.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resource.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// Update persists name and description changes
func (r *ProjectRepository) Update(ctx context.Context, p *resource.Project) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE projects SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Name, p.Description)

	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return resource.ErrProjectNotFound
	}
	return nil
}

// Delete removes a project; contained flows cascade with it.
func (r *ProjectRepository) Delete(ctx context.Context, projectID uuid.UUID) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM projects WHERE id = $1
	`, projectID)

	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return resource.ErrProjectNotFound
	}
	return nil
}

// List retrieves all projects
func (r *ProjectRepository) List(ctx context.Context) ([]*resource.Project, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, description, user_id, is_starter, created_at, updated_at
		FROM projects
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []*resource.Project
	for rows.Next() {
		var p resource.Project
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.IsStarter,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// FlowRepository implements resource.FlowRepository and the engine's
// rbac.ParentResolver.
type FlowRepository struct {
	db *DB
}

// NewFlowRepository creates a new flow repository
func NewFlowRepository(db *DB) *FlowRepository {
	return &FlowRepository{db: db}
}

// Create inserts a flow contained in a project
func (r *FlowRepository) Create(ctx context.Context, f *resource.Flow) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO flows (id, name, description, user_id, project_id)
		VALUES ($1, $2, $3, $4, $5)
	`,
		f.ID, f.Name, f.Description, f.OwnerID, f.ProjectID,
	)

	if err != nil {
		return fmt.Errorf("failed to create flow: %w", err)
	}
	return nil
}

// CreateWithOwner inserts a standalone flow and the creator's Owner
// assignment on it in one transaction.
func (r *FlowRepository) CreateWithOwner(ctx context.Context, f *resource.Flow, a *rbac.Assignment) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO flows (id, name, description, user_id, project_id)
		VALUES ($1, $2, $3, $4, $5)
	`,
		f.ID, f.Name, f.Description, f.OwnerID, f.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("failed to create flow: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO role_assignments (id, user_id, role_id, scope_type, scope_id, is_immutable, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		a.ID, a.UserID, a.RoleID, a.Scope.Kind(), a.Scope.IDPtr(), a.IsImmutable, a.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return rbac.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to create owner assignment: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a flow by ID
func (r *FlowRepository) GetByID(ctx context.Context, flowID uuid.UUID) (*resource.Flow, error) {
	var f resource.Flow

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, description, user_id, project_id, created_at, updated_at
		FROM flows
		WHERE id = $1
	`, flowID).Scan(
		&f.ID, &f.Name, &f.Description, &f.OwnerID, &f.ProjectID,
		&f.CreatedAt, &f.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resource.ErrFlowNotFound
		}
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}
	return &f, nil
}

// Update persists name and description changes
func (r *FlowRepository) Update(ctx context.Context, f *resource.Flow) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE flows SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
	`, f.ID, f.Name, f.Description)

	if err != nil {
		return fmt.Errorf("failed to update flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return resource.ErrFlowNotFound
	}
	return nil
}

// Delete removes a flow
func (r *FlowRepository) Delete(ctx context.Context, flowID uuid.UUID) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM flows WHERE id = $1
	`, flowID)

	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return resource.ErrFlowNotFound
	}
	return nil
}

// List retrieves all flows
func (r *FlowRepository) List(ctx context.Context) ([]*resource.Flow, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, description, user_id, project_id, created_at, updated_at
		FROM flows
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	var out []*resource.Flow
	for rows.Next() {
		var f resource.Flow
		if err := rows.Scan(
			&f.ID, &f.Name, &f.Description, &f.OwnerID, &f.ProjectID,
			&f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// FlowProject resolves the owning project of a flow. ok is false for
// standalone flows and for flows that no longer exist.
func (r *FlowRepository) FlowProject(ctx context.Context, flowID uuid.UUID) (uuid.UUID, bool, error) {
	var projectID *uuid.UUID

	err := r.db.pool.QueryRow(ctx, `
		SELECT project_id FROM flows WHERE id = $1
	`, flowID).Scan(&projectID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("failed to resolve flow parent: %w", err)
	}
	if projectID == nil {
		return uuid.Nil, false, nil
	}
	return *projectID, true, nil
}

// BackfillLister implements rbac.ResourceLister over the resource tables.
type BackfillLister struct {
	db *DB
}

// NewBackfillLister creates a lister for the ownership backfill
func NewBackfillLister(db *DB) *BackfillLister {
	return &BackfillLister{db: db}
}

// ListProjects returns every project with its owner and starter flag
func (r *BackfillLister) ListProjects(ctx context.Context) ([]rbac.ProjectRef, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, is_starter FROM projects
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []rbac.ProjectRef
	for rows.Next() {
		var ref rbac.ProjectRef
		if err := rows.Scan(&ref.ID, &ref.OwnerID, &ref.IsStarter); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// ListStandaloneFlows returns flows with no parent project
func (r *BackfillLister) ListStandaloneFlows(ctx context.Context) ([]rbac.FlowRef, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id FROM flows WHERE project_id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list standalone flows: %w", err)
	}
	defer rows.Close()

	var out []rbac.FlowRef
	for rows.Next() {
		var flowID uuid.UUID
		var ownerID uuid.UUID
		if err := rows.Scan(&flowID, &ownerID); err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		out = append(out, rbac.FlowRef{ID: flowID, OwnerID: &ownerID})
	}
	return out, rows.Err()
}
