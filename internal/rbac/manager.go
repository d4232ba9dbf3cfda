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

package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/CloudGeometry/LangBuilder/internal/audit"
	"github.com/CloudGeometry/LangBuilder/internal/id"
	"github.com/CloudGeometry/LangBuilder/internal/observability/logger"
)

// Manager handles the assignment lifecycle: create, reassign, revoke and
// list. It owns the business rules around scope/role pairing and
// immutability; the store owns uniqueness.
type Manager struct {
	assignments AssignmentRepository
	roles       RoleRepository
	auditor     audit.Logger
}

// NewManager creates a new assignment manager.
func NewManager(assignments AssignmentRepository, roles RoleRepository, auditor audit.Logger) *Manager {
	return &Manager{
		assignments: assignments,
		roles:       roles,
		auditor:     auditor,
	}
}

// CreateAssignment grants roleName to userID over scope. The role name is
// normalized, so "viewer" and "Viewer" land on the same role. Global scope
// is only valid for global roles; everything else must name a concrete
// resource. Duplicate grants surface as ErrDuplicateAssignment.
func (m *Manager) CreateAssignment(ctx context.Context, userID uuid.UUID, roleName string, scope Scope, createdBy *uuid.UUID) (*Assignment, error) {
	role, err := m.resolveRole(ctx, roleName)
	if err != nil {
		return nil, err
	}

	if scope.IsGlobal() && !role.IsGlobal {
		return nil, fmt.Errorf("role %s cannot be assigned globally: %w", role.Name, ErrInvalidScope)
	}

	assignment := &Assignment{
		ID:        id.New(),
		UserID:    userID,
		RoleID:    role.ID,
		Scope:     scope,
		CreatedBy: createdBy,
	}

	if err := m.assignments.Create(ctx, assignment); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "role assigned",
		logger.Component("rbac"),
		logger.UserID(userID.String()),
		logger.RoleName(role.Name),
		logger.ScopeType(string(scope.Kind())),
	)

	m.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		ActorID:  actorID(createdBy),
		Resource: scope.String(),
		Metadata: map[string]any{
			"assignment_id": assignment.ID.String(),
			"user_id":       userID.String(),
			"role":          role.Name,
		},
	})

	return assignment, nil
}

// UpdateAssignment changes the role of an existing assignment, keeping
// user and scope fixed. Immutable assignments reject the change.
func (m *Manager) UpdateAssignment(ctx context.Context, assignmentID uuid.UUID, roleName string, actor *uuid.UUID) (*Assignment, error) {
	assignment, err := m.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.IsImmutable {
		return nil, ErrImmutableAssignment
	}

	role, err := m.resolveRole(ctx, roleName)
	if err != nil {
		return nil, err
	}
	if assignment.Scope.IsGlobal() && !role.IsGlobal {
		return nil, fmt.Errorf("role %s cannot be assigned globally: %w", role.Name, ErrInvalidScope)
	}

	if err := m.assignments.UpdateRole(ctx, assignmentID, role.ID); err != nil {
		return nil, err
	}
	assignment.RoleID = role.ID

	m.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeRoleReassigned,
		ActorID:  actorID(actor),
		Resource: assignment.Scope.String(),
		Metadata: map[string]any{
			"assignment_id": assignment.ID.String(),
			"user_id":       assignment.UserID.String(),
			"role":          role.Name,
		},
	})

	return assignment, nil
}

// DeleteAssignment revokes an assignment. Immutable assignments cannot be
// revoked.
func (m *Manager) DeleteAssignment(ctx context.Context, assignmentID uuid.UUID, actor *uuid.UUID) error {
	assignment, err := m.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return err
	}
	if assignment.IsImmutable {
		return ErrImmutableAssignment
	}

	if err := m.assignments.Delete(ctx, assignmentID); err != nil {
		return err
	}

	m.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRevoked,
		ActorID:  actorID(actor),
		Resource: assignment.Scope.String(),
		Metadata: map[string]any{
			"assignment_id": assignment.ID.String(),
			"user_id":       assignment.UserID.String(),
		},
	})

	return nil
}

// GetAssignment retrieves one assignment by id.
func (m *Manager) GetAssignment(ctx context.Context, assignmentID uuid.UUID) (*Assignment, error) {
	return m.assignments.GetByID(ctx, assignmentID)
}

// ListAssignments returns assignments matching the filter. roleName, when
// non-empty, is resolved to a role id first.
func (m *Manager) ListAssignments(ctx context.Context, userID *uuid.UUID, roleName string, scopeKind *ScopeKind) ([]*Assignment, error) {
	filter := AssignmentFilter{UserID: userID, ScopeKind: scopeKind}

	if roleName != "" {
		role, err := m.resolveRole(ctx, roleName)
		if err != nil {
			return nil, err
		}
		filter.RoleID = &role.ID
	}

	return m.assignments.List(ctx, filter)
}

// ListRoles returns the role catalog with grants.
func (m *Manager) ListRoles(ctx context.Context) ([]*Role, error) {
	return m.roles.List(ctx)
}

func (m *Manager) resolveRole(ctx context.Context, roleName string) (*Role, error) {
	canonical, err := NormalizeRoleName(roleName)
	if err != nil {
		// Not a system role; try the store as-is for custom roles.
		canonical = roleName
	}
	return m.roles.GetByName(ctx, canonical)
}

func actorID(actor *uuid.UUID) string {
	if actor == nil {
		return audit.ActorSystemBackfill
	}
	return actor.String()
}
