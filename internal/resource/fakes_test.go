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

package resource

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/CloudGeometry/LangBuilder/internal/audit"
	"github.com/CloudGeometry/LangBuilder/internal/rbac"
)

type memRoleRepo struct {
	mu    sync.Mutex
	roles map[uuid.UUID]*rbac.Role
}

func newMemRoleRepo() *memRoleRepo {
	return &memRoleRepo{roles: make(map[uuid.UUID]*rbac.Role)}
}

func (r *memRoleRepo) Ensure(ctx context.Context, role *rbac.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roles {
		if existing.Name == role.Name {
			role.ID = existing.ID
			return nil
		}
	}
	cp := *role
	r.roles[role.ID] = &cp
	return nil
}

func (r *memRoleRepo) GetByID(ctx context.Context, roleID uuid.UUID) (*rbac.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[roleID]
	if !ok {
		return nil, rbac.ErrRoleNotFound
	}
	cp := *role
	return &cp, nil
}

func (r *memRoleRepo) GetByName(ctx context.Context, name string) (*rbac.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.Name == name {
			cp := *role
			return &cp, nil
		}
	}
	return nil, rbac.ErrRoleNotFound
}

func (r *memRoleRepo) List(ctx context.Context) ([]*rbac.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*rbac.Role, 0, len(r.roles))
	for _, role := range r.roles {
		cp := *role
		out = append(out, &cp)
	}
	return out, nil
}

type memAssignmentRepo struct {
	mu          sync.Mutex
	assignments map[uuid.UUID]*rbac.Assignment
}

func newMemAssignmentRepo() *memAssignmentRepo {
	return &memAssignmentRepo{assignments: make(map[uuid.UUID]*rbac.Assignment)}
}

func (r *memAssignmentRepo) Create(ctx context.Context, a *rbac.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.assignments {
		if existing.UserID == a.UserID && existing.RoleID == a.RoleID && existing.Scope == a.Scope {
			return rbac.ErrDuplicateAssignment
		}
	}
	cp := *a
	r.assignments[a.ID] = &cp
	return nil
}

func (r *memAssignmentRepo) GetByID(ctx context.Context, assignmentID uuid.UUID) (*rbac.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[assignmentID]
	if !ok {
		return nil, rbac.ErrAssignmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAssignmentRepo) Find(ctx context.Context, userID, roleID uuid.UUID, scope rbac.Scope) (*rbac.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.UserID == userID && a.RoleID == roleID && a.Scope == scope {
			cp := *a
			return &cp, nil
		}
	}
	return nil, rbac.ErrAssignmentNotFound
}

func (r *memAssignmentRepo) UpdateRole(ctx context.Context, assignmentID, roleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[assignmentID]
	if !ok {
		return rbac.ErrAssignmentNotFound
	}
	a.RoleID = roleID
	return nil
}

func (r *memAssignmentRepo) SetImmutable(ctx context.Context, assignmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[assignmentID]
	if !ok {
		return rbac.ErrAssignmentNotFound
	}
	a.IsImmutable = true
	return nil
}

func (r *memAssignmentRepo) Delete(ctx context.Context, assignmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[assignmentID]; !ok {
		return rbac.ErrAssignmentNotFound
	}
	delete(r.assignments, assignmentID)
	return nil
}

func (r *memAssignmentRepo) ListForUserAndScope(ctx context.Context, userID uuid.UUID, scope rbac.Scope) ([]*rbac.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*rbac.Assignment
	for _, a := range r.assignments {
		if a.UserID == userID && a.Scope == scope {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAssignmentRepo) List(ctx context.Context, filter rbac.AssignmentFilter) ([]*rbac.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*rbac.Assignment
	for _, a := range r.assignments {
		if filter.UserID != nil && a.UserID != *filter.UserID {
			continue
		}
		if filter.RoleID != nil && a.RoleID != *filter.RoleID {
			continue
		}
		if filter.ScopeKind != nil && a.Scope.Kind() != *filter.ScopeKind {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

type captureAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureAuditor) Log(ctx context.Context, event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}
