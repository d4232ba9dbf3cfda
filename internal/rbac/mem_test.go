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
	"sync"

	"github.com/google/uuid"

	"github.com/CloudGeometry/LangBuilder/internal/audit"
	"github.com/CloudGeometry/LangBuilder/internal/id"
)

// In-memory fakes backing the rbac tests. They enforce the same
// uniqueness rules the postgres store does so duplicate handling can be
// exercised without a database.

type memRoleRepo struct {
	mu    sync.Mutex
	roles map[uuid.UUID]*Role
}

func newMemRoleRepo() *memRoleRepo {
	return &memRoleRepo{roles: make(map[uuid.UUID]*Role)}
}

func (r *memRoleRepo) Ensure(ctx context.Context, role *Role) error {
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

func (r *memRoleRepo) GetByID(ctx context.Context, roleID uuid.UUID) (*Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[roleID]
	if !ok {
		return nil, ErrRoleNotFound
	}
	cp := *role
	return &cp, nil
}

func (r *memRoleRepo) GetByName(ctx context.Context, name string) (*Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.Name == name {
			cp := *role
			return &cp, nil
		}
	}
	return nil, ErrRoleNotFound
}

func (r *memRoleRepo) List(ctx context.Context) ([]*Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Role, 0, len(r.roles))
	for _, role := range r.roles {
		cp := *role
		out = append(out, &cp)
	}
	return out, nil
}

type memPermissionRepo struct {
	mu          sync.Mutex
	permissions map[Grant]*Permission
	links       map[uuid.UUID]map[uuid.UUID]bool
}

func newMemPermissionRepo() *memPermissionRepo {
	return &memPermissionRepo{
		permissions: make(map[Grant]*Permission),
		links:       make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (r *memPermissionRepo) Ensure(ctx context.Context, p *Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := Grant{Action: p.Action, Resource: p.Resource}
	if existing, ok := r.permissions[key]; ok {
		p.ID = existing.ID
		return nil
	}
	cp := *p
	r.permissions[key] = &cp
	return nil
}

func (r *memPermissionRepo) AttachToRole(ctx context.Context, roleID, permissionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.links[roleID] == nil {
		r.links[roleID] = make(map[uuid.UUID]bool)
	}
	r.links[roleID][permissionID] = true
	return nil
}

func (r *memPermissionRepo) List(ctx context.Context) ([]*Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Permission, 0, len(r.permissions))
	for _, p := range r.permissions {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

type memAssignmentRepo struct {
	mu          sync.Mutex
	assignments map[uuid.UUID]*Assignment
}

func newMemAssignmentRepo() *memAssignmentRepo {
	return &memAssignmentRepo{assignments: make(map[uuid.UUID]*Assignment)}
}

func (r *memAssignmentRepo) Create(ctx context.Context, a *Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.assignments {
		if existing.UserID == a.UserID && existing.RoleID == a.RoleID && existing.Scope == a.Scope {
			return ErrDuplicateAssignment
		}
	}
	cp := *a
	r.assignments[a.ID] = &cp
	return nil
}

func (r *memAssignmentRepo) GetByID(ctx context.Context, assignmentID uuid.UUID) (*Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[assignmentID]
	if !ok {
		return nil, ErrAssignmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAssignmentRepo) Find(ctx context.Context, userID, roleID uuid.UUID, scope Scope) (*Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.UserID == userID && a.RoleID == roleID && a.Scope == scope {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAssignmentNotFound
}

func (r *memAssignmentRepo) UpdateRole(ctx context.Context, assignmentID, roleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[assignmentID]
	if !ok {
		return ErrAssignmentNotFound
	}
	for _, existing := range r.assignments {
		if existing.ID != assignmentID && existing.UserID == a.UserID && existing.RoleID == roleID && existing.Scope == a.Scope {
			return ErrDuplicateAssignment
		}
	}
	a.RoleID = roleID
	return nil
}

func (r *memAssignmentRepo) SetImmutable(ctx context.Context, assignmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[assignmentID]
	if !ok {
		return ErrAssignmentNotFound
	}
	a.IsImmutable = true
	return nil
}

func (r *memAssignmentRepo) Delete(ctx context.Context, assignmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[assignmentID]; !ok {
		return ErrAssignmentNotFound
	}
	delete(r.assignments, assignmentID)
	return nil
}

func (r *memAssignmentRepo) ListForUserAndScope(ctx context.Context, userID uuid.UUID, scope Scope) ([]*Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Assignment
	for _, a := range r.assignments {
		if a.UserID == userID && a.Scope == scope {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAssignmentRepo) List(ctx context.Context, filter AssignmentFilter) ([]*Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Assignment
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

type memParentResolver struct {
	parents map[uuid.UUID]uuid.UUID
}

func newMemParentResolver() *memParentResolver {
	return &memParentResolver{parents: make(map[uuid.UUID]uuid.UUID)}
}

func (r *memParentResolver) FlowProject(ctx context.Context, flowID uuid.UUID) (uuid.UUID, bool, error) {
	projectID, ok := r.parents[flowID]
	return projectID, ok, nil
}

type memSeedState struct {
	mu      sync.Mutex
	version int
}

func (s *memSeedState) Version(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, nil
}

func (s *memSeedState) SetVersion(ctx context.Context, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = version
	return nil
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

// seedCatalog installs the system roles and permissions into the fakes
// and returns the role repo for lookup.
func seedCatalog(ctx context.Context) (*memRoleRepo, *memPermissionRepo, error) {
	roles := newMemRoleRepo()
	permissions := newMemPermissionRepo()

	for _, name := range SystemRoleNames() {
		role := &Role{
			ID:       id.New(),
			Name:     name,
			IsSystem: true,
			IsGlobal: IsGlobalRole(name),
			Grants:   RoleGrants(name),
		}
		if err := roles.Ensure(ctx, role); err != nil {
			return nil, nil, err
		}
	}
	return roles, permissions, nil
}
