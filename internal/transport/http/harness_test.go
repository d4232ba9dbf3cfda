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

package http

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/CloudGeometry/LangBuilder/internal/audit"
	"github.com/CloudGeometry/LangBuilder/internal/id"
	"github.com/CloudGeometry/LangBuilder/internal/identity"
	"github.com/CloudGeometry/LangBuilder/internal/rbac"
	"github.com/CloudGeometry/LangBuilder/internal/resource"
)

// In-memory repositories backing the handler tests. All state lives in
// one testStore so the engine observes the assignments the resource
// service writes, like the shared database in production.

type testStore struct {
	users       map[uuid.UUID]*identity.User
	roles       map[uuid.UUID]*rbac.Role
	assignments map[uuid.UUID]*rbac.Assignment
	projects    map[uuid.UUID]*resource.Project
	flows       map[uuid.UUID]*resource.Flow

	// assignmentErr, when set, makes assignment lookups fail like a lost
	// database connection would.
	assignmentErr error
}

func newTestStore() *testStore {
	return &testStore{
		users:       make(map[uuid.UUID]*identity.User),
		roles:       make(map[uuid.UUID]*rbac.Role),
		assignments: make(map[uuid.UUID]*rbac.Assignment),
		projects:    make(map[uuid.UUID]*resource.Project),
		flows:       make(map[uuid.UUID]*resource.Flow),
	}
}

// identity.UserRepository

func (s *testStore) Create(ctx context.Context, user *identity.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *testStore) GetByID(ctx context.Context, userID uuid.UUID) (*identity.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return user, nil
}

func (s *testStore) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (s *testStore) Delete(ctx context.Context, userID uuid.UUID) error {
	delete(s.users, userID)
	return nil
}

func (s *testStore) TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return nil
}

func (s *testStore) ListSuperusers(ctx context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, user := range s.users {
		if user.IsSuperuser {
			out = append(out, user.ID)
		}
	}
	return out, nil
}

// roleRepo implements rbac.RoleRepository over the test store

type roleRepo struct{ s *testStore }

func (r roleRepo) Ensure(ctx context.Context, role *rbac.Role) error {
	for _, existing := range r.s.roles {
		if existing.Name == role.Name {
			role.ID = existing.ID
			return nil
		}
	}
	r.s.roles[role.ID] = role
	return nil
}

func (r roleRepo) GetByID(ctx context.Context, roleID uuid.UUID) (*rbac.Role, error) {
	role, ok := r.s.roles[roleID]
	if !ok {
		return nil, rbac.ErrRoleNotFound
	}
	return role, nil
}

func (r roleRepo) GetByName(ctx context.Context, name string) (*rbac.Role, error) {
	for _, role := range r.s.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return nil, rbac.ErrRoleNotFound
}

func (r roleRepo) List(ctx context.Context) ([]*rbac.Role, error) {
	out := make([]*rbac.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		out = append(out, role)
	}
	return out, nil
}

// assignmentRepo implements rbac.AssignmentRepository over the test store

type assignmentRepo struct{ s *testStore }

func (r assignmentRepo) Create(ctx context.Context, a *rbac.Assignment) error {
	for _, existing := range r.s.assignments {
		if existing.UserID == a.UserID && existing.RoleID == a.RoleID && existing.Scope == a.Scope {
			return rbac.ErrDuplicateAssignment
		}
	}
	r.s.assignments[a.ID] = a
	return nil
}

func (r assignmentRepo) GetByID(ctx context.Context, assignmentID uuid.UUID) (*rbac.Assignment, error) {
	a, ok := r.s.assignments[assignmentID]
	if !ok {
		return nil, rbac.ErrAssignmentNotFound
	}
	return a, nil
}

func (r assignmentRepo) Find(ctx context.Context, userID, roleID uuid.UUID, scope rbac.Scope) (*rbac.Assignment, error) {
	for _, a := range r.s.assignments {
		if a.UserID == userID && a.RoleID == roleID && a.Scope == scope {
			return a, nil
		}
	}
	return nil, rbac.ErrAssignmentNotFound
}

func (r assignmentRepo) UpdateRole(ctx context.Context, assignmentID, roleID uuid.UUID) error {
	a, ok := r.s.assignments[assignmentID]
	if !ok {
		return rbac.ErrAssignmentNotFound
	}
	a.RoleID = roleID
	return nil
}

func (r assignmentRepo) SetImmutable(ctx context.Context, assignmentID uuid.UUID) error {
	a, ok := r.s.assignments[assignmentID]
	if !ok {
		return rbac.ErrAssignmentNotFound
	}
	a.IsImmutable = true
	return nil
}

func (r assignmentRepo) Delete(ctx context.Context, assignmentID uuid.UUID) error {
	if _, ok := r.s.assignments[assignmentID]; !ok {
		return rbac.ErrAssignmentNotFound
	}
	delete(r.s.assignments, assignmentID)
	return nil
}

func (r assignmentRepo) ListForUserAndScope(ctx context.Context, userID uuid.UUID, scope rbac.Scope) ([]*rbac.Assignment, error) {
	if r.s.assignmentErr != nil {
		return nil, r.s.assignmentErr
	}
	var out []*rbac.Assignment
	for _, a := range r.s.assignments {
		if a.UserID == userID && a.Scope == scope {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r assignmentRepo) List(ctx context.Context, filter rbac.AssignmentFilter) ([]*rbac.Assignment, error) {
	var out []*rbac.Assignment
	for _, a := range r.s.assignments {
		if filter.UserID != nil && a.UserID != *filter.UserID {
			continue
		}
		if filter.RoleID != nil && a.RoleID != *filter.RoleID {
			continue
		}
		if filter.ScopeKind != nil && a.Scope.Kind() != *filter.ScopeKind {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// projectRepo implements resource.ProjectRepository over the test store

type projectRepo struct{ s *testStore }

func (r projectRepo) CreateWithOwner(ctx context.Context, p *resource.Project, a *rbac.Assignment) error {
	if err := (assignmentRepo{r.s}).Create(ctx, a); err != nil {
		return err
	}
	r.s.projects[p.ID] = p
	return nil
}

func (r projectRepo) GetByID(ctx context.Context, projectID uuid.UUID) (*resource.Project, error) {
	p, ok := r.s.projects[projectID]
	if !ok {
		return nil, resource.ErrProjectNotFound
	}
	return p, nil
}

func (r projectRepo) Update(ctx context.Context, p *resource.Project) error {
	r.s.projects[p.ID] = p
	return nil
}

func (r projectRepo) Delete(ctx context.Context, projectID uuid.UUID) error {
	delete(r.s.projects, projectID)
	return nil
}

func (r projectRepo) List(ctx context.Context) ([]*resource.Project, error) {
	out := make([]*resource.Project, 0, len(r.s.projects))
	for _, p := range r.s.projects {
		out = append(out, p)
	}
	return out, nil
}

// flowRepo implements resource.FlowRepository and rbac.ParentResolver

type flowRepo struct{ s *testStore }

func (r flowRepo) Create(ctx context.Context, f *resource.Flow) error {
	r.s.flows[f.ID] = f
	return nil
}

func (r flowRepo) CreateWithOwner(ctx context.Context, f *resource.Flow, a *rbac.Assignment) error {
	if err := (assignmentRepo{r.s}).Create(ctx, a); err != nil {
		return err
	}
	r.s.flows[f.ID] = f
	return nil
}

func (r flowRepo) GetByID(ctx context.Context, flowID uuid.UUID) (*resource.Flow, error) {
	f, ok := r.s.flows[flowID]
	if !ok {
		return nil, resource.ErrFlowNotFound
	}
	return f, nil
}

func (r flowRepo) Update(ctx context.Context, f *resource.Flow) error {
	r.s.flows[f.ID] = f
	return nil
}

func (r flowRepo) Delete(ctx context.Context, flowID uuid.UUID) error {
	delete(r.s.flows, flowID)
	return nil
}

func (r flowRepo) List(ctx context.Context) ([]*resource.Flow, error) {
	out := make([]*resource.Flow, 0, len(r.s.flows))
	for _, f := range r.s.flows {
		out = append(out, f)
	}
	return out, nil
}

func (r flowRepo) FlowProject(ctx context.Context, flowID uuid.UUID) (uuid.UUID, bool, error) {
	f, ok := r.s.flows[flowID]
	if !ok || f.ProjectID == nil {
		return uuid.Nil, false, nil
	}
	return *f.ProjectID, true, nil
}

// captureAuditor records audit events so tests can assert on them.
type captureAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureAuditor) Log(ctx context.Context, event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureAuditor) last(eventType string) (audit.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == eventType {
			return c.events[i], true
		}
	}
	return audit.Event{}, false
}

// harness wires a full handler over the in-memory store.
type harness struct {
	handler  *Handler
	store    *testStore
	identity *identity.Service
	tokens   *identity.TokenIssuer
	manager  *rbac.Manager
	engine   *rbac.Engine
	audits   *captureAuditor
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := newTestStore()
	roles := roleRepo{store}
	assignments := assignmentRepo{store}
	flows := flowRepo{store}

	for _, name := range rbac.SystemRoleNames() {
		role := &rbac.Role{
			ID:       id.New(),
			Name:     name,
			IsSystem: true,
			IsGlobal: rbac.IsGlobalRole(name),
			Grants:   rbac.RoleGrants(name),
		}
		require.NoError(t, roles.Ensure(context.Background(), role))
	}

	auditor := &captureAuditor{}
	hasher := identity.NewPasswordHasher(8*1024, 1, 1, 16, 32)
	identityService := identity.NewService(store, hasher, auditor)
	tokens := identity.NewTokenIssuer("test-secret", time.Hour)
	engine := rbac.NewEngine(assignments, roles, flows, nil)
	manager := rbac.NewManager(assignments, roles, auditor)
	resourceService := resource.NewService(projectRepo{store}, flows, roles, engine, auditor)

	return &harness{
		handler:  NewHandler(identityService, resourceService, manager, engine, tokens, auditor),
		store:    store,
		identity: identityService,
		tokens:   tokens,
		manager:  manager,
		engine:   engine,
		audits:   auditor,
	}
}

// user creates an account and returns it with a valid bearer token.
func (h *harness) user(t *testing.T, username string, superuser bool) (*identity.User, string) {
	t.Helper()
	user, err := h.identity.CreateUser(context.Background(), username, "hunter22pass", superuser)
	require.NoError(t, err)
	token, err := h.tokens.Issue(user)
	require.NoError(t, err)
	return user, token
}
