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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudGeometry/LangBuilder/internal/id"
	"github.com/CloudGeometry/LangBuilder/internal/rbac"
)

// In-memory repositories shared by the service tests. The project and
// flow repos write assignments through the same assignment repo the
// engine reads, mirroring the single database the postgres store uses.

type memStore struct {
	projects    map[uuid.UUID]*Project
	flows       map[uuid.UUID]*Flow
	assignments *memAssignmentRepo
}

func newMemStore() *memStore {
	return &memStore{
		projects:    make(map[uuid.UUID]*Project),
		flows:       make(map[uuid.UUID]*Flow),
		assignments: newMemAssignmentRepo(),
	}
}

func (s *memStore) CreateWithOwner(ctx context.Context, project *Project, assignment *rbac.Assignment) error {
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return err
	}
	cp := *project
	s.projects[project.ID] = &cp
	return nil
}

func (s *memStore) GetByID(ctx context.Context, projectID uuid.UUID) (*Project, error) {
	p, ok := s.projects[projectID]
	if !ok {
		return nil, ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) Update(ctx context.Context, project *Project) error {
	if _, ok := s.projects[project.ID]; !ok {
		return ErrProjectNotFound
	}
	cp := *project
	s.projects[project.ID] = &cp
	return nil
}

func (s *memStore) Delete(ctx context.Context, projectID uuid.UUID) error {
	if _, ok := s.projects[projectID]; !ok {
		return ErrProjectNotFound
	}
	delete(s.projects, projectID)
	return nil
}

func (s *memStore) List(ctx context.Context) ([]*Project, error) {
	out := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

type memFlowRepo struct {
	store *memStore
}

func (r *memFlowRepo) Create(ctx context.Context, flow *Flow) error {
	cp := *flow
	r.store.flows[flow.ID] = &cp
	return nil
}

func (r *memFlowRepo) CreateWithOwner(ctx context.Context, flow *Flow, assignment *rbac.Assignment) error {
	if err := r.store.assignments.Create(ctx, assignment); err != nil {
		return err
	}
	return r.Create(ctx, flow)
}

func (r *memFlowRepo) GetByID(ctx context.Context, flowID uuid.UUID) (*Flow, error) {
	f, ok := r.store.flows[flowID]
	if !ok {
		return nil, ErrFlowNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memFlowRepo) Update(ctx context.Context, flow *Flow) error {
	if _, ok := r.store.flows[flow.ID]; !ok {
		return ErrFlowNotFound
	}
	cp := *flow
	r.store.flows[flow.ID] = &cp
	return nil
}

func (r *memFlowRepo) Delete(ctx context.Context, flowID uuid.UUID) error {
	if _, ok := r.store.flows[flowID]; !ok {
		return ErrFlowNotFound
	}
	delete(r.store.flows, flowID)
	return nil
}

func (r *memFlowRepo) List(ctx context.Context) ([]*Flow, error) {
	out := make([]*Flow, 0, len(r.store.flows))
	for _, f := range r.store.flows {
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

// parentResolver resolves flow parents from the in-memory store.
type parentResolver struct {
	store *memStore
}

func (r *parentResolver) FlowProject(ctx context.Context, flowID uuid.UUID) (uuid.UUID, bool, error) {
	f, ok := r.store.flows[flowID]
	if !ok || f.ProjectID == nil {
		return uuid.Nil, false, nil
	}
	return *f.ProjectID, true, nil
}

type fixture struct {
	svc     *Service
	store   *memStore
	roles   *memRoleRepo
	engine  *rbac.Engine
	auditor *captureAuditor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	roles := newMemRoleRepo()
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

	engine := rbac.NewEngine(store.assignments, roles, &parentResolver{store: store}, nil)
	auditor := &captureAuditor{}
	return &fixture{
		svc:     NewService(store, &memFlowRepo{store: store}, roles, engine, auditor),
		store:   store,
		roles:   roles,
		engine:  engine,
		auditor: auditor,
	}
}

func TestCreateProject_GrantsOwner(t *testing.T) {
	f := newFixture(t)
	alice := rbac.Subject{ID: id.New()}

	project, err := f.svc.CreateProject(context.Background(), alice, "ml-experiments", "")
	require.NoError(t, err)

	// The creator can do everything on the new project.
	got, err := f.svc.GetProject(context.Background(), alice, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "ml-experiments", got.Name)

	require.NoError(t, f.svc.DeleteProject(context.Background(), alice, project.ID))
}

func TestGetProject_DeniedBeforeExistence(t *testing.T) {
	f := newFixture(t)
	alice := rbac.Subject{ID: id.New()}
	mallory := rbac.Subject{ID: id.New()}

	project, err := f.svc.CreateProject(context.Background(), alice, "private", "")
	require.NoError(t, err)

	// A stranger gets the same error for an existing and a nonexistent
	// project.
	_, err = f.svc.GetProject(context.Background(), mallory, project.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.GetProject(context.Background(), mallory, id.New())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUpdateProject_StarterProtected(t *testing.T) {
	f := newFixture(t)
	super := rbac.Subject{ID: id.New(), IsSuperuser: true}

	starter := &Project{ID: id.New(), Name: "Basic Prompting", IsStarter: true}
	f.store.projects[starter.ID] = starter

	name := "renamed"
	_, err := f.svc.UpdateProject(context.Background(), super, starter.ID, &name, nil)
	assert.ErrorIs(t, err, ErrStarterProtected)

	err = f.svc.DeleteProject(context.Background(), super, starter.ID)
	assert.ErrorIs(t, err, ErrStarterProtected)
}

func TestListProjects_FilteredByRead(t *testing.T) {
	f := newFixture(t)
	alice := rbac.Subject{ID: id.New()}
	bob := rbac.Subject{ID: id.New()}
	super := rbac.Subject{ID: id.New(), IsSuperuser: true}

	_, err := f.svc.CreateProject(context.Background(), alice, "alices", "")
	require.NoError(t, err)
	_, err = f.svc.CreateProject(context.Background(), bob, "bobs", "")
	require.NoError(t, err)

	mine, err := f.svc.ListProjects(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "alices", mine[0].Name)

	everything, err := f.svc.ListProjects(context.Background(), super)
	require.NoError(t, err)
	assert.Len(t, everything, 2)
}

func TestCreateFlow_StandaloneGrantsOwner(t *testing.T) {
	f := newFixture(t)
	alice := rbac.Subject{ID: id.New()}
	mallory := rbac.Subject{ID: id.New()}

	flow, err := f.svc.CreateFlow(context.Background(), alice, "scratch", "", nil)
	require.NoError(t, err)
	assert.Nil(t, flow.ProjectID)

	_, err = f.svc.GetFlow(context.Background(), alice, flow.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetFlow(context.Background(), mallory, flow.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCreateFlow_InProjectRequiresPermission(t *testing.T) {
	f := newFixture(t)
	alice := rbac.Subject{ID: id.New()}
	viewer := rbac.Subject{ID: id.New()}

	project, err := f.svc.CreateProject(context.Background(), alice, "shared", "")
	require.NoError(t, err)

	viewerRole, err := f.roles.GetByName(context.Background(), rbac.RoleViewer)
	require.NoError(t, err)
	require.NoError(t, f.store.assignments.Create(context.Background(), &rbac.Assignment{
		ID:     id.New(),
		UserID: viewer.ID,
		RoleID: viewerRole.ID,
		Scope:  rbac.ProjectScope(project.ID),
	}))

	// The project owner can add flows, a viewer cannot.
	flow, err := f.svc.CreateFlow(context.Background(), alice, "pipeline", "", &project.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateFlow(context.Background(), viewer, "nope", "", &project.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// But the viewer can read the contained flow through inheritance.
	_, err = f.svc.GetFlow(context.Background(), viewer, flow.ID)
	assert.NoError(t, err)
}

func TestUpdateFlow_ThroughInheritance(t *testing.T) {
	f := newFixture(t)
	alice := rbac.Subject{ID: id.New()}
	editor := rbac.Subject{ID: id.New()}

	project, err := f.svc.CreateProject(context.Background(), alice, "shared", "")
	require.NoError(t, err)
	flow, err := f.svc.CreateFlow(context.Background(), alice, "pipeline", "", &project.ID)
	require.NoError(t, err)

	editorRole, err := f.roles.GetByName(context.Background(), rbac.RoleEditor)
	require.NoError(t, err)
	require.NoError(t, f.store.assignments.Create(context.Background(), &rbac.Assignment{
		ID:     id.New(),
		UserID: editor.ID,
		RoleID: editorRole.ID,
		Scope:  rbac.ProjectScope(project.ID),
	}))

	name := "pipeline-v2"
	updated, err := f.svc.UpdateFlow(context.Background(), editor, flow.ID, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "pipeline-v2", updated.Name)

	// Editor has no delete grant.
	err = f.svc.DeleteFlow(context.Background(), editor, flow.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, f.svc.DeleteFlow(context.Background(), alice, flow.ID))
}

func TestListFlows_FilteredByRead(t *testing.T) {
	f := newFixture(t)
	alice := rbac.Subject{ID: id.New()}
	bob := rbac.Subject{ID: id.New()}

	_, err := f.svc.CreateFlow(context.Background(), alice, "mine", "", nil)
	require.NoError(t, err)
	_, err = f.svc.CreateFlow(context.Background(), bob, "theirs", "", nil)
	require.NoError(t, err)

	flows, err := f.svc.ListFlows(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "mine", flows[0].Name)
}
