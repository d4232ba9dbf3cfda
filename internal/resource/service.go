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
	"fmt"

	"github.com/google/uuid"

	"github.com/CloudGeometry/LangBuilder/internal/audit"
	"github.com/CloudGeometry/LangBuilder/internal/id"
	"github.com/CloudGeometry/LangBuilder/internal/rbac"
)

// Service implements permission-aware project and flow operations. Every
// read/update/delete path checks the permission before touching the
// resource, so a denied caller cannot tell whether the resource exists.
type Service struct {
	projects ProjectRepository
	flows    FlowRepository
	roles    rbac.RoleRepository
	engine   *rbac.Engine
	auditor  audit.Logger
}

// NewService creates a new resource service
func NewService(projects ProjectRepository, flows FlowRepository, roles rbac.RoleRepository, engine *rbac.Engine, auditor audit.Logger) *Service {
	return &Service{
		projects: projects,
		flows:    flows,
		roles:    roles,
		engine:   engine,
		auditor:  auditor,
	}
}

// CreateProject creates a project owned by the caller. The Owner
// assignment lands in the same transaction as the project row, so a
// project can never exist without its creator holding Owner on it.
func (s *Service) CreateProject(ctx context.Context, subject rbac.Subject, name, description string) (*Project, error) {
	owner, err := s.roles.GetByName(ctx, rbac.RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Owner role: %w", err)
	}

	project := &Project{
		ID:          id.New(),
		Name:        name,
		Description: description,
		OwnerID:     &subject.ID,
	}
	assignment := &rbac.Assignment{
		ID:        id.New(),
		UserID:    subject.ID,
		RoleID:    owner.ID,
		Scope:     rbac.ProjectScope(project.ID),
		CreatedBy: &subject.ID,
	}

	if err := s.projects.CreateWithOwner(ctx, project, assignment); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeProjectCreated,
		ActorID:  subject.ID.String(),
		Resource: project.ID.String(),
		Metadata: map[string]any{"name": name},
	})

	return project, nil
}

// GetProject retrieves a project after a read permission check.
func (s *Service) GetProject(ctx context.Context, subject rbac.Subject, projectID uuid.UUID) (*Project, error) {
	if err := s.require(ctx, subject, rbac.ActionRead, rbac.ResourceProject, projectID); err != nil {
		return nil, err
	}
	return s.projects.GetByID(ctx, projectID)
}

// UpdateProject renames or redescribes a project. Starter projects are
// read-only.
func (s *Service) UpdateProject(ctx context.Context, subject rbac.Subject, projectID uuid.UUID, name, description *string) (*Project, error) {
	if err := s.require(ctx, subject, rbac.ActionUpdate, rbac.ResourceProject, projectID); err != nil {
		return nil, err
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.IsStarter {
		return nil, ErrStarterProtected
	}

	if name != nil {
		project.Name = *name
	}
	if description != nil {
		project.Description = *description
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return project, nil
}

// DeleteProject removes a project and its flows. Starter projects are
// protected.
func (s *Service) DeleteProject(ctx context.Context, subject rbac.Subject, projectID uuid.UUID) error {
	if err := s.require(ctx, subject, rbac.ActionDelete, rbac.ResourceProject, projectID); err != nil {
		return err
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if project.IsStarter {
		return ErrStarterProtected
	}

	if err := s.projects.Delete(ctx, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeProjectDeleted,
		ActorID:  subject.ID.String(),
		Resource: projectID.String(),
	})
	return nil
}

// ListProjects returns the projects the caller may read. Superusers and
// global admins see everything without per-row checks.
func (s *Service) ListProjects(ctx context.Context, subject rbac.Subject) ([]*Project, error) {
	all, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}

	admin, err := s.engine.HasGlobalAdmin(ctx, subject)
	if err != nil {
		return nil, err
	}
	if admin {
		return all, nil
	}

	visible := make([]*Project, 0, len(all))
	for _, p := range all {
		allowed, err := s.engine.CanAccess(ctx, subject, rbac.ActionRead, rbac.ResourceProject, p.ID)
		if err != nil {
			return nil, err
		}
		if allowed {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

// CreateFlow creates a flow. A standalone flow gets an Owner assignment
// for the creator; a flow inside a project requires flow-create
// permission on that project and inherits access from it.
func (s *Service) CreateFlow(ctx context.Context, subject rbac.Subject, name, description string, projectID *uuid.UUID) (*Flow, error) {
	flow := &Flow{
		ID:          id.New(),
		Name:        name,
		Description: description,
		OwnerID:     subject.ID,
		ProjectID:   projectID,
	}

	if projectID == nil {
		owner, err := s.roles.GetByName(ctx, rbac.RoleOwner)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve Owner role: %w", err)
		}
		assignment := &rbac.Assignment{
			ID:        id.New(),
			UserID:    subject.ID,
			RoleID:    owner.ID,
			Scope:     rbac.FlowScope(flow.ID),
			CreatedBy: &subject.ID,
		}
		if err := s.flows.CreateWithOwner(ctx, flow, assignment); err != nil {
			return nil, fmt.Errorf("failed to create flow: %w", err)
		}
	} else {
		allowed, err := s.engine.CanAccessScope(ctx, subject, rbac.ActionCreate, rbac.ResourceFlow, rbac.ProjectScope(*projectID))
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrPermissionDenied
		}
		if _, err := s.projects.GetByID(ctx, *projectID); err != nil {
			return nil, err
		}
		if err := s.flows.Create(ctx, flow); err != nil {
			return nil, fmt.Errorf("failed to create flow: %w", err)
		}
	}

	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeFlowCreated,
		ActorID:  subject.ID.String(),
		Resource: flow.ID.String(),
		Metadata: map[string]any{"name": name},
	})
	return flow, nil
}

// GetFlow retrieves a flow after a read permission check.
func (s *Service) GetFlow(ctx context.Context, subject rbac.Subject, flowID uuid.UUID) (*Flow, error) {
	if err := s.require(ctx, subject, rbac.ActionRead, rbac.ResourceFlow, flowID); err != nil {
		return nil, err
	}
	return s.flows.GetByID(ctx, flowID)
}

// UpdateFlow renames or redescribes a flow.
func (s *Service) UpdateFlow(ctx context.Context, subject rbac.Subject, flowID uuid.UUID, name, description *string) (*Flow, error) {
	if err := s.require(ctx, subject, rbac.ActionUpdate, rbac.ResourceFlow, flowID); err != nil {
		return nil, err
	}

	flow, err := s.flows.GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		flow.Name = *name
	}
	if description != nil {
		flow.Description = *description
	}

	if err := s.flows.Update(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to update flow: %w", err)
	}
	return flow, nil
}

// DeleteFlow removes a flow.
func (s *Service) DeleteFlow(ctx context.Context, subject rbac.Subject, flowID uuid.UUID) error {
	if err := s.require(ctx, subject, rbac.ActionDelete, rbac.ResourceFlow, flowID); err != nil {
		return err
	}

	if _, err := s.flows.GetByID(ctx, flowID); err != nil {
		return err
	}

	if err := s.flows.Delete(ctx, flowID); err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeFlowDeleted,
		ActorID:  subject.ID.String(),
		Resource: flowID.String(),
	})
	return nil
}

// ListFlows returns the flows the caller may read.
func (s *Service) ListFlows(ctx context.Context, subject rbac.Subject) ([]*Flow, error) {
	all, err := s.flows.List(ctx)
	if err != nil {
		return nil, err
	}

	admin, err := s.engine.HasGlobalAdmin(ctx, subject)
	if err != nil {
		return nil, err
	}
	if admin {
		return all, nil
	}

	visible := make([]*Flow, 0, len(all))
	for _, f := range all {
		allowed, err := s.engine.CanAccess(ctx, subject, rbac.ActionRead, rbac.ResourceFlow, f.ID)
		if err != nil {
			return nil, err
		}
		if allowed {
			visible = append(visible, f)
		}
	}
	return visible, nil
}

// require runs the permission check that precedes every existence
// lookup.
func (s *Service) require(ctx context.Context, subject rbac.Subject, action rbac.Action, res rbac.Resource, resourceID uuid.UUID) error {
	allowed, err := s.engine.CanAccess(ctx, subject, action, res, resourceID)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrPermissionDenied
	}
	return nil
}
