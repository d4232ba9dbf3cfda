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
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/CloudGeometry/LangBuilder/internal/rbac"
)

// Resource errors
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrFlowNotFound     = errors.New("flow not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrStarterProtected = errors.New("starter project cannot be modified")
)

// Project is a container for flows. OwnerID is nil for starter projects,
// which ship with the application and are protected from modification.
type Project struct {
	ID          uuid.UUID
	Name        string
	Description string
	OwnerID     *uuid.UUID
	IsStarter   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Flow is a leaf resource, either standalone or contained in a project.
type Flow struct {
	ID          uuid.UUID
	Name        string
	Description string
	OwnerID     uuid.UUID
	ProjectID   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectRepository defines the interface for project persistence
type ProjectRepository interface {
	// CreateWithOwner inserts the project and the creator's Owner
	// assignment in one transaction.
	CreateWithOwner(ctx context.Context, project *Project, assignment *rbac.Assignment) error

	// GetByID retrieves a project by ID
	GetByID(ctx context.Context, projectID uuid.UUID) (*Project, error)

	// Update persists name and description changes
	Update(ctx context.Context, project *Project) error

	// Delete removes a project. Contained flows go with it.
	Delete(ctx context.Context, projectID uuid.UUID) error

	// List retrieves all projects
	List(ctx context.Context) ([]*Project, error)
}

// FlowRepository defines the interface for flow persistence
type FlowRepository interface {
	// Create inserts a flow that lives inside a project; access control
	// comes from project inheritance, so no assignment is written.
	Create(ctx context.Context, flow *Flow) error

	// CreateWithOwner inserts a standalone flow and the creator's Owner
	// assignment on it in one transaction.
	CreateWithOwner(ctx context.Context, flow *Flow, assignment *rbac.Assignment) error

	// GetByID retrieves a flow by ID
	GetByID(ctx context.Context, flowID uuid.UUID) (*Flow, error)

	// Update persists name and description changes
	Update(ctx context.Context, flow *Flow) error

	// Delete removes a flow
	Delete(ctx context.Context, flowID uuid.UUID) error

	// List retrieves all flows
	List(ctx context.Context) ([]*Flow, error)
}
