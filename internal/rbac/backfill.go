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
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/CloudGeometry/LangBuilder/internal/audit"
	"github.com/CloudGeometry/LangBuilder/internal/id"
	"github.com/CloudGeometry/LangBuilder/internal/observability/logger"
)

// ProjectRef is the backfill's view of a project: owner and whether it is
// a starter project, whose ownership is pinned.
type ProjectRef struct {
	ID        uuid.UUID
	OwnerID   *uuid.UUID
	IsStarter bool
}

// FlowRef is the backfill's view of a standalone flow.
type FlowRef struct {
	ID      uuid.UUID
	OwnerID *uuid.UUID
}

// ResourceLister enumerates resources needing ownership assignments.
type ResourceLister interface {
	ListProjects(ctx context.Context) ([]ProjectRef, error)
	ListStandaloneFlows(ctx context.Context) ([]FlowRef, error)
}

// UserLister enumerates users needing global assignments.
type UserLister interface {
	ListSuperusers(ctx context.Context) ([]uuid.UUID, error)
}

// Backfiller grants Owner assignments to legacy resources created before
// role assignments existed, and Admin to superusers. Safe to run any
// number of times: existing assignments are left alone, except that a
// mutable Owner assignment on a starter project is pinned in place.
type Backfiller struct {
	assignments AssignmentRepository
	roles       RoleRepository
	resources   ResourceLister
	users       UserLister
	auditor     audit.Logger
}

// NewBackfiller creates an ownership backfiller.
func NewBackfiller(assignments AssignmentRepository, roles RoleRepository, resources ResourceLister, users UserLister, auditor audit.Logger) *Backfiller {
	return &Backfiller{
		assignments: assignments,
		roles:       roles,
		resources:   resources,
		users:       users,
		auditor:     auditor,
	}
}

// Run executes the full backfill: Owner on every owned project (immutable
// for starter projects), Owner on every owned standalone flow, and global
// Admin for superusers. Flows inside projects are covered by inheritance
// and get no assignment of their own.
func (b *Backfiller) Run(ctx context.Context) error {
	owner, err := b.roles.GetByName(ctx, RoleOwner)
	if err != nil {
		return fmt.Errorf("failed to resolve Owner role: %w", err)
	}
	admin, err := b.roles.GetByName(ctx, RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to resolve Admin role: %w", err)
	}

	var created, pinned, skipped int

	projects, err := b.resources.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	for _, p := range projects {
		if p.OwnerID == nil {
			skipped++
			continue
		}
		n, pin, err := b.ensureOwner(ctx, *p.OwnerID, owner.ID, ProjectScope(p.ID), p.IsStarter)
		if err != nil {
			return err
		}
		created += n
		pinned += pin
	}

	flows, err := b.resources.ListStandaloneFlows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list standalone flows: %w", err)
	}
	for _, f := range flows {
		if f.OwnerID == nil {
			skipped++
			continue
		}
		n, _, err := b.ensureOwner(ctx, *f.OwnerID, owner.ID, FlowScope(f.ID), false)
		if err != nil {
			return err
		}
		created += n
	}

	superusers, err := b.users.ListSuperusers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list superusers: %w", err)
	}
	for _, userID := range superusers {
		n, _, err := b.ensureOwner(ctx, userID, admin.ID, GlobalScope(), false)
		if err != nil {
			return err
		}
		created += n
	}

	slog.InfoContext(ctx, "ownership backfill complete",
		logger.Component("rbac"),
		slog.Int("created", created),
		slog.Int("pinned", pinned),
		slog.Int("skipped_unowned", skipped),
	)

	b.auditor.Log(ctx, audit.Event{
		Type:    audit.TypeOwnerBackfill,
		ActorID: audit.ActorSystemBackfill,
		Metadata: map[string]any{
			"created":    created,
			"pinned":     pinned,
			"skipped":    skipped,
			"projects":   len(projects),
			"flows":      len(flows),
			"superusers": len(superusers),
		},
	})

	return nil
}

// ensureOwner creates the assignment if it does not exist. On a duplicate
// with immutable=true requested, the existing row is pinned instead, so a
// project later marked as starter still ends up protected.
func (b *Backfiller) ensureOwner(ctx context.Context, userID, roleID uuid.UUID, scope Scope, immutable bool) (created, pinned int, err error) {
	a := &Assignment{
		ID:          id.New(),
		UserID:      userID,
		RoleID:      roleID,
		Scope:       scope,
		IsImmutable: immutable,
	}

	err = b.assignments.Create(ctx, a)
	if err == nil {
		return 1, 0, nil
	}
	if !errors.Is(err, ErrDuplicateAssignment) {
		return 0, 0, fmt.Errorf("failed to backfill assignment on %s: %w", scope, err)
	}

	if !immutable {
		return 0, 0, nil
	}

	existing, err := b.assignments.Find(ctx, userID, roleID, scope)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load existing assignment on %s: %w", scope, err)
	}
	if existing.IsImmutable {
		return 0, 0, nil
	}
	if err := b.assignments.SetImmutable(ctx, existing.ID); err != nil {
		return 0, 0, fmt.Errorf("failed to pin assignment on %s: %w", scope, err)
	}
	return 0, 1, nil
}
