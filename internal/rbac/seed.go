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

	"github.com/CloudGeometry/LangBuilder/internal/audit"
	"github.com/CloudGeometry/LangBuilder/internal/id"
	"github.com/CloudGeometry/LangBuilder/internal/observability/logger"
)

// SeedVersion is bumped whenever the shipped catalog changes shape. The
// seed runs when the persisted version is behind it and is a no-op
// otherwise, so every boot path (server start, migrate CLI) can call it
// unconditionally.
const SeedVersion = 1

// Seeder installs the permission and role catalog.
type Seeder struct {
	roles       RoleRepository
	permissions PermissionRepository
	state       SeedStateRepository
	auditor     audit.Logger
}

// NewSeeder creates a catalog seeder.
func NewSeeder(roles RoleRepository, permissions PermissionRepository, state SeedStateRepository, auditor audit.Logger) *Seeder {
	return &Seeder{
		roles:       roles,
		permissions: permissions,
		state:       state,
		auditor:     auditor,
	}
}

// Seed installs the 8 permissions, the 4 system roles and their
// role-permission links, then records SeedVersion. Every step is an
// upsert, so a seed interrupted halfway completes cleanly on the next
// run.
func (s *Seeder) Seed(ctx context.Context) error {
	version, err := s.state.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to read seed state: %w", err)
	}
	if version >= SeedVersion {
		slog.DebugContext(ctx, "rbac catalog up to date",
			logger.Component("rbac"),
			slog.Int("version", version),
		)
		return nil
	}

	permissionIDs := make(map[Grant]Permission, len(AllGrants()))
	for _, grant := range AllGrants() {
		perm := &Permission{
			ID:          id.New(),
			Action:      grant.Action,
			Resource:    grant.Resource,
			Description: GrantDescriptions[grant],
		}
		if err := s.permissions.Ensure(ctx, perm); err != nil {
			return fmt.Errorf("failed to seed permission %s:%s: %w", grant.Action, grant.Resource, err)
		}
		permissionIDs[grant] = *perm
	}

	for _, name := range SystemRoleNames() {
		role := &Role{
			ID:          id.New(),
			Name:        name,
			Description: RoleDescriptions[name],
			IsSystem:    true,
			IsGlobal:    IsGlobalRole(name),
		}
		if err := s.roles.Ensure(ctx, role); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", name, err)
		}

		for _, grant := range RoleGrants(name) {
			perm := permissionIDs[grant]
			if err := s.permissions.AttachToRole(ctx, role.ID, perm.ID); err != nil {
				return fmt.Errorf("failed to link role %s to %s:%s: %w", name, grant.Action, grant.Resource, err)
			}
		}
	}

	if err := s.state.SetVersion(ctx, SeedVersion); err != nil {
		return fmt.Errorf("failed to record seed version: %w", err)
	}

	slog.InfoContext(ctx, "rbac catalog seeded",
		logger.Component("rbac"),
		slog.Int("version", SeedVersion),
	)

	s.auditor.Log(ctx, audit.Event{
		Type:    audit.TypeCatalogSeeded,
		ActorID: audit.ActorSystemSeed,
		Metadata: map[string]any{
			"version":     SeedVersion,
			"permissions": len(AllGrants()),
			"roles":       len(SystemRoleNames()),
		},
	})

	return nil
}
