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

import "strings"

// -----------------------------------------------------------------------------
// Permission Catalog
// Actions and resources form a fixed 4x2 grid of 8 permissions. Call sites
// are inconsistent about casing ("Read" vs "read"), so every external string
// passes through a Parse function and only canonical lowercase values exist
// past the boundary.
// -----------------------------------------------------------------------------

// Action is one of the four CRUD actions a permission covers.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction normalizes an external action string into its canonical form.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionCreate:
		return ActionCreate, nil
	case ActionRead:
		return ActionRead, nil
	case ActionUpdate:
		return ActionUpdate, nil
	case ActionDelete:
		return ActionDelete, nil
	}
	return "", ErrUnknownAction
}

// Resource is the kind of entity a permission applies to.
type Resource string

const (
	ResourceFlow    Resource = "flow"
	ResourceProject Resource = "project"
)

// ParseResource normalizes an external resource-type string.
func ParseResource(s string) (Resource, error) {
	switch Resource(strings.ToLower(strings.TrimSpace(s))) {
	case ResourceFlow:
		return ResourceFlow, nil
	case ResourceProject:
		return ResourceProject, nil
	}
	return "", ErrUnknownResource
}

// Grant is a single (action, resource) permission pair.
type Grant struct {
	Action   Action
	Resource Resource
}

// AllGrants returns the full permission catalog: every action on every
// resource, in stable order.
func AllGrants() []Grant {
	actions := []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
	resources := []Resource{ResourceFlow, ResourceProject}

	grants := make([]Grant, 0, len(actions)*len(resources))
	for _, r := range resources {
		for _, a := range actions {
			grants = append(grants, Grant{Action: a, Resource: r})
		}
	}
	return grants
}

// GrantDescriptions carries the human-readable catalog descriptions used
// when seeding. Read permission doubles as execution/export permission.
var GrantDescriptions = map[Grant]string{
	{ActionCreate, ResourceFlow}:    "Create new flows",
	{ActionRead, ResourceFlow}:      "Read flows (enables execution, saving, exporting, downloading)",
	{ActionUpdate, ResourceFlow}:    "Update existing flows (enables import)",
	{ActionDelete, ResourceFlow}:    "Delete flows",
	{ActionCreate, ResourceProject}: "Create new projects",
	{ActionRead, ResourceProject}:   "Read projects",
	{ActionUpdate, ResourceProject}: "Update existing projects (enables import)",
	{ActionDelete, ResourceProject}: "Delete projects",
}

// -----------------------------------------------------------------------------
// Role Catalog
// Four system roles with fixed permission sets. Admin is the only role that
// may be assigned at global scope.
// -----------------------------------------------------------------------------

const (
	// RoleAdmin has all 8 permissions and may be granted globally.
	RoleAdmin = "Admin"

	// RoleOwner has all 8 permissions on the assigned scope.
	RoleOwner = "Owner"

	// RoleEditor can create, read and update on the assigned scope. No delete.
	RoleEditor = "Editor"

	// RoleViewer is read-only on the assigned scope.
	RoleViewer = "Viewer"
)

// RoleDescriptions carries the seed descriptions for the system roles.
var RoleDescriptions = map[string]string{
	RoleAdmin:  "Full administrative access with all permissions globally",
	RoleOwner:  "Complete control over assigned resources (all CRUD operations)",
	RoleEditor: "Can create, read, and update assigned resources (no delete)",
	RoleViewer: "Read-only access to assigned resources",
}

// NormalizeRoleName maps any casing of a system role name onto its
// canonical form.
func NormalizeRoleName(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "owner":
		return RoleOwner, nil
	case "editor":
		return RoleEditor, nil
	case "viewer":
		return RoleViewer, nil
	}
	return "", ErrRoleNotFound
}

// RoleGrants returns the fixed permission set of a system role.
func RoleGrants(name string) []Grant {
	switch name {
	case RoleAdmin, RoleOwner:
		return AllGrants()
	case RoleEditor:
		return []Grant{
			{ActionCreate, ResourceFlow},
			{ActionRead, ResourceFlow},
			{ActionUpdate, ResourceFlow},
			{ActionCreate, ResourceProject},
			{ActionRead, ResourceProject},
			{ActionUpdate, ResourceProject},
		}
	case RoleViewer:
		return []Grant{
			{ActionRead, ResourceFlow},
			{ActionRead, ResourceProject},
		}
	}
	return nil
}

// IsGlobalRole reports whether a role may be assigned without a concrete
// resource. Only Admin qualifies.
func IsGlobalRole(name string) bool {
	return name == RoleAdmin
}

// SystemRoleNames lists the four seeded roles in seed order.
func SystemRoleNames() []string {
	return []string{RoleAdmin, RoleOwner, RoleEditor, RoleViewer}
}
