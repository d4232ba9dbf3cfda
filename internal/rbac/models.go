package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Domain errors
var (
	ErrRoleNotFound        = errors.New("role not found")
	ErrPermissionNotFound  = errors.New("permission not found")
	ErrAssignmentNotFound  = errors.New("assignment not found")
	ErrDuplicateAssignment = errors.New("assignment already exists")
	ErrImmutableAssignment = errors.New("assignment is immutable")
	ErrInvalidScope        = errors.New("invalid scope")
	ErrUnknownAction       = errors.New("unknown action")
	ErrUnknownResource     = errors.New("unknown resource type")
	ErrRoleInUse           = errors.New("role is referenced by assignments")
)

// Permission is one (action, resource) entry of the static catalog.
type Permission struct {
	ID          uuid.UUID
	Action      Action
	Resource    Resource
	Description string
}

// Role is a named set of permissions. System roles are seeded once and
// protected from deletion; IsGlobal marks roles assignable without a
// concrete resource (only Admin).
type Role struct {
	ID          uuid.UUID
	Name        string
	Description string
	IsSystem    bool
	IsGlobal    bool
	Grants      []Grant
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Allows reports whether the role grants the requested permission.
func (r *Role) Allows(action Action, resource Resource) bool {
	for _, g := range r.Grants {
		if g.Action == action && g.Resource == resource {
			return true
		}
	}
	return false
}

// Assignment grants one role to one user over one scope. The quadruple
// (user, role, scope kind, scope id) is unique. Immutable assignments can
// never be updated or deleted; the only permitted transition is mutable
// to immutable, used by the starter-project backfill.
type Assignment struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	RoleID      uuid.UUID
	Scope       Scope
	IsImmutable bool
	CreatedAt   time.Time
	CreatedBy   *uuid.UUID
}

// Subject is the evaluation-side view of a user: identity plus the
// superuser flag that short-circuits every check.
type Subject struct {
	ID          uuid.UUID
	IsSuperuser bool
}

// RoleRepository defines the interface for role persistence
type RoleRepository interface {
	// Ensure inserts the role if its name is not taken yet, and fills the
	// ID from the persisted row either way. Used by the catalog seed.
	Ensure(ctx context.Context, role *Role) error

	// GetByID retrieves a role by ID, including its grants
	GetByID(ctx context.Context, id uuid.UUID) (*Role, error)

	// GetByName retrieves a role by canonical name, including its grants
	GetByName(ctx context.Context, name string) (*Role, error)

	// List retrieves all roles
	List(ctx context.Context) ([]*Role, error)
}

// PermissionRepository defines the interface for the permission catalog
type PermissionRepository interface {
	// Ensure inserts the permission if the (action, resource) pair is new,
	// and fills the ID from the persisted row either way.
	Ensure(ctx context.Context, permission *Permission) error

	// AttachToRole links a permission to a role. Already-linked pairs are
	// a no-op.
	AttachToRole(ctx context.Context, roleID, permissionID uuid.UUID) error

	// List retrieves the full catalog
	List(ctx context.Context) ([]*Permission, error)
}

// AssignmentFilter narrows ListAssignments results. Nil fields match all.
type AssignmentFilter struct {
	UserID    *uuid.UUID
	RoleID    *uuid.UUID
	ScopeKind *ScopeKind
}

// AssignmentRepository defines the interface for assignment persistence.
// The store's unique constraint on the assignment quadruple is the
// authoritative duplicate check; Create surfaces it as
// ErrDuplicateAssignment no matter which concurrent writer loses.
type AssignmentRepository interface {
	// Create persists a new assignment
	Create(ctx context.Context, a *Assignment) error

	// GetByID retrieves an assignment by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Assignment, error)

	// Find retrieves an assignment by its natural key
	Find(ctx context.Context, userID, roleID uuid.UUID, scope Scope) (*Assignment, error)

	// UpdateRole changes the role of an assignment. The immutability gate
	// lives in the manager, not here.
	UpdateRole(ctx context.Context, id, roleID uuid.UUID) error

	// SetImmutable pins an assignment. Transitioning to immutable is the
	// one mutation allowed on the backfill path.
	SetImmutable(ctx context.Context, id uuid.UUID) error

	// Delete removes an assignment
	Delete(ctx context.Context, id uuid.UUID) error

	// ListForUserAndScope retrieves all assignments a user holds on one
	// scope. This is the hot path of every permission check.
	ListForUserAndScope(ctx context.Context, userID uuid.UUID, scope Scope) ([]*Assignment, error)

	// List retrieves assignments matching the filter
	List(ctx context.Context, filter AssignmentFilter) ([]*Assignment, error)
}

// ParentResolver resolves the owning project of a flow for scope
// inheritance. ok is false for standalone flows and for flows that no
// longer exist; only infrastructure failures return an error.
type ParentResolver interface {
	FlowProject(ctx context.Context, flowID uuid.UUID) (projectID uuid.UUID, ok bool, err error)
}

// SeedStateRepository persists the catalog seed version marker so the
// seed runs exactly once per version instead of probing table contents
// on every boot.
type SeedStateRepository interface {
	Version(ctx context.Context) (int, error)
	SetVersion(ctx context.Context, version int) error
}
