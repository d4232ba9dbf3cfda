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
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/CloudGeometry/LangBuilder/internal/observability/metrics"
)

// MaxBatchSize bounds CheckBatch to cap the cost of a single request.
const MaxBatchSize = 100

// ErrBatchTooLarge is returned when a batch check exceeds MaxBatchSize.
var ErrBatchTooLarge = errors.New("too many permission checks in one batch")

// CheckRequest is one entry of a batch permission check. ResourceID may be
// uuid.Nil when probing a purely global capability.
type CheckRequest struct {
	Action     Action
	Resource   Resource
	ResourceID uuid.UUID
}

// Engine decides whether a subject may perform an action on a resource.
//
// Evaluation short-circuits in a fixed order: superuser bypass, global
// roles, the direct resource scope, then project inheritance for flows.
// Multiple roles on one scope combine as a union of grants. The engine
// returns business outcomes as a plain bool and reserves errors for store
// failures, which must surface to the caller rather than read as a deny.
type Engine struct {
	assignments AssignmentRepository
	roles       RoleRepository
	parents     ParentResolver

	checks  metric.Int64Counter
	latency metric.Float64Histogram
}

// NewEngine creates a new evaluation engine. meter may be nil in tests.
func NewEngine(assignments AssignmentRepository, roles RoleRepository, parents ParentResolver, meter *metrics.Meter) *Engine {
	e := &Engine{
		assignments: assignments,
		roles:       roles,
		parents:     parents,
	}

	if meter != nil {
		e.checks, _ = meter.CreateCounter(
			"rbac_permission_checks_total",
			"Number of permission checks evaluated, by decision",
		)
		e.latency, _ = meter.CreateHistogram(
			"rbac_permission_check_duration",
			"Permission check evaluation time",
			"ms",
		)
	}

	return e
}

// CanAccess reports whether subject may perform action on the resource
// identified by resourceID. resourceID may be uuid.Nil only when checking
// a purely global capability (e.g. "may this user create projects at all").
func (e *Engine) CanAccess(ctx context.Context, subject Subject, action Action, resource Resource, resourceID uuid.UUID) (bool, error) {
	start := time.Now()
	allowed, err := e.evaluate(ctx, subject, action, resource, resourceID)
	if err != nil {
		return false, err
	}
	e.record(ctx, allowed, time.Since(start))
	return allowed, nil
}

func (e *Engine) evaluate(ctx context.Context, subject Subject, action Action, resource Resource, resourceID uuid.UUID) (bool, error) {
	// 1. Superusers bypass everything.
	if subject.IsSuperuser {
		return true, nil
	}

	// 2. Global roles cover every resource of the kinds they grant.
	granted, _, err := e.scopeGrants(ctx, subject.ID, GlobalScope(), action, resource)
	if err != nil {
		return false, err
	}
	if granted {
		return true, nil
	}

	if resourceID == uuid.Nil {
		return false, nil
	}

	// 3. Direct assignment on the resource itself.
	direct := directScope(resource, resourceID)
	granted, held, err := e.scopeGrants(ctx, subject.ID, direct, action, resource)
	if err != nil {
		return false, err
	}
	if granted {
		return true, nil
	}

	// 4. Project-level assignments carry down to contained flows, unless
	// the user holds a flow-specific assignment on this flow: that one
	// takes precedence for this flow alone. Sibling flows without their
	// own assignment still inherit.
	if resource == ResourceFlow && !held {
		projectID, ok, err := e.parents.FlowProject(ctx, resourceID)
		if err != nil {
			return false, fmt.Errorf("failed to resolve flow parent: %w", err)
		}
		if ok {
			granted, _, err = e.scopeGrants(ctx, subject.ID, ProjectScope(projectID), action, resource)
			if err != nil {
				return false, err
			}
			if granted {
				return true, nil
			}
		}
	}

	return false, nil
}

// scopeGrants reports whether any role the user holds on the given scope
// grants (action, resource), and whether the user holds any assignment on
// that scope at all.
func (e *Engine) scopeGrants(ctx context.Context, userID uuid.UUID, scope Scope, action Action, resource Resource) (granted, held bool, err error) {
	assignments, err := e.assignments.ListForUserAndScope(ctx, userID, scope)
	if err != nil {
		return false, false, fmt.Errorf("failed to list assignments: %w", err)
	}

	for _, a := range assignments {
		role, err := e.roles.GetByID(ctx, a.RoleID)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				// Dangling role reference: treat as not granting.
				continue
			}
			return false, true, fmt.Errorf("failed to load role: %w", err)
		}
		if role.Allows(action, resource) {
			return true, true, nil
		}
	}

	return false, len(assignments) > 0, nil
}

// CanAccessScope reports whether the subject may perform action on
// resource within an explicit scope. Used for create operations, where
// the resource does not exist yet and the relevant scope is the
// enclosing project.
func (e *Engine) CanAccessScope(ctx context.Context, subject Subject, action Action, resource Resource, scope Scope) (bool, error) {
	if subject.IsSuperuser {
		return true, nil
	}

	granted, _, err := e.scopeGrants(ctx, subject.ID, GlobalScope(), action, resource)
	if err != nil {
		return false, err
	}
	if granted || scope.IsGlobal() {
		return granted, nil
	}

	granted, _, err = e.scopeGrants(ctx, subject.ID, scope, action, resource)
	if err != nil {
		return false, err
	}
	return granted, nil
}

// CheckBatch evaluates up to MaxBatchSize permission checks for one
// subject and returns the decisions in request order.
func (e *Engine) CheckBatch(ctx context.Context, subject Subject, requests []CheckRequest) ([]bool, error) {
	if len(requests) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	results := make([]bool, len(requests))
	for i, req := range requests {
		allowed, err := e.CanAccess(ctx, subject, req.Action, req.Resource, req.ResourceID)
		if err != nil {
			return nil, err
		}
		results[i] = allowed
	}
	return results, nil
}

// HasGlobalAdmin reports whether the subject is a superuser or holds a
// global assignment to a global role. Used by list filtering and by the
// administrative gate on the assignment API.
func (e *Engine) HasGlobalAdmin(ctx context.Context, subject Subject) (bool, error) {
	if subject.IsSuperuser {
		return true, nil
	}

	assignments, err := e.assignments.ListForUserAndScope(ctx, subject.ID, GlobalScope())
	if err != nil {
		return false, fmt.Errorf("failed to list global assignments: %w", err)
	}

	for _, a := range assignments {
		role, err := e.roles.GetByID(ctx, a.RoleID)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				continue
			}
			return false, fmt.Errorf("failed to load role: %w", err)
		}
		if role.IsGlobal {
			return true, nil
		}
	}
	return false, nil
}

func directScope(resource Resource, resourceID uuid.UUID) Scope {
	if resource == ResourceProject {
		return ProjectScope(resourceID)
	}
	return FlowScope(resourceID)
}

func (e *Engine) record(ctx context.Context, allowed bool, elapsed time.Duration) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	if e.checks != nil {
		e.checks.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
	}
	if e.latency != nil {
		e.latency.Record(ctx, float64(elapsed.Microseconds())/1000.0)
	}
}
