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
	"strings"

	"github.com/google/uuid"
)

// ScopeKind discriminates the scope variant of an assignment.
type ScopeKind string

const (
	ScopeGlobal  ScopeKind = "global"
	ScopeProject ScopeKind = "project"
	ScopeFlow    ScopeKind = "flow"
)

// ParseScopeKind normalizes an external scope-type string.
func ParseScopeKind(s string) (ScopeKind, error) {
	switch ScopeKind(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeGlobal:
		return ScopeGlobal, nil
	case ScopeProject:
		return ScopeProject, nil
	case ScopeFlow:
		return ScopeFlow, nil
	}
	return "", ErrInvalidScope
}

// Scope is the tagged scope variant of an assignment: Global, Project(id)
// or Flow(id). The zero id is only legal for the global kind, and NewScope
// enforces the pairing at construction so no "global with id" or "project
// without id" value can flow through the engine or manager.
type Scope struct {
	kind ScopeKind
	id   uuid.UUID
}

// GlobalScope returns the scope covering all resources.
func GlobalScope() Scope {
	return Scope{kind: ScopeGlobal}
}

// ProjectScope returns the scope of a single project. The id must be a
// concrete project id; string input goes through NewScope instead.
func ProjectScope(id uuid.UUID) Scope {
	return Scope{kind: ScopeProject, id: id}
}

// FlowScope returns the scope of a single flow.
func FlowScope(id uuid.UUID) Scope {
	return Scope{kind: ScopeFlow, id: id}
}

// NewScope is the boundary constructor: it normalizes the kind string and
// validates the kind/id pairing. Global scope must have a nil id, project
// and flow scopes require one.
func NewScope(kind string, scopeID *uuid.UUID) (Scope, error) {
	k, err := ParseScopeKind(kind)
	if err != nil {
		return Scope{}, err
	}

	switch k {
	case ScopeGlobal:
		if scopeID != nil && *scopeID != uuid.Nil {
			return Scope{}, ErrInvalidScope
		}
		return GlobalScope(), nil
	default:
		if scopeID == nil || *scopeID == uuid.Nil {
			return Scope{}, ErrInvalidScope
		}
		return Scope{kind: k, id: *scopeID}, nil
	}
}

// Kind returns the scope discriminator.
func (s Scope) Kind() ScopeKind {
	return s.kind
}

// IsGlobal reports whether the scope covers all resources.
func (s Scope) IsGlobal() bool {
	return s.kind == ScopeGlobal
}

// ID returns the scoped resource id. ok is false for the global scope.
func (s Scope) ID() (uuid.UUID, bool) {
	if s.kind == ScopeGlobal {
		return uuid.Nil, false
	}
	return s.id, true
}

// IDPtr returns the scope id as a nullable pointer for persistence.
func (s Scope) IDPtr() *uuid.UUID {
	if s.kind == ScopeGlobal {
		return nil
	}
	id := s.id
	return &id
}

// Resource maps a scoped kind onto the permission resource it targets.
// ok is false for the global scope, which targets every resource.
func (s Scope) Resource() (Resource, bool) {
	switch s.kind {
	case ScopeProject:
		return ResourceProject, true
	case ScopeFlow:
		return ResourceFlow, true
	}
	return "", false
}

func (s Scope) String() string {
	if s.kind == ScopeGlobal {
		return string(ScopeGlobal)
	}
	return string(s.kind) + ":" + s.id.String()
}
