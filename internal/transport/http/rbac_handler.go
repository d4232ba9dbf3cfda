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
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/CloudGeometry/LangBuilder/internal/rbac"
)

type assignmentResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	RoleID      string     `json:"role_id"`
	ScopeType   string     `json:"scope_type"`
	ScopeID     *uuid.UUID `json:"scope_id,omitempty"`
	IsImmutable bool       `json:"is_immutable"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty"`
}

func toAssignmentResponse(a *rbac.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:          a.ID.String(),
		UserID:      a.UserID.String(),
		RoleID:      a.RoleID.String(),
		ScopeType:   string(a.Scope.Kind()),
		ScopeID:     a.Scope.IDPtr(),
		IsImmutable: a.IsImmutable,
		CreatedAt:   a.CreatedAt,
		CreatedBy:   a.CreatedBy,
	}
}

type createAssignmentRequest struct {
	UserID    uuid.UUID  `json:"user_id"`
	Role      string     `json:"role"`
	ScopeType string     `json:"scope_type"`
	ScopeID   *uuid.UUID `json:"scope_id"`
}

type updateAssignmentRequest struct {
	Role string `json:"role"`
}

// CreateAssignment grants a role to a user over a scope
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())

	var req createAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == uuid.Nil || req.Role == "" {
		respondError(w, http.StatusBadRequest, "user_id and role are required")
		return
	}

	scope, err := rbac.NewScope(req.ScopeType, req.ScopeID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid scope")
		return
	}

	assignment, err := h.manager.CreateAssignment(r.Context(), req.UserID, req.Role, scope, &subject.ID)
	if err != nil {
		respondRBACError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toAssignmentResponse(assignment))
}

// UpdateAssignment changes the role of an assignment
func (h *Handler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())
	assignmentID, err := uuid.Parse(chi.URLParam(r, "assignmentID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid assignment id")
		return
	}

	var req updateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == "" {
		respondError(w, http.StatusBadRequest, "role is required")
		return
	}

	assignment, err := h.manager.UpdateAssignment(r.Context(), assignmentID, req.Role, &subject.ID)
	if err != nil {
		respondRBACError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toAssignmentResponse(assignment))
}

// DeleteAssignment revokes an assignment
func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())
	assignmentID, err := uuid.Parse(chi.URLParam(r, "assignmentID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid assignment id")
		return
	}

	if err := h.manager.DeleteAssignment(r.Context(), assignmentID, &subject.ID); err != nil {
		respondRBACError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAssignments returns assignments, optionally filtered by user_id,
// role and scope_type query parameters.
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	var userID *uuid.UUID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		userID = &parsed
	}

	var scopeKind *rbac.ScopeKind
	if raw := r.URL.Query().Get("scope_type"); raw != "" {
		kind, err := rbac.ParseScopeKind(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid scope_type")
			return
		}
		scopeKind = &kind
	}

	assignments, err := h.manager.ListAssignments(r.Context(), userID, r.URL.Query().Get("role"), scopeKind)
	if err != nil {
		respondRBACError(w, err)
		return
	}

	out := make([]assignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, toAssignmentResponse(a))
	}
	respondJSON(w, http.StatusOK, out)
}

type roleResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	IsSystem    bool     `json:"is_system"`
	IsGlobal    bool     `json:"is_global"`
	Permissions []string `json:"permissions"`
}

// ListRoles returns the role catalog with permissions
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.manager.ListRoles(r.Context())
	if err != nil {
		respondRBACError(w, err)
		return
	}

	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		perms := make([]string, 0, len(role.Grants))
		for _, g := range role.Grants {
			perms = append(perms, string(g.Action)+":"+string(g.Resource))
		}
		out = append(out, roleResponse{
			ID:          role.ID.String(),
			Name:        role.Name,
			Description: role.Description,
			IsSystem:    role.IsSystem,
			IsGlobal:    role.IsGlobal,
			Permissions: perms,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

type checkRequest struct {
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID uuid.UUID `json:"resource_id"`
}

type checkResponse struct {
	Results []bool `json:"results"`
}

// CheckPermissions evaluates a batch of permission checks for the caller
func (h *Handler) CheckPermissions(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())

	var reqs []checkRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(reqs) > rbac.MaxBatchSize {
		respondError(w, http.StatusBadRequest, "too many checks in one request")
		return
	}

	checks := make([]rbac.CheckRequest, 0, len(reqs))
	for _, req := range reqs {
		action, err := rbac.ParseAction(req.Action)
		if err != nil {
			respondError(w, http.StatusBadRequest, "unknown action: "+req.Action)
			return
		}
		res, err := rbac.ParseResource(req.Resource)
		if err != nil {
			respondError(w, http.StatusBadRequest, "unknown resource: "+req.Resource)
			return
		}
		checks = append(checks, rbac.CheckRequest{
			Action:     action,
			Resource:   res,
			ResourceID: req.ResourceID,
		})
	}

	results, err := h.engine.CheckBatch(r.Context(), subject, checks)
	if err != nil {
		respondRBACError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkResponse{Results: results})
}

// respondRBACError maps rbac errors onto HTTP statuses
func respondRBACError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rbac.ErrRoleNotFound):
		respondError(w, http.StatusNotFound, "role not found")
	case errors.Is(err, rbac.ErrAssignmentNotFound):
		respondError(w, http.StatusNotFound, "assignment not found")
	case errors.Is(err, rbac.ErrDuplicateAssignment):
		respondError(w, http.StatusConflict, "assignment already exists")
	case errors.Is(err, rbac.ErrImmutableAssignment):
		respondError(w, http.StatusForbidden, "assignment is immutable")
	case errors.Is(err, rbac.ErrInvalidScope):
		respondError(w, http.StatusBadRequest, "invalid scope")
	case errors.Is(err, rbac.ErrBatchTooLarge):
		respondError(w, http.StatusBadRequest, "too many checks in one request")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
