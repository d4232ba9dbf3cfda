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

	"github.com/CloudGeometry/LangBuilder/internal/resource"
)

type projectResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	OwnerID     *uuid.UUID `json:"owner_id,omitempty"`
	IsStarter   bool       `json:"is_starter"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toProjectResponse(p *resource.Project) projectResponse {
	return projectResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		IsStarter:   p.IsStarter,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// ListProjects returns the projects the caller may read
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())

	projects, err := h.resourceService.ListProjects(r.Context(), subject)
	if err != nil {
		respondResourceError(w, err)
		return
	}

	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	respondJSON(w, http.StatusOK, out)
}

// CreateProject creates a project owned by the caller
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	project, err := h.resourceService.CreateProject(r.Context(), subject, req.Name, req.Description)
	if err != nil {
		respondResourceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toProjectResponse(project))
}

// GetProject returns one project
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	project, err := h.resourceService.GetProject(r.Context(), subject, projectID)
	if err != nil {
		respondResourceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProjectResponse(project))
}

// UpdateProject renames or redescribes a project
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project, err := h.resourceService.UpdateProject(r.Context(), subject, projectID, req.Name, req.Description)
	if err != nil {
		respondResourceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProjectResponse(project))
}

// DeleteProject removes a project
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	if err := h.resourceService.DeleteProject(r.Context(), subject, projectID); err != nil {
		respondResourceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondResourceError maps resource service errors onto HTTP statuses.
// Permission denial maps to 403 before any 404 can leak existence.
func respondResourceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resource.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, resource.ErrProjectNotFound):
		respondError(w, http.StatusNotFound, "project not found")
	case errors.Is(err, resource.ErrFlowNotFound):
		respondError(w, http.StatusNotFound, "flow not found")
	case errors.Is(err, resource.ErrStarterProtected):
		respondError(w, http.StatusForbidden, "starter project cannot be modified")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
