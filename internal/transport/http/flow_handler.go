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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/CloudGeometry/LangBuilder/internal/resource"
)

type flowResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	OwnerID     string     `json:"owner_id"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toFlowResponse(f *resource.Flow) flowResponse {
	return flowResponse{
		ID:          f.ID.String(),
		Name:        f.Name,
		Description: f.Description,
		OwnerID:     f.OwnerID.String(),
		ProjectID:   f.ProjectID,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

type createFlowRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ProjectID   *uuid.UUID `json:"project_id"`
}

type updateFlowRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// ListFlows returns the flows the caller may read
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())

	flows, err := h.resourceService.ListFlows(r.Context(), subject)
	if err != nil {
		respondResourceError(w, err)
		return
	}

	out := make([]flowResponse, 0, len(flows))
	for _, f := range flows {
		out = append(out, toFlowResponse(f))
	}
	respondJSON(w, http.StatusOK, out)
}

// CreateFlow creates a flow, standalone or inside a project
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())

	var req createFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	flow, err := h.resourceService.CreateFlow(r.Context(), subject, req.Name, req.Description, req.ProjectID)
	if err != nil {
		respondResourceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toFlowResponse(flow))
}

// GetFlow returns one flow
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())
	flowID, err := uuid.Parse(chi.URLParam(r, "flowID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid flow id")
		return
	}

	flow, err := h.resourceService.GetFlow(r.Context(), subject, flowID)
	if err != nil {
		respondResourceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toFlowResponse(flow))
}

// UpdateFlow renames or redescribes a flow
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())
	flowID, err := uuid.Parse(chi.URLParam(r, "flowID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid flow id")
		return
	}

	var req updateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flow, err := h.resourceService.UpdateFlow(r.Context(), subject, flowID, req.Name, req.Description)
	if err != nil {
		respondResourceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toFlowResponse(flow))
}

// DeleteFlow removes a flow
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())
	flowID, err := uuid.Parse(chi.URLParam(r, "flowID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid flow id")
		return
	}

	if err := h.resourceService.DeleteFlow(r.Context(), subject, flowID); err != nil {
		respondResourceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
