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
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/CloudGeometry/LangBuilder/internal/audit"
	"github.com/CloudGeometry/LangBuilder/internal/identity"
	"github.com/CloudGeometry/LangBuilder/internal/rbac"
	"github.com/CloudGeometry/LangBuilder/internal/resource"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	resourceService *resource.Service
	manager         *rbac.Manager
	engine          *rbac.Engine
	tokens          *identity.TokenIssuer
	auditLogger     audit.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	resourceService *resource.Service,
	manager *rbac.Manager,
	engine *rbac.Engine,
	tokens *identity.TokenIssuer,
	auditLogger audit.Logger,
) *Handler {
	return &Handler{
		identityService: identityService,
		resourceService: resourceService,
		manager:         manager,
		engine:          engine,
		tokens:          tokens,
		auditLogger:     auditLogger,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.ListProjects)
				r.Post("/", h.CreateProject)
				r.Get("/{projectID}", h.GetProject)
				r.Patch("/{projectID}", h.UpdateProject)
				r.Delete("/{projectID}", h.DeleteProject)
			})

			r.Route("/flows", func(r chi.Router) {
				r.Get("/", h.ListFlows)
				r.Post("/", h.CreateFlow)
				r.Get("/{flowID}", h.GetFlow)
				r.Patch("/{flowID}", h.UpdateFlow)
				r.Delete("/{flowID}", h.DeleteFlow)
			})

			r.Route("/rbac", func(r chi.Router) {
				r.Post("/permissions/check", h.CheckPermissions)

				// Administration (superuser or global Admin)
				r.Group(func(r chi.Router) {
					r.Use(h.AdminOnly)
					r.Get("/roles", h.ListRoles)
					r.Get("/assignments", h.ListAssignments)
					r.Post("/assignments", h.CreateAssignment)
					r.Patch("/assignments/{assignmentID}", h.UpdateAssignment)
					r.Delete("/assignments/{assignmentID}", h.DeleteAssignment)
				})
			})
		})
	})

	return r
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "langbuilder",
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
