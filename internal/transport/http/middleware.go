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
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/CloudGeometry/LangBuilder/internal/audit"
	"github.com/CloudGeometry/LangBuilder/internal/observability/logger"
	"github.com/CloudGeometry/LangBuilder/internal/rbac"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware validates the bearer token and loads the user fresh
// from the store, so a deactivated account or a revoked superuser flag
// takes effect immediately rather than at token expiry.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		userID, err := h.tokens.Verify(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		user, err := h.identityService.GetUser(r.Context(), userID)
		if err != nil || !user.IsActive {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		subject := rbac.Subject{ID: user.ID, IsSuperuser: user.IsSuperuser}
		ctx := context.WithValue(r.Context(), subjectKey, subject)
		ctx = context.WithValue(ctx, usernameKey, user.Username)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly gates the assignment administration API: superusers and
// global Admins pass, everyone else gets 403.
func (h *Handler) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := GetSubject(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		admin, err := h.engine.HasGlobalAdmin(r.Context(), subject)
		if err != nil {
			slog.ErrorContext(r.Context(), "admin gate check failed", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "authorization check failed")
			return
		}
		if !admin {
			h.auditLogger.Log(r.Context(), audit.Event{
				Type:      audit.TypeAdminGateRejected,
				ActorID:   subject.ID.String(),
				Resource:  r.URL.Path,
				IPAddress: getClientIP(r),
				Metadata:  map[string]any{"username": GetUsername(r.Context())},
			})
			respondError(w, http.StatusForbidden, "administrator access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
