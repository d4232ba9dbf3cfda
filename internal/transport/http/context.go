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

	"github.com/CloudGeometry/LangBuilder/internal/rbac"
)

type contextKey string

const (
	subjectKey  contextKey = "subject"
	usernameKey contextKey = "username"
)

// GetSubject retrieves the authenticated subject from context. ok is
// false on unauthenticated requests.
func GetSubject(ctx context.Context) (rbac.Subject, bool) {
	val, ok := ctx.Value(subjectKey).(rbac.Subject)
	return val, ok
}

// GetUsername retrieves the authenticated username from context.
func GetUsername(ctx context.Context) string {
	if val, ok := ctx.Value(usernameKey).(string); ok {
		return val
	}
	return ""
}
