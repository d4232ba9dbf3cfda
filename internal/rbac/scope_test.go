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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudGeometry/LangBuilder/internal/id"
)

func TestNewScope(t *testing.T) {
	resourceID := id.New()

	tests := []struct {
		name    string
		kind    string
		id      *uuid.UUID
		want    ScopeKind
		wantErr error
	}{
		{"global without id", "global", nil, ScopeGlobal, nil},
		{"global uppercase", " GLOBAL ", nil, ScopeGlobal, nil},
		{"project with id", "project", &resourceID, ScopeProject, nil},
		{"flow with id", "Flow", &resourceID, ScopeFlow, nil},
		{"global with id", "global", &resourceID, "", ErrInvalidScope},
		{"project without id", "project", nil, "", ErrInvalidScope},
		{"flow with nil uuid", "flow", &uuid.Nil, "", ErrInvalidScope},
		{"unknown kind", "workspace", &resourceID, "", ErrInvalidScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := NewScope(tt.kind, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, scope.Kind())
		})
	}
}

func TestScopeAccessors(t *testing.T) {
	resourceID := id.New()

	global := GlobalScope()
	assert.True(t, global.IsGlobal())
	assert.Nil(t, global.IDPtr())
	_, ok := global.ID()
	assert.False(t, ok)
	_, ok = global.Resource()
	assert.False(t, ok)
	assert.Equal(t, "global", global.String())

	project := ProjectScope(resourceID)
	got, ok := project.ID()
	assert.True(t, ok)
	assert.Equal(t, resourceID, got)
	res, ok := project.Resource()
	assert.True(t, ok)
	assert.Equal(t, ResourceProject, res)
	assert.Equal(t, "project:"+resourceID.String(), project.String())

	flow := FlowScope(resourceID)
	res, ok = flow.Resource()
	assert.True(t, ok)
	assert.Equal(t, ResourceFlow, res)
}

func TestParseAction(t *testing.T) {
	got, err := ParseAction(" Read ")
	require.NoError(t, err)
	assert.Equal(t, ActionRead, got)

	_, err = ParseAction("execute")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestParseResource(t *testing.T) {
	got, err := ParseResource("FLOW")
	require.NoError(t, err)
	assert.Equal(t, ResourceFlow, got)

	_, err = ParseResource("component")
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestNormalizeRoleName(t *testing.T) {
	got, err := NormalizeRoleName("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, got)

	got, err = NormalizeRoleName(" VIEWER ")
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, got)

	_, err = NormalizeRoleName("maintainer")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestRoleGrants(t *testing.T) {
	assert.Len(t, RoleGrants(RoleAdmin), 8)
	assert.Len(t, RoleGrants(RoleOwner), 8)
	assert.Len(t, RoleGrants(RoleEditor), 6)
	assert.Len(t, RoleGrants(RoleViewer), 2)
	assert.Nil(t, RoleGrants("Wizard"))

	for _, g := range RoleGrants(RoleEditor) {
		assert.NotEqual(t, ActionDelete, g.Action)
	}
	for _, g := range RoleGrants(RoleViewer) {
		assert.Equal(t, ActionRead, g.Action)
	}
}
