package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"workhub/internal/types"
)

func TestRoleCan(t *testing.T) {
	tests := []struct {
		role types.WorkspaceRole
		cap  Capability
		want bool
	}{
		{types.WorkspaceRoleManager, CapManageWorkspace, true},
		{types.WorkspaceRoleManager, CapInviteUsers, true},
		{types.WorkspaceRoleManager, CapEditContent, true},
		{types.WorkspaceRoleManager, CapViewContent, true},
		{types.WorkspaceRoleEditor, CapManageWorkspace, false},
		{types.WorkspaceRoleEditor, CapInviteUsers, false},
		{types.WorkspaceRoleEditor, CapEditContent, true},
		{types.WorkspaceRoleEditor, CapViewContent, true},
		{types.WorkspaceRoleViewer, CapManageWorkspace, false},
		{types.WorkspaceRoleViewer, CapEditContent, false},
		{types.WorkspaceRoleViewer, CapViewContent, true},
		{types.WorkspaceRole("unknown"), CapViewContent, false},
		{types.WorkspaceRole(""), CapViewContent, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RoleCan(tt.role, tt.cap),
			"role=%s cap=%s", tt.role, tt.cap)
	}
}

func TestCanManageWorkspace_ImplicitManager(t *testing.T) {
	r, memberships, workspaces, orgs := setupResolver()

	workspaces.On("GetByID", mock.Anything, int64(10)).
		Return(&types.Workspace{ID: 10, OrganizationID: 1}, nil)
	orgs.On("GetByID", mock.Anything, int64(1)).Return(&types.Organization{ID: 1}, nil)
	memberships.On("GetOrganizationUser", mock.Anything, int64(1), int64(7)).
		Return(orgUser(1, 7, types.OrgRoleOwner), nil)

	ok, err := r.CanManageWorkspace(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanEditContent_ViewerDenied(t *testing.T) {
	r, memberships, workspaces, orgs := setupResolver()

	workspaces.On("GetByID", mock.Anything, int64(10)).
		Return(&types.Workspace{ID: 10, OrganizationID: 1}, nil)
	orgs.On("GetByID", mock.Anything, int64(1)).Return(&types.Organization{ID: 1}, nil)
	memberships.On("GetOrganizationUser", mock.Anything, int64(1), int64(7)).
		Return(orgUser(1, 7, types.OrgRoleMember), nil)
	memberships.On("GetWorkspaceUser", mock.Anything, int64(10), int64(7)).
		Return(wsUser(10, 7, types.WorkspaceRoleViewer), nil)

	ok, err := r.CanEditContent(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanManageBilling_OwnerOnly(t *testing.T) {
	tests := []struct {
		name string
		role types.OrgRole
		want bool
	}{
		{"owner", types.OrgRoleOwner, true},
		{"admin", types.OrgRoleAdmin, false},
		{"member", types.OrgRoleMember, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, memberships, _, orgs := setupResolver()

			orgs.On("GetByID", mock.Anything, int64(1)).Return(&types.Organization{ID: 1}, nil)
			memberships.On("GetOrganizationUser", mock.Anything, int64(1), int64(7)).
				Return(orgUser(1, 7, tt.role), nil)

			ok, err := r.CanManageBilling(context.Background(), 7, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCanManageOrganization_AdminAllowed(t *testing.T) {
	r, memberships, _, orgs := setupResolver()

	orgs.On("GetByID", mock.Anything, int64(1)).Return(&types.Organization{ID: 1}, nil)
	memberships.On("GetOrganizationUser", mock.Anything, int64(1), int64(7)).
		Return(orgUser(1, 7, types.OrgRoleAdmin), nil)

	ok, err := r.CanManageOrganization(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}
