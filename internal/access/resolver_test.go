package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"workhub/internal/types"
)

// --- Mock implementations ---

type mockMembershipDB struct {
	mock.Mock
}

func (m *mockMembershipDB) GetOrganizationUser(ctx context.Context, orgID, userID int64) (*types.OrganizationUser, error) {
	args := m.Called(ctx, orgID, userID)
	if v := args.Get(0); v != nil {
		return v.(*types.OrganizationUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMembershipDB) GetWorkspaceUser(ctx context.Context, workspaceID, userID int64) (*types.WorkspaceUser, error) {
	args := m.Called(ctx, workspaceID, userID)
	if v := args.Get(0); v != nil {
		return v.(*types.WorkspaceUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMembershipDB) ListOrganizationMemberships(ctx context.Context, userID int64) ([]types.OrganizationUser, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]types.OrganizationUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMembershipDB) ListWorkspaceMemberships(ctx context.Context, userID int64) ([]types.WorkspaceUser, []types.Workspace, error) {
	args := m.Called(ctx, userID)
	var edges []types.WorkspaceUser
	var workspaces []types.Workspace
	if v := args.Get(0); v != nil {
		edges = v.([]types.WorkspaceUser)
	}
	if v := args.Get(1); v != nil {
		workspaces = v.([]types.Workspace)
	}
	return edges, workspaces, args.Error(2)
}

type mockWorkspaceDB struct {
	mock.Mock
}

func (m *mockWorkspaceDB) GetByID(ctx context.Context, id int64) (*types.Workspace, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*types.Workspace), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWorkspaceDB) ListByOrganizations(ctx context.Context, orgIDs []int64) ([]types.Workspace, error) {
	args := m.Called(ctx, orgIDs)
	if v := args.Get(0); v != nil {
		return v.([]types.Workspace), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockOrgDB struct {
	mock.Mock
}

func (m *mockOrgDB) GetByID(ctx context.Context, id int64) (*types.Organization, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*types.Organization), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- Helpers ---

func setupResolver() (*Resolver, *mockMembershipDB, *mockWorkspaceDB, *mockOrgDB) {
	memberships := new(mockMembershipDB)
	workspaces := new(mockWorkspaceDB)
	orgs := new(mockOrgDB)
	return NewResolver(memberships, workspaces, orgs, nil), memberships, workspaces, orgs
}

func notFoundOrg() error {
	return types.NewAppError(types.ErrCodeNotFoundOrg, "organization not found", nil)
}

func notFoundWorkspace() error {
	return types.NewAppError(types.ErrCodeNotFoundWorkspace, "workspace not found", nil)
}

func orgUser(orgID, userID int64, role types.OrgRole) *types.OrganizationUser {
	return &types.OrganizationUser{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		Status:         types.MembershipActive,
	}
}

func wsUser(workspaceID, userID int64, role types.WorkspaceRole) *types.WorkspaceUser {
	return &types.WorkspaceUser{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		Status:      types.MembershipActive,
	}
}

// --- ResolveOrganizationRole ---

func TestResolveOrganizationRole_Member(t *testing.T) {
	r, memberships, _, orgs := setupResolver()

	orgs.On("GetByID", mock.Anything, int64(1)).Return(&types.Organization{ID: 1}, nil)
	memberships.On("GetOrganizationUser", mock.Anything, int64(1), int64(7)).
		Return(orgUser(1, 7, types.OrgRoleAdmin), nil)

	role, ok, err := r.ResolveOrganizationRole(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.OrgRoleAdmin, role)
}

func TestResolveOrganizationRole_NotAMember(t *testing.T) {
	r, memberships, _, orgs := setupResolver()

	orgs.On("GetByID", mock.Anything, int64(1)).Return(&types.Organization{ID: 1}, nil)
	memberships.On("GetOrganizationUser", mock.Anything, int64(1), int64(7)).Return(nil, nil)

	_, ok, err := r.ResolveOrganizationRole(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveOrganizationRole_DeletedOrgDeniesWithoutError(t *testing.T) {
	r, _, _, orgs := setupResolver()

	orgs.On("GetByID", mock.Anything, int64(1)).Return(nil, notFoundOrg())

	_, ok, err := r.ResolveOrganizationRole(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

// --- ResolveWorkspaceRole ---

func TestResolveWorkspaceRole_OrgAdminGetsManagerWithoutDirectLookup(t *testing.T) {
	r, memberships, workspaces, orgs := setupResolver()

	workspaces.On("GetByID", mock.Anything, int64(10)).
		Return(&types.Workspace{ID: 10, OrganizationID: 1}, nil)
	orgs.On("GetByID", mock.Anything, int64(1)).Return(&types.Organization{ID: 1}, nil)
	memberships.On("GetOrganizationUser", mock.Anything, int64(1), int64(7)).
		Return(orgUser(1, 7, types.OrgRoleAdmin), nil)

	role, ok, err := r.ResolveWorkspaceRole(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.WorkspaceRoleManager, role)

	// The direct row is never consulted: implicit access cannot be
	// downgraded by a weaker workspace assignment.
	memberships.AssertNotCalled(t, "GetWorkspaceUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveWorkspaceRole_OwnerGetsManager(t *testing.T) {
	r, memberships, workspaces, orgs := setupResolver()

	workspaces.On("GetByID", mock.Anything, int64(10)).
		Return(&types.Workspace{ID: 10, OrganizationID: 1}, nil)
	orgs.On("GetByID", mock.Anything, int64(1)).Return(&types.Organization{ID: 1}, nil)
	memberships.On("GetOrganizationUser", mock.Anything, int64(1), int64(7)).
		Return(orgUser(1, 7, types.OrgRoleOwner), nil)

	role, ok, err := r.ResolveWorkspaceRole(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.WorkspaceRoleManager, role)
}

func TestResolveWorkspaceRole_OrgMemberFallsThroughToDirectRow(t *testing.T) {
	r, memberships, workspaces, orgs := setupResolver()

	workspaces.On("GetByID", mock.Anything, int64(10)).
		Return(&types.Workspace{ID: 10, OrganizationID: 1}, nil)
	orgs.On("GetByID", mock.Anything, int64(1)).Return(&types.Organization{ID: 1}, nil)
	memberships.On("GetOrganizationUser", mock.Anything, int64(1), int64(7)).
		Return(orgUser(1, 7, types.OrgRoleMember), nil)
	memberships.On("GetWorkspaceUser", mock.Anything, int64(10), int64(7)).
		Return(wsUser(10, 7, types.WorkspaceRoleEditor), nil)

	role, ok, err := r.ResolveWorkspaceRole(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.WorkspaceRoleEditor, role)
}

func TestResolveWorkspaceRole_NoMembershipDenies(t *testing.T) {
	r, memberships, workspaces, orgs := setupResolver()

	workspaces.On("GetByID", mock.Anything, int64(10)).
		Return(&types.Workspace{ID: 10, OrganizationID: 1}, nil)
	orgs.On("GetByID", mock.Anything, int64(1)).Return(&types.Organization{ID: 1}, nil)
	memberships.On("GetOrganizationUser", mock.Anything, int64(1), int64(7)).Return(nil, nil)
	memberships.On("GetWorkspaceUser", mock.Anything, int64(10), int64(7)).Return(nil, nil)

	_, ok, err := r.ResolveWorkspaceRole(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveWorkspaceRole_MissingWorkspaceDenies(t *testing.T) {
	r, _, workspaces, _ := setupResolver()

	workspaces.On("GetByID", mock.Anything, int64(10)).Return(nil, notFoundWorkspace())

	_, ok, err := r.ResolveWorkspaceRole(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveWorkspaceRole_OrphanedWorkspaceDenies(t *testing.T) {
	r, _, workspaces, orgs := setupResolver()

	workspaces.On("GetByID", mock.Anything, int64(10)).
		Return(&types.Workspace{ID: 10, OrganizationID: 1}, nil)
	orgs.On("GetByID", mock.Anything, int64(1)).Return(nil, notFoundOrg())

	_, ok, err := r.ResolveWorkspaceRole(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveWorkspaceRole_InfrastructureErrorPropagates(t *testing.T) {
	r, _, workspaces, _ := setupResolver()

	dbErr := errors.New("connection refused")
	workspaces.On("GetByID", mock.Anything, int64(10)).Return(nil, dbErr)

	_, ok, err := r.ResolveWorkspaceRole(context.Background(), 7, 10)
	assert.False(t, ok)
	assert.ErrorIs(t, err, dbErr)
}

// --- AccessibleWorkspaces ---

func TestAccessibleWorkspaces_DirectEntryWinsOverImplicit(t *testing.T) {
	r, memberships, workspaces, _ := setupResolver()

	// Direct viewer edge in workspace 10, which also belongs to an org the
	// user administers. The direct entry must win and appear once.
	memberships.On("ListWorkspaceMemberships", mock.Anything, int64(7)).Return(
		[]types.WorkspaceUser{*wsUser(10, 7, types.WorkspaceRoleViewer)},
		[]types.Workspace{{ID: 10, OrganizationID: 1, Name: "Alpha"}},
		nil,
	)
	memberships.On("ListOrganizationMemberships", mock.Anything, int64(7)).Return(
		[]types.OrganizationUser{*orgUser(1, 7, types.OrgRoleAdmin)},
		nil,
	)
	workspaces.On("ListByOrganizations", mock.Anything, []int64{1}).Return(
		[]types.Workspace{
			{ID: 10, OrganizationID: 1, Name: "Alpha"},
			{ID: 11, OrganizationID: 1, Name: "Beta"},
		},
		nil,
	)

	result, err := r.AccessibleWorkspaces(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, int64(10), result[0].Workspace.ID)
	assert.Equal(t, types.WorkspaceRoleViewer, result[0].Role)
	assert.True(t, result[0].Direct)

	assert.Equal(t, int64(11), result[1].Workspace.ID)
	assert.Equal(t, types.WorkspaceRoleManager, result[1].Role)
	assert.False(t, result[1].Direct)
}

func TestAccessibleWorkspaces_MemberOnlySkipsOrgExpansion(t *testing.T) {
	r, memberships, workspaces, _ := setupResolver()

	memberships.On("ListWorkspaceMemberships", mock.Anything, int64(7)).Return(
		[]types.WorkspaceUser{*wsUser(10, 7, types.WorkspaceRoleEditor)},
		[]types.Workspace{{ID: 10, OrganizationID: 1}},
		nil,
	)
	memberships.On("ListOrganizationMemberships", mock.Anything, int64(7)).Return(
		[]types.OrganizationUser{*orgUser(1, 7, types.OrgRoleMember)},
		nil,
	)

	result, err := r.AccessibleWorkspaces(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, result[0].Direct)

	workspaces.AssertNotCalled(t, "ListByOrganizations", mock.Anything, mock.Anything)
}

func TestAccessibleWorkspaces_NoMemberships(t *testing.T) {
	r, memberships, _, _ := setupResolver()

	memberships.On("ListWorkspaceMemberships", mock.Anything, int64(7)).Return(nil, nil, nil)
	memberships.On("ListOrganizationMemberships", mock.Anything, int64(7)).Return(nil, nil)

	result, err := r.AccessibleWorkspaces(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, result)
}

// --- IsDirectMember ---

func TestIsDirectMember_DirectRow(t *testing.T) {
	r, memberships, _, _ := setupResolver()

	memberships.On("GetWorkspaceUser", mock.Anything, int64(10), int64(7)).
		Return(wsUser(10, 7, types.WorkspaceRoleViewer), nil)

	direct, err := r.IsDirectMember(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.True(t, direct)
}

func TestIsDirectMember_ImplicitAdminIsNotDirect(t *testing.T) {
	r, memberships, workspaces, orgs := setupResolver()

	workspaces.On("GetByID", mock.Anything, int64(10)).
		Return(&types.Workspace{ID: 10, OrganizationID: 1}, nil)
	orgs.On("GetByID", mock.Anything, int64(1)).
		Return(&types.Organization{ID: 1}, nil)
	memberships.On("GetOrganizationUser", mock.Anything, int64(1), int64(7)).
		Return(orgUser(1, 7, types.OrgRoleAdmin), nil)
	memberships.On("GetWorkspaceUser", mock.Anything, int64(10), int64(7)).
		Return(nil, nil)

	// The admin resolves to Manager through the organization edge but holds
	// no membership row, so the workspace is reachable yet not direct.
	role, hasAccess, err := r.ResolveWorkspaceRole(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.True(t, hasAccess)
	assert.Equal(t, types.WorkspaceRoleManager, role)

	direct, err := r.IsDirectMember(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.False(t, direct)
}

func TestIsDirectMember_InfrastructureError(t *testing.T) {
	r, memberships, _, _ := setupResolver()

	memberships.On("GetWorkspaceUser", mock.Anything, int64(10), int64(7)).
		Return(nil, errors.New("connection reset"))

	_, err := r.IsDirectMember(context.Background(), 7, 10)
	require.Error(t, err)
}
