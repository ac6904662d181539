package access

import (
	"context"

	"workhub/internal/types"
)

// Capability names a discrete action gated by role. The capability-to-role
// mapping is a fixed table, not data-driven.
type Capability string

const (
	CapManageWorkspace Capability = "manage_workspace"
	CapInviteUsers     Capability = "invite_users"
	CapEditContent     Capability = "edit_content"
	CapViewContent     Capability = "view_content"
)

// workspaceCapabilities is the authoritative capability table. Manager can do
// everything; Editor and Viewer are progressively restricted.
var workspaceCapabilities = map[types.WorkspaceRole]map[Capability]bool{
	types.WorkspaceRoleManager: {
		CapManageWorkspace: true,
		CapInviteUsers:     true,
		CapEditContent:     true,
		CapViewContent:     true,
	},
	types.WorkspaceRoleEditor: {
		CapEditContent: true,
		CapViewContent: true,
	},
	types.WorkspaceRoleViewer: {
		CapViewContent: true,
	},
}

// RoleCan reports whether the workspace role carries the capability.
// Unknown roles carry nothing.
func RoleCan(role types.WorkspaceRole, cap Capability) bool {
	return workspaceCapabilities[role][cap]
}

// can resolves the effective workspace role and checks one capability.
func (r *Resolver) can(ctx context.Context, userID, workspaceID int64, cap Capability) (bool, error) {
	role, ok, err := r.ResolveWorkspaceRole(ctx, userID, workspaceID)
	if err != nil || !ok {
		return false, err
	}
	return RoleCan(role, cap), nil
}

// CanManageWorkspace reports whether the user may change workspace settings,
// memberships and allocations.
func (r *Resolver) CanManageWorkspace(ctx context.Context, userID, workspaceID int64) (bool, error) {
	return r.can(ctx, userID, workspaceID, CapManageWorkspace)
}

// CanInviteUsers reports whether the user may invite members into the
// workspace.
func (r *Resolver) CanInviteUsers(ctx context.Context, userID, workspaceID int64) (bool, error) {
	return r.can(ctx, userID, workspaceID, CapInviteUsers)
}

// CanEditContent reports whether the user may create and modify workspace
// content.
func (r *Resolver) CanEditContent(ctx context.Context, userID, workspaceID int64) (bool, error) {
	return r.can(ctx, userID, workspaceID, CapEditContent)
}

// CanViewContent reports whether the user may read workspace content.
func (r *Resolver) CanViewContent(ctx context.Context, userID, workspaceID int64) (bool, error) {
	return r.can(ctx, userID, workspaceID, CapViewContent)
}

// CanManageOrganization reports whether the user may administer the
// organization (settings, members, workspaces).
func (r *Resolver) CanManageOrganization(ctx context.Context, userID, orgID int64) (bool, error) {
	role, ok, err := r.ResolveOrganizationRole(ctx, userID, orgID)
	if err != nil || !ok {
		return false, err
	}
	return role.IsAdministrative(), nil
}

// CanManageBilling reports whether the user may change the organization's
// plan and billing settings. Owner only: billing actions are irreversible.
func (r *Resolver) CanManageBilling(ctx context.Context, userID, orgID int64) (bool, error) {
	role, ok, err := r.ResolveOrganizationRole(ctx, userID, orgID)
	if err != nil || !ok {
		return false, err
	}
	return role == types.OrgRoleOwner, nil
}
