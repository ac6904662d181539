// Package access computes a user's effective role and capability set for
// organizations and workspaces. Resolution is a pure precedence order over
// membership edges: implicit access from an organization-level owner/admin
// role is checked first and always wins over a direct workspace row.
package access

import (
	"context"
	"errors"
	"log/slog"

	"workhub/internal/types"
)

// MembershipDB is the membership data access the resolver needs.
// Implemented by db.MembershipRepo.
type MembershipDB interface {
	GetOrganizationUser(ctx context.Context, orgID, userID int64) (*types.OrganizationUser, error)
	GetWorkspaceUser(ctx context.Context, workspaceID, userID int64) (*types.WorkspaceUser, error)
	ListOrganizationMemberships(ctx context.Context, userID int64) ([]types.OrganizationUser, error)
	ListWorkspaceMemberships(ctx context.Context, userID int64) ([]types.WorkspaceUser, []types.Workspace, error)
}

// WorkspaceDB is the workspace lookup access the resolver needs.
// Implemented by db.WorkspaceRepo.
type WorkspaceDB interface {
	GetByID(ctx context.Context, id int64) (*types.Workspace, error)
	ListByOrganizations(ctx context.Context, orgIDs []int64) ([]types.Workspace, error)
}

// OrgDB is the organization lookup access the resolver needs.
// Implemented by db.OrganizationRepo.
type OrgDB interface {
	GetByID(ctx context.Context, id int64) (*types.Organization, error)
}

// Resolver answers "can this user do X in this workspace/organization".
// It is read-only and side-effect-free; all methods are safe for concurrent
// use.
type Resolver struct {
	memberships MembershipDB
	workspaces  WorkspaceDB
	orgs        OrgDB
	logger      *slog.Logger
}

// NewResolver creates an access Resolver.
func NewResolver(memberships MembershipDB, workspaces WorkspaceDB, orgs OrgDB, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		memberships: memberships,
		workspaces:  workspaces,
		orgs:        orgs,
		logger:      logger,
	}
}

// isNotFound reports whether err is an expected not-found outcome rather
// than an infrastructure failure.
func isNotFound(err error) bool {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeNotFoundOrg, types.ErrCodeNotFoundWorkspace, types.ErrCodeNotFoundUser:
			return true
		}
	}
	return false
}

// ResolveOrganizationRole returns the user's role in the organization.
// The boolean is false when the user is not a member or the organization is
// missing/soft-deleted.
func (r *Resolver) ResolveOrganizationRole(ctx context.Context, userID, orgID int64) (types.OrgRole, bool, error) {
	if _, err := r.orgs.GetByID(ctx, orgID); err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}

	m, err := r.memberships.GetOrganizationUser(ctx, orgID, userID)
	if err != nil {
		return "", false, err
	}
	if m == nil {
		return "", false, nil
	}
	return m.Role, true, nil
}

// ResolveWorkspaceRole returns the user's effective role in the workspace.
//
// Precedence, as ordered guard clauses:
//  1. Organization-level Owner/Admin resolves to Manager immediately.
//     Implicit access always wins and is not downgradable by a weaker direct
//     assignment in the same workspace. Per-workspace overrides for admins
//     are intentionally not supported.
//  2. Otherwise the direct WorkspaceUser row, or no access.
//
// A missing or soft-deleted workspace or parent organization resolves to no
// access (fail closed) and is logged as a data-integrity warning when the
// workspace exists but its organization does not.
func (r *Resolver) ResolveWorkspaceRole(ctx context.Context, userID, workspaceID int64) (types.WorkspaceRole, bool, error) {
	ws, err := r.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}

	if _, err := r.orgs.GetByID(ctx, ws.OrganizationID); err != nil {
		if isNotFound(err) {
			r.logger.Warn("workspace references missing organization; denying access",
				slog.Int64("workspace_id", workspaceID),
				slog.Int64("organization_id", ws.OrganizationID),
			)
			return "", false, nil
		}
		return "", false, err
	}

	orgMembership, err := r.memberships.GetOrganizationUser(ctx, ws.OrganizationID, userID)
	if err != nil {
		return "", false, err
	}
	if orgMembership != nil && orgMembership.Role.IsAdministrative() {
		return types.WorkspaceRoleManager, true, nil
	}

	direct, err := r.memberships.GetWorkspaceUser(ctx, workspaceID, userID)
	if err != nil {
		return "", false, err
	}
	if direct == nil {
		return "", false, nil
	}
	return direct.Role, true, nil
}

// IsDirectMember reports whether the user holds an explicit membership row in
// the workspace. Implicit organization-level access does not count; an org
// admin reachable only through the organization edge is not a direct member.
func (r *Resolver) IsDirectMember(ctx context.Context, userID, workspaceID int64) (bool, error) {
	m, err := r.memberships.GetWorkspaceUser(ctx, workspaceID, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// HasAccess reports whether the user has any effective role in the workspace.
func (r *Resolver) HasAccess(ctx context.Context, userID, workspaceID int64) (bool, error) {
	_, ok, err := r.ResolveWorkspaceRole(ctx, userID, workspaceID)
	return ok, err
}

// AccessibleWorkspaces returns every workspace the user can reach with the
// effective role in each, avoiding N+1 lookups: one query for direct
// memberships, one for organization memberships, one for the administrative
// organizations' workspaces. When a workspace appears both directly and
// implicitly, the direct entry wins.
func (r *Resolver) AccessibleWorkspaces(ctx context.Context, userID int64) ([]types.WorkspaceAccess, error) {
	edges, workspaces, err := r.memberships.ListWorkspaceMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}

	var result []types.WorkspaceAccess
	seen := make(map[int64]bool, len(edges))
	for i, edge := range edges {
		result = append(result, types.WorkspaceAccess{
			Workspace: workspaces[i],
			Role:      edge.Role,
			Direct:    true,
		})
		seen[edge.WorkspaceID] = true
	}

	orgMemberships, err := r.memberships.ListOrganizationMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	var adminOrgIDs []int64
	for _, m := range orgMemberships {
		if m.Role.IsAdministrative() {
			adminOrgIDs = append(adminOrgIDs, m.OrganizationID)
		}
	}
	if len(adminOrgIDs) == 0 {
		return result, nil
	}

	orgWorkspaces, err := r.workspaces.ListByOrganizations(ctx, adminOrgIDs)
	if err != nil {
		return nil, err
	}
	for _, ws := range orgWorkspaces {
		if seen[ws.ID] {
			continue
		}
		result = append(result, types.WorkspaceAccess{
			Workspace: ws,
			Role:      types.WorkspaceRoleManager,
			Direct:    false,
		})
		seen[ws.ID] = true
	}
	return result, nil
}
