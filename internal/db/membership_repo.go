package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"workhub/internal/types"
)

// MembershipRepo provides data access for the organization_users and
// workspace_users membership edges.
type MembershipRepo struct {
	db DBTX
}

// NewMembershipRepo creates a new MembershipRepo backed by the given database
// connection (pool or transaction).
func NewMembershipRepo(db DBTX) *MembershipRepo {
	return &MembershipRepo{db: db}
}

const orgUserColumns = `ou.organization_id, ou.user_id, ou.role, ou.capabilities,
	ou.status, ou.invited_by_id, ou.joined_at`

func scanOrgUser(row pgx.Row) (*types.OrganizationUser, error) {
	var m types.OrganizationUser
	err := row.Scan(
		&m.OrganizationID,
		&m.UserID,
		&m.Role,
		&m.Capabilities,
		&m.Status,
		&m.InvitedByID,
		&m.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const workspaceUserColumns = `wu.workspace_id, wu.user_id, wu.role, wu.capabilities,
	wu.status, wu.invited_by_id, wu.joined_at`

func scanWorkspaceUser(row pgx.Row) (*types.WorkspaceUser, error) {
	var m types.WorkspaceUser
	err := row.Scan(
		&m.WorkspaceID,
		&m.UserID,
		&m.Role,
		&m.Capabilities,
		&m.Status,
		&m.InvitedByID,
		&m.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetOrganizationUser returns the membership edge for (organization, user),
// or nil when the user is not a member. Invited-but-not-joined rows are
// excluded: a pending invite grants no access.
func (r *MembershipRepo) GetOrganizationUser(ctx context.Context, orgID, userID int64) (*types.OrganizationUser, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orgUserColumns+`
		 FROM organization_users ou
		 WHERE ou.organization_id = $1 AND ou.user_id = $2 AND ou.status = $3`,
		orgID, userID, types.MembershipActive,
	)

	m, err := scanOrgUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve organization membership", err)
	}
	return m, nil
}

// GetWorkspaceUser returns the membership edge for (workspace, user), or nil
// when no direct membership exists.
func (r *MembershipRepo) GetWorkspaceUser(ctx context.Context, workspaceID, userID int64) (*types.WorkspaceUser, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+workspaceUserColumns+`
		 FROM workspace_users wu
		 WHERE wu.workspace_id = $1 AND wu.user_id = $2 AND wu.status = $3`,
		workspaceID, userID, types.MembershipActive,
	)

	m, err := scanWorkspaceUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve workspace membership", err)
	}
	return m, nil
}

// ListOrganizationMemberships returns all active organization memberships of
// one user.
func (r *MembershipRepo) ListOrganizationMemberships(ctx context.Context, userID int64) ([]types.OrganizationUser, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orgUserColumns+`
		 FROM organization_users ou
		 JOIN organizations o ON o.id = ou.organization_id AND o.deleted_at IS NULL
		 WHERE ou.user_id = $1 AND ou.status = $2
		 ORDER BY ou.joined_at ASC`,
		userID, types.MembershipActive,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list organization memberships", err)
	}
	defer rows.Close()

	var result []types.OrganizationUser
	for rows.Next() {
		m, err := scanOrgUser(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan organization membership", err)
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating organization memberships", err)
	}
	return result, nil
}

// ListWorkspaceMemberships returns all active direct workspace memberships of
// one user, with each workspace hydrated. Soft-deleted workspaces and
// organizations are filtered out so stale edges never grant access.
func (r *MembershipRepo) ListWorkspaceMemberships(ctx context.Context, userID int64) ([]types.WorkspaceUser, []types.Workspace, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+workspaceUserColumns+`, `+workspaceColumns+`
		 FROM workspace_users wu
		 JOIN workspaces w ON w.id = wu.workspace_id AND w.deleted_at IS NULL
		 JOIN organizations o ON o.id = w.organization_id AND o.deleted_at IS NULL
		 WHERE wu.user_id = $1 AND wu.status = $2
		 ORDER BY wu.joined_at ASC`,
		userID, types.MembershipActive,
	)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list workspace memberships", err)
	}
	defer rows.Close()

	var edges []types.WorkspaceUser
	var workspaces []types.Workspace
	for rows.Next() {
		var m types.WorkspaceUser
		var ws types.Workspace
		err := rows.Scan(
			&m.WorkspaceID,
			&m.UserID,
			&m.Role,
			&m.Capabilities,
			&m.Status,
			&m.InvitedByID,
			&m.JoinedAt,
			&ws.ID,
			&ws.UUID,
			&ws.OrganizationID,
			&ws.Name,
			&ws.Slug,
			&ws.CreatedAt,
			&ws.UpdatedAt,
			&ws.DeletedAt,
		)
		if err != nil {
			return nil, nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan workspace membership", err)
		}
		edges = append(edges, m)
		workspaces = append(workspaces, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating workspace memberships", err)
	}
	return edges, workspaces, nil
}

// UpsertOrganizationUser creates or updates the single membership row per
// (organization, user). The ON CONFLICT clause enforces the at-most-one-row
// invariant at the database level.
func (r *MembershipRepo) UpsertOrganizationUser(ctx context.Context, m *types.OrganizationUser) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO organization_users
		   (organization_id, user_id, role, capabilities, status, invited_by_id, joined_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		 ON CONFLICT (organization_id, user_id)
		 DO UPDATE SET role = EXCLUDED.role,
		               capabilities = EXCLUDED.capabilities,
		               status = EXCLUDED.status`,
		m.OrganizationID,
		m.UserID,
		m.Role,
		m.Capabilities,
		m.Status,
		m.InvitedByID,
		nilIfZeroTime(m.JoinedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert organization membership", err)
	}
	return nil
}

// UpsertWorkspaceUser creates or updates the single membership row per
// (workspace, user).
func (r *MembershipRepo) UpsertWorkspaceUser(ctx context.Context, m *types.WorkspaceUser) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO workspace_users
		   (workspace_id, user_id, role, capabilities, status, invited_by_id, joined_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		 ON CONFLICT (workspace_id, user_id)
		 DO UPDATE SET role = EXCLUDED.role,
		               capabilities = EXCLUDED.capabilities,
		               status = EXCLUDED.status`,
		m.WorkspaceID,
		m.UserID,
		m.Role,
		m.Capabilities,
		m.Status,
		m.InvitedByID,
		nilIfZeroTime(m.JoinedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert workspace membership", err)
	}
	return nil
}

// RemoveWorkspaceUser deletes the direct membership edge. Implicit
// organization-level access is unaffected.
func (r *MembershipRepo) RemoveWorkspaceUser(ctx context.Context, workspaceID, userID int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM workspace_users WHERE workspace_id = $1 AND user_id = $2`,
		workspaceID, userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to remove workspace membership", err)
	}
	return nil
}
