package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"workhub/internal/types"
)

// WorkspaceRepo provides data access for the workspaces table.
type WorkspaceRepo struct {
	db DBTX
}

// NewWorkspaceRepo creates a new WorkspaceRepo backed by the given database
// connection (pool or transaction).
func NewWorkspaceRepo(db DBTX) *WorkspaceRepo {
	return &WorkspaceRepo{db: db}
}

const workspaceColumns = `w.id, w.uuid, w.organization_id, w.name, w.slug,
	w.created_at, w.updated_at, w.deleted_at`

func scanWorkspace(row pgx.Row) (*types.Workspace, error) {
	var ws types.Workspace
	err := row.Scan(
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
		return nil, err
	}
	return &ws, nil
}

// GetByID retrieves a workspace by its ID. Excludes soft-deleted rows.
func (r *WorkspaceRepo) GetByID(ctx context.Context, id int64) (*types.Workspace, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+workspaceColumns+`
		 FROM workspaces w
		 WHERE w.id = $1 AND w.deleted_at IS NULL`,
		id,
	)

	ws, err := scanWorkspace(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundWorkspace, "workspace not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve workspace", err)
	}
	return ws, nil
}

// ListByOrganization returns all non-deleted workspaces of one organization,
// ordered by creation time.
func (r *WorkspaceRepo) ListByOrganization(ctx context.Context, orgID int64) ([]types.Workspace, error) {
	return r.listByOrganizations(ctx, []int64{orgID})
}

// ListByOrganizations returns all non-deleted workspaces across the given
// organizations in one query. Used by the accessible-workspaces batch to
// avoid N+1 lookups.
func (r *WorkspaceRepo) ListByOrganizations(ctx context.Context, orgIDs []int64) ([]types.Workspace, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	return r.listByOrganizations(ctx, orgIDs)
}

func (r *WorkspaceRepo) listByOrganizations(ctx context.Context, orgIDs []int64) ([]types.Workspace, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+workspaceColumns+`
		 FROM workspaces w
		 WHERE w.organization_id = ANY($1) AND w.deleted_at IS NULL
		 ORDER BY w.created_at ASC, w.id ASC`,
		orgIDs,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list workspaces", err)
	}
	defer rows.Close()

	var result []types.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan workspace row", err)
		}
		result = append(result, *ws)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating workspace rows", err)
	}
	return result, nil
}

// CountActive returns the number of non-deleted workspaces in the
// organization. This count gates workspace deletion and is always read from
// the authoritative table, never cached.
func (r *WorkspaceRepo) CountActive(ctx context.Context, orgID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM workspaces
		 WHERE organization_id = $1 AND deleted_at IS NULL`,
		orgID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count workspaces", err)
	}
	return count, nil
}

// CanBeDeleted reports whether the workspace may be soft-deleted: an
// organization must always retain at least one live workspace.
func (r *WorkspaceRepo) CanBeDeleted(ctx context.Context, workspaceID int64) (bool, error) {
	ws, err := r.GetByID(ctx, workspaceID)
	if err != nil {
		return false, err
	}
	count, err := r.CountActive(ctx, ws.OrganizationID)
	if err != nil {
		return false, err
	}
	return count > 1, nil
}

// Delete soft-deletes a workspace after re-checking the last-workspace
// guard inside the same statement. Returns ErrCodeConflictLastWorkspace when
// the workspace is the organization's only remaining one.
func (r *WorkspaceRepo) Delete(ctx context.Context, workspaceID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE workspaces w
		 SET deleted_at = NOW(), updated_at = NOW()
		 WHERE w.id = $1
		   AND w.deleted_at IS NULL
		   AND EXISTS (
		     SELECT 1 FROM workspaces s
		     WHERE s.organization_id = w.organization_id
		       AND s.deleted_at IS NULL
		       AND s.id <> w.id
		   )`,
		workspaceID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete workspace", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the workspace does not exist or it is the last one standing.
		ok, checkErr := r.CanBeDeleted(ctx, workspaceID)
		if checkErr != nil {
			return checkErr
		}
		if !ok {
			return types.NewAppError(types.ErrCodeConflictLastWorkspace,
				"cannot delete the organization's last workspace", nil)
		}
		return types.NewAppError(types.ErrCodeNotFoundWorkspace, "workspace not found or already deleted", nil)
	}
	return nil
}
