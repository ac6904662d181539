package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"workhub/internal/types"
)

// UsageRepo provides data access for usage_tracking counters and
// workspace_feature_limits allocations.
//
// Counter mutations are single-statement atomic UPSERTs so concurrent
// increments from multiple workspace members never lose updates. The unique
// index covers (organization_id, COALESCE(workspace_id, 0), feature,
// period_starts_at); NULL workspace_id denotes the organization-level
// aggregate row.
type UsageRepo struct {
	db DBTX
}

// NewUsageRepo creates a new UsageRepo backed by the given database
// connection (pool or transaction).
func NewUsageRepo(db DBTX) *UsageRepo {
	return &UsageRepo{db: db}
}

// Add atomically adjusts the counter for the given period row, creating it
// lazily on first use. Negative amounts decrement; the counter floors at
// zero. Returns the new counter value.
func (r *UsageRepo) Add(
	ctx context.Context,
	orgID int64,
	workspaceID *int64,
	feature string,
	amount int,
	periodType types.PeriodType,
	periodStart time.Time,
	periodEnd *time.Time,
) (int, error) {
	var newUsage int
	err := r.db.QueryRow(ctx,
		`INSERT INTO usage_tracking
		   (organization_id, workspace_id, feature, current_usage,
		    period_type, period_starts_at, period_ends_at)
		 VALUES ($1, $2, $3, GREATEST(0, $4), $5, $6, $7)
		 ON CONFLICT (organization_id, COALESCE(workspace_id, 0), feature, period_starts_at)
		 DO UPDATE SET current_usage = GREATEST(0, usage_tracking.current_usage + $4)
		 RETURNING current_usage`,
		orgID,
		workspaceID,
		feature,
		amount,
		periodType,
		periodStart,
		periodEnd,
	).Scan(&newUsage)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to adjust usage counter", err)
	}
	return newUsage, nil
}

// SumActive returns the summed consumption across active counter rows for
// (organization, optional workspace, feature) at the given instant. A nil
// workspaceID selects the organization-level aggregate rows only. A periodic
// row counts only when its window contains now; future-dated rows are
// excluded.
func (r *UsageRepo) SumActive(ctx context.Context, orgID int64, workspaceID *int64, feature string, now time.Time) (int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(current_usage), 0)
		 FROM usage_tracking
		 WHERE organization_id = $1
		   AND workspace_id IS NOT DISTINCT FROM $2
		   AND feature = $3
		   AND (period_type = 'lifetime'
		        OR (period_starts_at <= $4
		            AND (period_ends_at IS NULL OR period_ends_at > $4)))`,
		orgID, workspaceID, feature, now,
	).Scan(&total)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to sum usage", err)
	}
	return total, nil
}

// SumActiveAllWorkspaces returns the summed consumption across every
// workspace-scoped active row for (organization, feature). Excludes the
// organization-level aggregate rows.
func (r *UsageRepo) SumActiveAllWorkspaces(ctx context.Context, orgID int64, feature string, now time.Time) (int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(current_usage), 0)
		 FROM usage_tracking
		 WHERE organization_id = $1
		   AND workspace_id IS NOT NULL
		   AND feature = $2
		   AND (period_type = 'lifetime'
		        OR (period_starts_at <= $3
		            AND (period_ends_at IS NULL OR period_ends_at > $3)))`,
		orgID, feature, now,
	).Scan(&total)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to sum workspace usage", err)
	}
	return total, nil
}

// GetAllocation returns the workspace's carve-out of the organization pool
// for a feature, or nil when none has been set.
func (r *UsageRepo) GetAllocation(ctx context.Context, workspaceID int64, feature string) (*types.WorkspaceFeatureLimit, error) {
	var wfl types.WorkspaceFeatureLimit
	err := r.db.QueryRow(ctx,
		`SELECT workspace_id, organization_id, feature, allocated, updated_at
		 FROM workspace_feature_limits
		 WHERE workspace_id = $1 AND feature = $2`,
		workspaceID, feature,
	).Scan(&wfl.WorkspaceID, &wfl.OrganizationID, &wfl.Feature, &wfl.Allocated, &wfl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve workspace allocation", err)
	}
	return &wfl, nil
}

// SetAllocation creates or replaces the workspace's carve-out for a feature.
// Allocated -1 means unlimited.
func (r *UsageRepo) SetAllocation(ctx context.Context, wfl *types.WorkspaceFeatureLimit) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO workspace_feature_limits
		   (workspace_id, organization_id, feature, allocated, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (workspace_id, feature)
		 DO UPDATE SET allocated = EXCLUDED.allocated, updated_at = NOW()`,
		wfl.WorkspaceID,
		wfl.OrganizationID,
		wfl.Feature,
		wfl.Allocated,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set workspace allocation", err)
	}
	return nil
}
