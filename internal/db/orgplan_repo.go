package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"workhub/internal/types"
)

// OrgPlanRepo provides data access for organization_plans associations and
// organization_feature_overrides. Association rows are append-only history:
// detachment cancels, it never deletes.
type OrgPlanRepo struct {
	db DBTX
}

// NewOrgPlanRepo creates a new OrgPlanRepo backed by the given database
// connection (pool or transaction).
func NewOrgPlanRepo(db DBTX) *OrgPlanRepo {
	return &OrgPlanRepo{db: db}
}

const orgPlanColumns = `op.id, op.uuid, op.organization_id, op.plan_id, op.status,
	op.is_revoked, op.revoked_at, op.revoked_by_id, op.started_at, op.ends_at,
	op.trial_start, op.trial_end, op.billing_cycle, op.quantity, op.charging,
	op.notes, op.created_at, op.updated_at`

func scanOrgPlan(row pgx.Row) (*types.OrganizationPlan, error) {
	var a types.OrganizationPlan
	var notes *string
	err := row.Scan(
		&a.ID,
		&a.UUID,
		&a.OrganizationID,
		&a.PlanID,
		&a.Status,
		&a.IsRevoked,
		&a.RevokedAt,
		&a.RevokedByID,
		&a.StartedAt,
		&a.EndsAt,
		&a.TrialStart,
		&a.TrialEnd,
		&a.BillingCycle,
		&a.Quantity,
		&a.Charging,
		&notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notes != nil {
		a.Notes = *notes
	}
	return &a, nil
}

// activeAssociationCond is the canonical SQL predicate for an active
// association, mirroring types.OrganizationPlan.ActiveAt. $2 is "now".
const activeAssociationCond = `op.is_revoked = FALSE
	   AND op.status = 'active'
	   AND op.started_at <= $2
	   AND (op.ends_at IS NULL OR op.ends_at > $2)`

// ListActive returns all active associations of one organization with their
// plans hydrated, ordered so the current plan comes first: priority
// descending, then most recently started, then highest id for determinism.
func (r *OrgPlanRepo) ListActive(ctx context.Context, orgID int64, now time.Time) ([]types.OrganizationPlan, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orgPlanColumns+`, `+planColumns+`
		 FROM organization_plans op
		 JOIN plans p ON p.id = op.plan_id
		 WHERE op.organization_id = $1
		   AND `+activeAssociationCond+`
		 ORDER BY p.priority DESC, op.started_at DESC, op.id DESC`,
		orgID, now,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list active plan associations", err)
	}
	defer rows.Close()

	var result []types.OrganizationPlan
	for rows.Next() {
		a, err := scanOrgPlanWithPlan(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan plan association row", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating plan association rows", err)
	}
	return result, nil
}

// scanOrgPlanWithPlan scans an association row joined with its plan columns.
func scanOrgPlanWithPlan(row pgx.Row) (*types.OrganizationPlan, error) {
	var a types.OrganizationPlan
	var p types.Plan
	var notes *string
	err := row.Scan(
		&a.ID,
		&a.UUID,
		&a.OrganizationID,
		&a.PlanID,
		&a.Status,
		&a.IsRevoked,
		&a.RevokedAt,
		&a.RevokedByID,
		&a.StartedAt,
		&a.EndsAt,
		&a.TrialStart,
		&a.TrialEnd,
		&a.BillingCycle,
		&a.Quantity,
		&a.Charging,
		&notes,
		&a.CreatedAt,
		&a.UpdatedAt,
		&p.ID,
		&p.UUID,
		&p.Slug,
		&p.Name,
		&p.Price,
		&p.MaxPrice,
		&p.Currency,
		&p.Market,
		&p.BillingCycle,
		&p.Priority,
		&p.Group,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notes != nil {
		a.Notes = *notes
	}
	a.Plan = &p
	return &a, nil
}

// GetCurrent returns the single current association: the active association
// whose plan has the highest priority, ties broken by most recent start.
// Returns (nil, nil) when the organization has no active association.
func (r *OrgPlanRepo) GetCurrent(ctx context.Context, orgID int64, now time.Time) (*types.OrganizationPlan, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orgPlanColumns+`, `+planColumns+`
		 FROM organization_plans op
		 JOIN plans p ON p.id = op.plan_id
		 WHERE op.organization_id = $1
		   AND `+activeAssociationCond+`
		 ORDER BY p.priority DESC, op.started_at DESC, op.id DESC
		 LIMIT 1`,
		orgID, now,
	)
	a, err := scanOrgPlanWithPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve current plan association", err)
	}
	return a, nil
}

// GetLatest returns the most recently started association regardless of
// state, used as the display fallback when nothing is active. Returns
// (nil, nil) when the organization has no association history at all.
func (r *OrgPlanRepo) GetLatest(ctx context.Context, orgID int64) (*types.OrganizationPlan, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orgPlanColumns+`, `+planColumns+`
		 FROM organization_plans op
		 JOIN plans p ON p.id = op.plan_id
		 WHERE op.organization_id = $1
		 ORDER BY op.started_at DESC, op.id DESC
		 LIMIT 1`,
		orgID,
	)
	a, err := scanOrgPlanWithPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve latest plan association", err)
	}
	return a, nil
}

// GetActiveBySlug returns the active association whose plan carries the given
// slug, or nil. Used by attachment to answer "is the free tier already on".
func (r *OrgPlanRepo) GetActiveBySlug(ctx context.Context, orgID int64, slug string, now time.Time) (*types.OrganizationPlan, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orgPlanColumns+`, `+planColumns+`
		 FROM organization_plans op
		 JOIN plans p ON p.id = op.plan_id
		 WHERE op.organization_id = $1
		   AND `+activeAssociationCond+`
		   AND p.slug = $3
		 ORDER BY op.started_at DESC, op.id DESC
		 LIMIT 1`,
		orgID, now, slug,
	)
	a, err := scanOrgPlanWithPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve plan association by slug", err)
	}
	return a, nil
}

// Create inserts a new association row. The UUID is generated here; status,
// timestamps and attributes must already be set by the service layer.
func (r *OrgPlanRepo) Create(ctx context.Context, a *types.OrganizationPlan) error {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO organization_plans
		   (uuid, organization_id, plan_id, status, is_revoked, started_at, ends_at,
		    trial_start, trial_end, billing_cycle, quantity, charging, notes,
		    created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		a.UUID,
		a.OrganizationID,
		a.PlanID,
		a.Status,
		a.IsRevoked,
		a.StartedAt,
		a.EndsAt,
		a.TrialStart,
		a.TrialEnd,
		a.BillingCycle,
		a.Quantity,
		a.Charging,
		nilIfEmpty(a.Notes),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create plan association", err)
	}
	return nil
}

// Cancel marks an association cancelled with ends_at = now, appending a note.
// The row itself is preserved as history.
func (r *OrgPlanRepo) Cancel(ctx context.Context, associationID int64, now time.Time, note string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE organization_plans
		 SET status = 'cancelled',
		     ends_at = $2,
		     notes = TRIM(BOTH FROM COALESCE(notes, '') || CASE WHEN $3 = '' THEN '' ELSE ' ' || $3 END),
		     updated_at = NOW()
		 WHERE id = $1 AND status = 'active'`,
		associationID, now, note,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to cancel plan association", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictConcurrent, "plan association already cancelled", nil)
	}
	return nil
}

// Revoke flags an association revoked, recording who and when. Revocation is
// stronger than cancellation: it also invalidates a not-yet-ended row.
func (r *OrgPlanRepo) Revoke(ctx context.Context, associationID int64, revokedBy *int64, now time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE organization_plans
		 SET is_revoked = TRUE,
		     revoked_at = $2,
		     revoked_by_id = $3,
		     updated_at = NOW()
		 WHERE id = $1 AND is_revoked = FALSE`,
		associationID, now, revokedBy,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to revoke plan association", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictConcurrent, "plan association already revoked", nil)
	}
	return nil
}

// GetActiveOverride returns the active, non-expired override for (org,
// feature), or nil. When several exist the most recently created wins.
func (r *OrgPlanRepo) GetActiveOverride(ctx context.Context, orgID int64, feature string, now time.Time) (*types.OrganizationFeatureOverride, error) {
	var o types.OrganizationFeatureOverride
	err := r.db.QueryRow(ctx,
		`SELECT id, organization_id, feature, value, reason, approved_by_id, expires_at, created_at
		 FROM organization_feature_overrides
		 WHERE organization_id = $1
		   AND feature = $2
		   AND (expires_at IS NULL OR expires_at > $3)
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		orgID, feature, now,
	).Scan(&o.ID, &o.OrganizationID, &o.Feature, &o.Value, &o.Reason, &o.ApprovedByID, &o.ExpiresAt, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve feature override", err)
	}
	return &o, nil
}
