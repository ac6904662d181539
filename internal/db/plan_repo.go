package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"workhub/internal/types"
)

// PlanRepo provides read access to the plan catalog: plans, plan_limits and
// plan_features. The catalog is reference data maintained out of band;
// this repository never mutates it.
type PlanRepo struct {
	db DBTX
}

// NewPlanRepo creates a new PlanRepo backed by the given database connection
// (pool or transaction).
func NewPlanRepo(db DBTX) *PlanRepo {
	return &PlanRepo{db: db}
}

const planColumns = `p.id, p.uuid, p.slug, p.name, p.price, p.max_price,
	p.currency, p.market, p.billing_cycle, p.priority, p.plan_group, p.is_active,
	p.created_at, p.updated_at`

func scanPlan(row pgx.Row) (*types.Plan, error) {
	var p types.Plan
	err := row.Scan(
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
	return &p, nil
}

// GetByID retrieves a plan by its ID.
func (r *PlanRepo) GetByID(ctx context.Context, id int64) (*types.Plan, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans p WHERE p.id = $1`,
		id,
	)
	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve plan", err)
	}
	return p, nil
}

// GetBySlug retrieves a plan by its unique slug. Returns (nil, nil) when the
// slug is unknown: a missing catalog entry is an expected outcome that
// callers resolve by skipping, not an error.
func (r *PlanRepo) GetBySlug(ctx context.Context, slug string) (*types.Plan, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans p WHERE p.slug = $1`,
		slug,
	)
	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve plan by slug", err)
	}
	return p, nil
}

// ListActive returns all active catalog plans ordered by priority descending.
func (r *PlanRepo) ListActive(ctx context.Context) ([]types.Plan, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+planColumns+`
		 FROM plans p
		 WHERE p.is_active
		 ORDER BY p.priority DESC, p.id ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list plans", err)
	}
	defer rows.Close()

	var result []types.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan plan row", err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating plan rows", err)
	}
	return result, nil
}

// GetLimit returns the PlanLimit row for (plan, feature), or nil when the
// plan defines no limit for that feature.
func (r *PlanRepo) GetLimit(ctx context.Context, planID int64, feature string) (*types.PlanLimit, error) {
	var pl types.PlanLimit
	err := r.db.QueryRow(ctx,
		`SELECT plan_id, feature, value, limit_type
		 FROM plan_limits
		 WHERE plan_id = $1 AND feature = $2`,
		planID, feature,
	).Scan(&pl.PlanID, &pl.Feature, &pl.Value, &pl.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve plan limit", err)
	}
	return &pl, nil
}

// ListLimits returns all limit rows of one plan keyed by feature.
func (r *PlanRepo) ListLimits(ctx context.Context, planID int64) (map[string]types.PlanLimit, error) {
	rows, err := r.db.Query(ctx,
		`SELECT plan_id, feature, value, limit_type
		 FROM plan_limits
		 WHERE plan_id = $1`,
		planID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list plan limits", err)
	}
	defer rows.Close()

	result := make(map[string]types.PlanLimit)
	for rows.Next() {
		var pl types.PlanLimit
		if err := rows.Scan(&pl.PlanID, &pl.Feature, &pl.Value, &pl.Type); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan plan limit row", err)
		}
		result[pl.Feature] = pl
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating plan limit rows", err)
	}
	return result, nil
}

// GetFeature returns catalog metadata for a feature key, or nil when unknown.
func (r *PlanRepo) GetFeature(ctx context.Context, feature string) (*types.PlanFeature, error) {
	var pf types.PlanFeature
	err := r.db.QueryRow(ctx,
		`SELECT id, feature, name, category, period, feature_type
		 FROM plan_features
		 WHERE feature = $1`,
		feature,
	).Scan(&pf.ID, &pf.Feature, &pf.Name, &pf.Category, &pf.Period, &pf.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve plan feature", err)
	}
	return &pf, nil
}
