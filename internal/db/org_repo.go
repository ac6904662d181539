package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"workhub/internal/types"
)

// OrganizationRepo provides data access for the organizations table.
type OrganizationRepo struct {
	db DBTX
}

// NewOrganizationRepo creates a new OrganizationRepo backed by the given
// database connection (pool or transaction).
func NewOrganizationRepo(db DBTX) *OrganizationRepo {
	return &OrganizationRepo{db: db}
}

// orgColumns defines the standard set of columns selected for organization
// queries. Used consistently across all query methods to avoid column drift.
const orgColumns = `o.id, o.uuid, o.name, o.slug, o.owner_id, o.currency, o.market,
	o.created_at, o.updated_at, o.deleted_at`

// scanOrg scans a single organization row into a types.Organization struct.
// The columns must match the order defined in orgColumns.
func scanOrg(row pgx.Row) (*types.Organization, error) {
	var org types.Organization
	var currency, market *string

	err := row.Scan(
		&org.ID,
		&org.UUID,
		&org.Name,
		&org.Slug,
		&org.OwnerID,
		&currency,
		&market,
		&org.CreatedAt,
		&org.UpdatedAt,
		&org.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if currency != nil {
		org.Currency = *currency
	}
	if market != nil {
		org.Market = *market
	}
	return &org, nil
}

// GetByID retrieves an organization by its ID. Excludes soft-deleted rows.
// Returns ErrCodeNotFoundOrg if no active organization is found.
func (r *OrganizationRepo) GetByID(ctx context.Context, id int64) (*types.Organization, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orgColumns+`
		 FROM organizations o
		 WHERE o.id = $1 AND o.deleted_at IS NULL`,
		id,
	)

	org, err := scanOrg(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundOrg, "organization not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve organization", err)
	}
	return org, nil
}

// GetByUUID retrieves an organization by its external identifier.
func (r *OrganizationRepo) GetByUUID(ctx context.Context, uuid string) (*types.Organization, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orgColumns+`
		 FROM organizations o
		 WHERE o.uuid = $1 AND o.deleted_at IS NULL`,
		uuid,
	)

	org, err := scanOrg(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundOrg, "organization not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve organization", err)
	}
	return org, nil
}

// UpdateBillingDefaults adopts a plan's currency and market on organizations
// that still carry onboarding placeholders. Called by plan attachment when a
// paid plan replaces the free tier.
func (r *OrganizationRepo) UpdateBillingDefaults(ctx context.Context, id int64, currency, market string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE organizations
		 SET currency = COALESCE(NULLIF(currency, ''), $1),
		     market = COALESCE(NULLIF(market, ''), $2),
		     updated_at = NOW()
		 WHERE id = $3 AND deleted_at IS NULL`,
		currency,
		market,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update billing defaults", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundOrg, "organization not found", nil)
	}
	return nil
}

// Delete performs a soft delete by setting deleted_at = NOW().
// The caller must cancel active plan associations first.
func (r *OrganizationRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE organizations SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete organization", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundOrg, "organization not found or already deleted", nil)
	}
	return nil
}
