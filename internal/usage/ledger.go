// Package usage tracks per-feature consumption against entitlements: atomic
// counters per (organization, optional workspace, feature, period) and
// workspace allocations carved out of an organization's pooled limit.
package usage

import (
	"context"
	"log/slog"
	"math"
	"time"

	"workhub/internal/types"
)

// UsageDB is the counter data access the ledger needs.
// Implemented by db.UsageRepo.
type UsageDB interface {
	Add(ctx context.Context, orgID int64, workspaceID *int64, feature string, amount int,
		periodType types.PeriodType, periodStart time.Time, periodEnd *time.Time) (int, error)
	SumActive(ctx context.Context, orgID int64, workspaceID *int64, feature string, now time.Time) (int, error)
	SumActiveAllWorkspaces(ctx context.Context, orgID int64, feature string, now time.Time) (int, error)
	GetAllocation(ctx context.Context, workspaceID int64, feature string) (*types.WorkspaceFeatureLimit, error)
	SetAllocation(ctx context.Context, wfl *types.WorkspaceFeatureLimit) error
}

// FeatureCatalog resolves a feature's period metadata so the ledger knows
// which row a mutation lands on. Implemented by db.PlanRepo.
type FeatureCatalog interface {
	GetFeature(ctx context.Context, feature string) (*types.PlanFeature, error)
}

// Ledger is the usage ledger.
type Ledger struct {
	db      UsageDB
	catalog FeatureCatalog
	clock   types.Clock
	logger  *slog.Logger
}

// NewLedger creates a usage Ledger. A nil clock defaults to real time.
func NewLedger(db UsageDB, catalog FeatureCatalog, clock types.Clock, logger *slog.Logger) *Ledger {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{db: db, catalog: catalog, clock: clock, logger: logger}
}

// currentPeriod computes the counter row a mutation at now belongs to.
// Periodic features bucket by calendar month in UTC; lifetime features share
// one open-ended row anchored at the zero boundary.
func (l *Ledger) currentPeriod(ctx context.Context, feature string, now time.Time) (types.PeriodType, time.Time, *time.Time, error) {
	pf, err := l.catalog.GetFeature(ctx, feature)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	if pf == nil || pf.Period == types.PeriodLifetime {
		if pf == nil {
			// Unknown features still count; lifetime is the conservative
			// bucket because it never silently resets.
			l.logger.Warn("usage recorded for feature missing from catalog",
				slog.String("feature", feature),
			)
		}
		return types.PeriodLifetime, time.Unix(0, 0).UTC(), nil, nil
	}

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return types.PeriodPeriodic, start, &end, nil
}

// Increment adds amount to the counter for (org, optional workspace,
// feature) in the current period, creating the row lazily. The mutation is
// a single atomic statement; concurrent increments never lose updates.
// Returns the new counter value.
func (l *Ledger) Increment(ctx context.Context, orgID int64, workspaceID *int64, feature string, amount int) (int, error) {
	if amount < 0 {
		return 0, types.NewAppError(types.ErrCodeValidationAttributes, "increment amount must be non-negative", nil)
	}
	now := l.clock.Now()
	periodType, start, end, err := l.currentPeriod(ctx, feature, now)
	if err != nil {
		return 0, err
	}
	return l.db.Add(ctx, orgID, workspaceID, feature, amount, periodType, start, end)
}

// Decrement subtracts amount from the current-period counter, flooring at
// zero. Returns the new counter value.
func (l *Ledger) Decrement(ctx context.Context, orgID int64, workspaceID *int64, feature string, amount int) (int, error) {
	if amount < 0 {
		return 0, types.NewAppError(types.ErrCodeValidationAttributes, "decrement amount must be non-negative", nil)
	}
	now := l.clock.Now()
	periodType, start, end, err := l.currentPeriod(ctx, feature, now)
	if err != nil {
		return 0, err
	}
	return l.db.Add(ctx, orgID, workspaceID, feature, -amount, periodType, start, end)
}

// CurrentUsage returns the active consumption for (org, optional workspace,
// feature). A nil workspaceID reads the organization-level aggregate rows.
func (l *Ledger) CurrentUsage(ctx context.Context, orgID int64, workspaceID *int64, feature string) (int, error) {
	return l.db.SumActive(ctx, orgID, workspaceID, feature, l.clock.Now())
}

// OrganizationUsage returns the organization's total active consumption for
// a feature: the org-level aggregate plus all workspace-scoped counters.
func (l *Ledger) OrganizationUsage(ctx context.Context, orgID int64, feature string) (int, error) {
	now := l.clock.Now()
	orgLevel, err := l.db.SumActive(ctx, orgID, nil, feature, now)
	if err != nil {
		return 0, err
	}
	workspaces, err := l.db.SumActiveAllWorkspaces(ctx, orgID, feature, now)
	if err != nil {
		return 0, err
	}
	return orgLevel + workspaces, nil
}

// WorkspaceRemaining returns how much of the workspace's allocation is left
// for a feature: allocated minus the workspace's active usage. An allocation
// of -1 (or no allocation) reports -1, meaning unbounded by the workspace
// carve-out; the organization pool still applies.
func (l *Ledger) WorkspaceRemaining(ctx context.Context, workspaceID int64, feature string) (int, error) {
	alloc, err := l.db.GetAllocation(ctx, workspaceID, feature)
	if err != nil {
		return 0, err
	}
	if alloc == nil || alloc.Allocated == types.UnlimitedLimit {
		return types.UnlimitedLimit, nil
	}

	used, err := l.db.SumActive(ctx, alloc.OrganizationID, &workspaceID, feature, l.clock.Now())
	if err != nil {
		return 0, err
	}
	remaining := alloc.Allocated - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// WorkspaceUsagePercentage returns the workspace's consumption of its
// allocation in [0, 100]. Unlimited or absent allocations report 0; a zero
// allocation reports 100.
func (l *Ledger) WorkspaceUsagePercentage(ctx context.Context, workspaceID int64, feature string) (float64, error) {
	alloc, err := l.db.GetAllocation(ctx, workspaceID, feature)
	if err != nil {
		return 0, err
	}
	if alloc == nil || alloc.Allocated == types.UnlimitedLimit {
		return 0, nil
	}
	if alloc.Allocated == 0 {
		return 100, nil
	}

	used, err := l.db.SumActive(ctx, alloc.OrganizationID, &workspaceID, feature, l.clock.Now())
	if err != nil {
		return 0, err
	}
	return math.Min(100, 100*float64(used)/float64(alloc.Allocated)), nil
}

// SetWorkspaceAllocation carves allocated units of the organization's pooled
// limit out for one workspace. -1 allocates without bound.
func (l *Ledger) SetWorkspaceAllocation(ctx context.Context, orgID, workspaceID int64, feature string, allocated int) error {
	if allocated < types.UnlimitedLimit {
		return types.NewAppError(types.ErrCodeValidationAttributes, "allocation must be -1 or non-negative", nil)
	}
	return l.db.SetAllocation(ctx, &types.WorkspaceFeatureLimit{
		WorkspaceID:    workspaceID,
		OrganizationID: orgID,
		Feature:        feature,
		Allocated:      allocated,
	})
}
