package entitlement

import (
	"context"
	"log/slog"
	"math"
	"strconv"

	"workhub/internal/types"
)

// parseLimitValue parses a stored numeric limit value. "-1" is the unlimited
// sentinel. The boolean is false for non-numeric values, which are a
// catalog data bug, never a reason to fail a caller.
func parseLimitValue(value string) (int, bool) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetLimit returns the numeric limit a plan defines for a feature, or nil
// when the plan defines none. Only LimitTypeLimit rows produce a value;
// boolean-type features always resolve to nil here and callers must branch
// on the feature type. Malformed stored values are logged with context and
// resolve to nil (no limit enforced).
func (s *Service) GetLimit(ctx context.Context, plan *types.Plan, feature string) (*int, error) {
	if plan == nil {
		return nil, nil
	}
	row, err := s.plans.GetLimit(ctx, plan.ID, feature)
	if err != nil {
		return nil, err
	}
	if row == nil || row.Type != types.LimitTypeLimit {
		return nil, nil
	}
	n, ok := parseLimitValue(row.Value)
	if !ok {
		s.logger.Error("malformed plan limit value; treating as no limit",
			slog.String("plan_slug", plan.Slug),
			slog.String("feature", feature),
			slog.String("value", row.Value),
		)
		s.metrics.RecordDataIntegrity(ctx, 0, feature)
		return nil, nil
	}
	return &n, nil
}

// FeatureEnabled resolves a boolean-type feature gate for a plan. Undefined
// gates are closed.
func (s *Service) FeatureEnabled(ctx context.Context, plan *types.Plan, feature string) (bool, error) {
	if plan == nil {
		return false, nil
	}
	row, err := s.plans.GetLimit(ctx, plan.ID, feature)
	if err != nil {
		return false, err
	}
	if row == nil || row.Type != types.LimitTypeBoolean {
		return false, nil
	}
	return row.Value == "true" || row.Value == "1", nil
}

// IsWithinLimit reports whether currentUsage leaves room under the plan's
// limit for the feature. True when no limit is defined or the limit is
// unlimited. The comparison is strict: usage equal to the limit is already
// at capacity.
func (s *Service) IsWithinLimit(ctx context.Context, plan *types.Plan, feature string, currentUsage int) (bool, error) {
	limit, err := s.GetLimit(ctx, plan, feature)
	if err != nil {
		return false, err
	}
	return withinLimit(limit, currentUsage), nil
}

// withinLimit is the pure limit comparison shared by plan and override paths.
func withinLimit(limit *int, currentUsage int) bool {
	if limit == nil || *limit == types.UnlimitedLimit {
		return true
	}
	return currentUsage < *limit
}

// LimitUsagePercentage returns consumption as a percentage in [0, 100].
// Unlimited or undefined limits report 0; a zero limit reports 100.
func (s *Service) LimitUsagePercentage(ctx context.Context, plan *types.Plan, feature string, currentUsage int) (float64, error) {
	limit, err := s.GetLimit(ctx, plan, feature)
	if err != nil {
		return 0, err
	}
	return usagePercentage(limit, currentUsage), nil
}

func usagePercentage(limit *int, currentUsage int) float64 {
	if limit == nil || *limit == types.UnlimitedLimit {
		return 0
	}
	if *limit == 0 {
		return 100
	}
	return math.Min(100, 100*float64(currentUsage)/float64(*limit))
}

// EffectiveLimit computes the organization's limit for a feature. An active,
// non-expired override replaces the plan-derived limit outright; absence of
// an override falls through to the current plan's limit. Nil means no limit
// is enforced.
func (s *Service) EffectiveLimit(ctx context.Context, orgID int64, feature string) (*int, error) {
	override, err := s.assocs.GetActiveOverride(ctx, orgID, feature, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if override != nil {
		n, ok := parseLimitValue(override.Value)
		if !ok {
			// Replacement semantics hold even for bad data: a malformed
			// override resolves to no limit enforced, not to the plan limit.
			s.logger.Error("malformed feature override value; treating as no limit",
				slog.Int64("org_id", orgID),
				slog.String("feature", feature),
				slog.String("value", override.Value),
			)
			s.metrics.RecordDataIntegrity(ctx, orgID, feature)
			return nil, nil
		}
		return &n, nil
	}

	plan, err := s.GetCurrentPlan(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.GetLimit(ctx, plan, feature)
}

// IsWithinEffectiveLimit checks currentUsage against EffectiveLimit.
func (s *Service) IsWithinEffectiveLimit(ctx context.Context, orgID int64, feature string, currentUsage int) (bool, error) {
	limit, err := s.EffectiveLimit(ctx, orgID, feature)
	if err != nil {
		return false, err
	}
	return withinLimit(limit, currentUsage), nil
}

// APIRateLimit returns the organization-wide API rate limit: the effective
// limit for the api_rate_limit feature, falling back to the configured
// system default when no plan or no limit row defines one. Unlimited
// resolves to the sentinel -1.
func (s *Service) APIRateLimit(ctx context.Context, orgID int64) (int, error) {
	limit, err := s.EffectiveLimit(ctx, orgID, types.FeatureAPIRateLimit)
	if err != nil {
		return 0, err
	}
	if limit == nil {
		return s.defaultAPIRateLimit, nil
	}
	return *limit, nil
}

// RateLimitMultiplier returns the organization's rate limit as a percentage
// of the system default.
//
// Deprecated: this is the legacy percentage-based API, retained for callers
// that still scale from the default. It is a read-only derivation of
// APIRateLimit, never an independent source of truth. Use APIRateLimit.
func (s *Service) RateLimitMultiplier(ctx context.Context, orgID int64) (float64, error) {
	limit, err := s.APIRateLimit(ctx, orgID)
	if err != nil {
		return 0, err
	}
	if limit == types.UnlimitedLimit || s.defaultAPIRateLimit <= 0 {
		return 0, nil
	}
	return 100 * float64(limit) / float64(s.defaultAPIRateLimit), nil
}
