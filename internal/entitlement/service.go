// Package entitlement resolves an organization's plan state: the single
// current plan, trial windows, per-feature limits and overrides. It owns the
// only write path for plan associations (AttachPlan/DetachPlan) so that the
// free/paid exclusivity invariants and cache invalidation cannot be bypassed.
package entitlement

import (
	"context"
	"log/slog"
	"time"

	"workhub/internal/cache"
	"workhub/internal/types"
)

// defaultCacheTTL bounds staleness even when an invalidation is missed.
// Minutes, not seconds: entitlement state changes rarely and every read
// re-validates on the authoritative path before irreversible actions.
const defaultCacheTTL = 5 * time.Minute

// PlanDB is the plan catalog access the resolver needs.
// Implemented by db.PlanRepo.
type PlanDB interface {
	GetByID(ctx context.Context, id int64) (*types.Plan, error)
	GetBySlug(ctx context.Context, slug string) (*types.Plan, error)
	GetLimit(ctx context.Context, planID int64, feature string) (*types.PlanLimit, error)
	GetFeature(ctx context.Context, feature string) (*types.PlanFeature, error)
}

// AssociationDB is the plan-association access the resolver needs.
// Implemented by db.OrgPlanRepo, both pool-backed and transaction-scoped.
type AssociationDB interface {
	ListActive(ctx context.Context, orgID int64, now time.Time) ([]types.OrganizationPlan, error)
	GetCurrent(ctx context.Context, orgID int64, now time.Time) (*types.OrganizationPlan, error)
	GetLatest(ctx context.Context, orgID int64) (*types.OrganizationPlan, error)
	GetActiveBySlug(ctx context.Context, orgID int64, slug string, now time.Time) (*types.OrganizationPlan, error)
	Create(ctx context.Context, a *types.OrganizationPlan) error
	Cancel(ctx context.Context, associationID int64, now time.Time, note string) error
	GetActiveOverride(ctx context.Context, orgID int64, feature string, now time.Time) (*types.OrganizationFeatureOverride, error)
}

// OrgDB is the organization access plan attachment needs.
// Implemented by db.OrganizationRepo.
type OrgDB interface {
	GetByID(ctx context.Context, id int64) (*types.Organization, error)
	UpdateBillingDefaults(ctx context.Context, id int64, currency, market string) error
}

// TxManager serializes attachment per organization. The callback receives
// transaction-scoped repositories; all reads and writes inside it happen
// under a row-level lock on the organization.
type TxManager interface {
	RunInOrgTx(ctx context.Context, orgID int64, fn func(ctx context.Context, assocs AssociationDB, orgs OrgDB) error) error
}

// Metrics is the telemetry surface the resolver emits on. Implemented by
// telemetry.Emitter; a no-op implementation serves tests and local runs.
type Metrics interface {
	RecordDataIntegrity(ctx context.Context, orgID int64, feature string)
	RecordBillingWarning(ctx context.Context, orgID int64, reason string)
}

// Service is the entitlement resolver.
type Service struct {
	plans   PlanDB
	assocs  AssociationDB
	orgs    OrgDB
	txm     TxManager
	memo    *cache.Memoizer
	ttl     time.Duration
	clock   types.Clock
	logger  *slog.Logger
	metrics Metrics

	// defaultAPIRateLimit applies when no plan or no limit row defines one.
	defaultAPIRateLimit int
}

// Config bundles the Service dependencies.
type Config struct {
	Plans               PlanDB
	Associations        AssociationDB
	Orgs                OrgDB
	TxManager           TxManager
	Cache               cache.Store
	CacheTTL            time.Duration
	Clock               types.Clock
	Logger              *slog.Logger
	Metrics             Metrics
	DefaultAPIRateLimit int
}

// NewService creates the entitlement Service. Cache, clock, logger and
// metrics default to an in-memory store, real time, slog.Default and no-op
// respectively.
func NewService(cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemoryStore(cfg.Clock)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	return &Service{
		plans:               cfg.Plans,
		assocs:              cfg.Associations,
		orgs:                cfg.Orgs,
		txm:                 cfg.TxManager,
		memo:                cache.NewMemoizer(cfg.Cache),
		ttl:                 cfg.CacheTTL,
		clock:               cfg.Clock,
		logger:              cfg.Logger,
		metrics:             cfg.Metrics,
		defaultAPIRateLimit: cfg.DefaultAPIRateLimit,
	}
}

// NopMetrics discards all metric emissions.
type NopMetrics struct{}

func (NopMetrics) RecordDataIntegrity(context.Context, int64, string) {}
func (NopMetrics) RecordBillingWarning(context.Context, int64, string) {}

// Invalidate synchronously evicts every cached entitlement entry for the
// organization. Called by every association write before it is reported
// complete to the caller.
func (s *Service) Invalidate(orgID int64) {
	s.memo.Store().EvictTag(cache.OrgTag(orgID))
	s.memo.Forget(cache.Key{Scope: cache.ScopeCurrentPlan, OrgID: orgID})
	s.memo.Forget(cache.Key{Scope: cache.ScopeHasActivePlan, OrgID: orgID})
	s.memo.Forget(cache.Key{Scope: cache.ScopeActivePlans, OrgID: orgID})
}

// GetCurrentPlan returns the plan of the highest-priority active association,
// ties broken by most recent start. Returns nil when no association is
// active. Memoized per organization with a short TTL; concurrent misses
// resolve with one query.
func (s *Service) GetCurrentPlan(ctx context.Context, orgID int64) (*types.Plan, error) {
	key := cache.Key{Scope: cache.ScopeCurrentPlan, OrgID: orgID}
	v, err := s.memo.Do(ctx, key, s.ttl, []string{cache.OrgTag(orgID)}, func(ctx context.Context) (any, error) {
		assoc, err := s.assocs.GetCurrent(ctx, orgID, s.clock.Now())
		if err != nil {
			return nil, err
		}
		if assoc == nil {
			return (*types.Plan)(nil), nil
		}
		return assoc.Plan, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Plan), nil
}

// HasActivePlan reports whether any association is currently active.
func (s *Service) HasActivePlan(ctx context.Context, orgID int64) (bool, error) {
	key := cache.Key{Scope: cache.ScopeHasActivePlan, OrgID: orgID}
	v, err := s.memo.Do(ctx, key, s.ttl, []string{cache.OrgTag(orgID)}, func(ctx context.Context) (any, error) {
		assoc, err := s.assocs.GetCurrent(ctx, orgID, s.clock.Now())
		if err != nil {
			return nil, err
		}
		return assoc != nil, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// ListActivePlans returns all active associations with plans hydrated,
// ordered with the current plan first.
func (s *Service) ListActivePlans(ctx context.Context, orgID int64) ([]types.OrganizationPlan, error) {
	key := cache.Key{Scope: cache.ScopeActivePlans, OrgID: orgID}
	v, err := s.memo.Do(ctx, key, s.ttl, []string{cache.OrgTag(orgID)}, func(ctx context.Context) (any, error) {
		return s.assocs.ListActive(ctx, orgID, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.OrganizationPlan), nil
}

// GetTrialInfo derives the trial state from the current association's trial
// dates. When nothing is active it falls back to the most recent association
// for display, and a lapsed plan never reports as still in trial.
func (s *Service) GetTrialInfo(ctx context.Context, orgID int64) (types.TrialInfo, error) {
	now := s.clock.Now()

	assoc, err := s.assocs.GetCurrent(ctx, orgID, now)
	if err != nil {
		return types.TrialInfo{}, err
	}

	if assoc == nil {
		latest, err := s.assocs.GetLatest(ctx, orgID)
		if err != nil {
			return types.TrialInfo{}, err
		}
		if latest == nil || latest.TrialEnd == nil {
			return types.TrialInfo{}, nil
		}
		// Inactive fallback: the plan has lapsed, so whatever the recorded
		// dates say, the trial is over.
		return types.TrialInfo{
			IsActive:      false,
			IsExpired:     true,
			DaysRemaining: types.DaysUntil(now, *latest.TrialEnd),
			EndsAt:        latest.TrialEnd,
		}, nil
	}

	if assoc.TrialStart == nil || assoc.TrialEnd == nil {
		return types.TrialInfo{}, nil
	}
	return types.TrialInfo{
		IsActive:      assoc.TrialStart.Before(now) && assoc.TrialEnd.After(now),
		IsExpired:     assoc.TrialEnd.Before(now),
		DaysRemaining: types.DaysUntil(now, *assoc.TrialEnd),
		EndsAt:        assoc.TrialEnd,
	}, nil
}
