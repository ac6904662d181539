package billing

import (
	"context"
	"log/slog"

	"workhub/internal/types"
)

// PlanAttacher is the slice of the entitlement service the processor needs.
type PlanAttacher interface {
	AttachPlan(ctx context.Context, orgID int64, planSlug string, attrs *types.AttachAttributes) (*types.OrganizationPlan, error)
	DetachPlan(ctx context.Context, orgID int64, planSlug string) error
}

// PlanCatalog resolves plan pricing for checkout.
type PlanCatalog interface {
	GetBySlug(ctx context.Context, slug string) (*types.Plan, error)
}

// Processor drives the purchase flow: charge through the gateway, then
// record the entitlement. It never writes plan associations itself; the
// entitlement service owns that path and its invariants.
type Processor struct {
	gateway     Gateway
	plans       PlanCatalog
	entitlement PlanAttacher
	logger      *slog.Logger
}

// NewProcessor creates a purchase Processor.
func NewProcessor(gateway Gateway, plans PlanCatalog, entitlement PlanAttacher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		gateway:     gateway,
		plans:       plans,
		entitlement: entitlement,
		logger:      logger,
	}
}

// PurchaseRequest describes one plan purchase.
type PurchaseRequest struct {
	Organization *types.Organization
	PlanSlug     string
	Attributes   *types.AttachAttributes

	// IdempotencyKey dedupes retried charges at the provider. Callers should
	// derive it from their own request id.
	IdempotencyKey string
}

// Purchase charges the organization for a plan and attaches it on success.
// Free-tier plans skip the gateway entirely. A declined charge returns
// payment_declined without touching entitlements.
func (p *Processor) Purchase(ctx context.Context, req PurchaseRequest) (*types.OrganizationPlan, error) {
	if req.Organization == nil {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "organization is required", nil)
	}

	plan, err := p.plans.GetBySlug(ctx, req.PlanSlug)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "plan not found: "+req.PlanSlug, nil)
	}

	attrs := req.Attributes
	if attrs == nil {
		attrs = &types.AttachAttributes{}
	}

	if plan.IsFreeTier() || plan.Price == 0 {
		return p.entitlement.AttachPlan(ctx, req.Organization.ID, plan.Slug, attrs)
	}

	currency := plan.Currency
	if req.Organization.Currency != "" {
		currency = req.Organization.Currency
	}

	result, err := p.gateway.Checkout(ctx, ChargeRequest{
		OrganizationUUID: req.Organization.UUID,
		PlanSlug:         plan.Slug,
		AmountCents:      plan.Price,
		Currency:         currency,
		IdempotencyKey:   req.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	if !result.Succeeded {
		p.logger.Info("charge declined",
			slog.Int64("org_id", req.Organization.ID),
			slog.String("plan_slug", plan.Slug),
			slog.String("failure_code", result.FailureCode),
		)
		return nil, types.NewAppErrorWithDetails(types.ErrCodePaymentDeclined, "payment was declined", nil,
			map[string]any{"failure_code": result.FailureCode})
	}

	if attrs.Charging == nil {
		attrs.Charging = types.ChargingMeta{}
	}
	attrs.Charging["transaction_id"] = result.TransactionID
	attrs.Charging["provider"] = "stripe"

	assoc, err := p.entitlement.AttachPlan(ctx, req.Organization.ID, plan.Slug, attrs)
	if err != nil {
		// The charge went through but the entitlement write failed. Surface
		// the transaction id so the operator can refund or replay.
		p.logger.Error("charged but failed to attach plan",
			slog.Int64("org_id", req.Organization.ID),
			slog.String("plan_slug", plan.Slug),
			slog.String("transaction_id", result.TransactionID),
			slog.Any("error", err),
		)
		return nil, err
	}
	return assoc, nil
}

// CancelSubscription detaches the named plan. Refunds are handled out of
// band by the provider's dashboard.
func (p *Processor) CancelSubscription(ctx context.Context, orgID int64, planSlug string) error {
	return p.entitlement.DetachPlan(ctx, orgID, planSlug)
}
