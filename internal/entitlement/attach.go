package entitlement

import (
	"context"
	"log/slog"

	"workhub/internal/types"
)

// AttachPlan associates a plan with an organization. It is the single write
// path for plan associations: billing webhooks, manual admin actions and
// free-tier assignment all funnel through here.
//
// Business rules, applied in order inside one per-organization transaction:
//  1. Resolve the plan by slug. Unknown slugs log and return nil (non-fatal).
//  2. Free tier is a singleton: if an active free association exists, skip.
//  3. Paid plans take precedence: the free tier cannot be attached while any
//     non-free association is active.
//  4. Attaching a paid plan cancels any active free association. Any paid
//     attach adopts the plan's currency/market where the organization still
//     carries onboarding defaults, whether or not a free association exists.
//  5. The new association starts now, quantity 1, merged with attrs.
//  6. The organization's entitlement cache is evicted before returning.
//
// A nil result with nil error means the attachment was skipped by rule; the
// caller decides whether that is user-facing.
func (s *Service) AttachPlan(ctx context.Context, orgID int64, planSlug string, attrs *types.AttachAttributes) (*types.OrganizationPlan, error) {
	if attrs != nil {
		if err := attrs.Validate(); err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationAttributes, "invalid attach attributes", err)
		}
	}

	plan, err := s.plans.GetBySlug(ctx, planSlug)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		s.logger.Warn("attach skipped: plan slug not found",
			slog.Int64("org_id", orgID),
			slog.String("plan_slug", planSlug),
		)
		s.metrics.RecordBillingWarning(ctx, orgID, "unknown_plan_slug")
		return nil, nil
	}

	var created *types.OrganizationPlan
	err = s.txm.RunInOrgTx(ctx, orgID, func(ctx context.Context, assocs AssociationDB, orgs OrgDB) error {
		now := s.clock.Now()

		// All decisions below re-read association state under the org lock;
		// the cache is never consulted on this path.
		activeFree, err := assocs.GetActiveBySlug(ctx, orgID, types.PlanSlugFree, now)
		if err != nil {
			return err
		}

		if plan.IsFreeTier() {
			if activeFree != nil {
				s.logger.Info("attach skipped: free tier already active",
					slog.Int64("org_id", orgID),
				)
				return nil
			}
			active, err := assocs.ListActive(ctx, orgID, now)
			if err != nil {
				return err
			}
			for _, a := range active {
				if a.Plan != nil && !a.Plan.IsFreeTier() {
					s.logger.Info("attach skipped: paid plan active, free tier not attachable",
						slog.Int64("org_id", orgID),
						slog.String("active_plan", a.Plan.Slug),
					)
					return nil
				}
			}
		} else {
			if activeFree != nil {
				if err := assocs.Cancel(ctx, activeFree.ID, now, "replaced by paid plan"); err != nil {
					return err
				}
			}
			org, err := orgs.GetByID(ctx, orgID)
			if err != nil {
				return err
			}
			if org.HasOnboardingDefaults() {
				if err := orgs.UpdateBillingDefaults(ctx, orgID, plan.Currency, plan.Market); err != nil {
					return err
				}
			}
		}

		assoc := &types.OrganizationPlan{
			OrganizationID: orgID,
			PlanID:         plan.ID,
			Status:         types.AssociationActive,
			StartedAt:      now,
			BillingCycle:   plan.BillingCycle,
			Quantity:       1,
		}
		applyAttachAttributes(assoc, attrs)

		if err := assocs.Create(ctx, assoc); err != nil {
			return err
		}
		assoc.Plan = plan
		created = assoc
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Evict synchronously: the attachment is not complete until no cached
	// read can observe the previous plan state.
	s.Invalidate(orgID)

	if created != nil {
		args := []any{
			slog.Int64("org_id", orgID),
			slog.String("plan_slug", plan.Slug),
			slog.Int64("association_id", created.ID),
		}
		s.logger.Info("plan attached", append(args, ctxAttrs(ctx)...)...)
	}
	return created, nil
}

// ctxAttrs returns log attributes identifying the actor and request carried
// in ctx, empty when neither is present. Plan attachment is the audit point
// for billing changes, so every write logs who asked for it when known.
func ctxAttrs(ctx context.Context) []any {
	var attrs []any
	if actor, ok := types.GetActor(ctx); ok {
		attrs = append(attrs,
			slog.Int64("actor_user_id", actor.UserID),
			slog.String("actor_type", string(actor.Type)),
		)
	}
	if rid := types.GetRequestID(ctx); rid != "" {
		attrs = append(attrs, slog.String("request_id", rid))
	}
	return attrs
}

// applyAttachAttributes merges caller-supplied attributes over the defaults.
func applyAttachAttributes(assoc *types.OrganizationPlan, attrs *types.AttachAttributes) {
	if attrs == nil {
		return
	}
	if attrs.StartedAt != nil {
		assoc.StartedAt = *attrs.StartedAt
	}
	if attrs.EndsAt != nil {
		assoc.EndsAt = attrs.EndsAt
	}
	if attrs.TrialStart != nil {
		assoc.TrialStart = attrs.TrialStart
	}
	if attrs.TrialEnd != nil {
		assoc.TrialEnd = attrs.TrialEnd
	}
	if attrs.BillingCycle != "" {
		assoc.BillingCycle = attrs.BillingCycle
	}
	if attrs.Quantity > 0 {
		assoc.Quantity = attrs.Quantity
	}
	if attrs.Charging != nil {
		assoc.Charging = attrs.Charging
	}
	if attrs.Notes != "" {
		assoc.Notes = attrs.Notes
	}
}

// DetachPlan cancels the organization's active association for the given
// plan slug: status becomes cancelled and ends_at is set to now. The row is
// kept as history. A nil error with no active association is a no-op.
func (s *Service) DetachPlan(ctx context.Context, orgID int64, planSlug string) error {
	detached := false
	err := s.txm.RunInOrgTx(ctx, orgID, func(ctx context.Context, assocs AssociationDB, orgs OrgDB) error {
		now := s.clock.Now()
		active, err := assocs.GetActiveBySlug(ctx, orgID, planSlug, now)
		if err != nil {
			return err
		}
		if active == nil {
			s.logger.Info("detach skipped: no active association",
				slog.Int64("org_id", orgID),
				slog.String("plan_slug", planSlug),
			)
			return nil
		}
		if err := assocs.Cancel(ctx, active.ID, now, "detached"); err != nil {
			return err
		}
		detached = true
		return nil
	})
	if err != nil {
		return err
	}

	s.Invalidate(orgID)

	if detached {
		args := []any{
			slog.Int64("org_id", orgID),
			slog.String("plan_slug", planSlug),
		}
		s.logger.Info("plan detached", append(args, ctxAttrs(ctx)...)...)
	}
	return nil
}
