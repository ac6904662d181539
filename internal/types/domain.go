package types

import (
	"time"
)

// Organization is the top-level tenant. It owns workspaces and the billing
// relationship (plan associations).
type Organization struct {
	ID       int64  `json:"id" db:"id"`
	UUID     string `json:"uuid" db:"uuid"`
	Name     string `json:"name" db:"name"`
	Slug     string `json:"slug" db:"slug"`
	OwnerID  int64  `json:"owner_id" db:"owner_id"`
	Currency string `json:"currency" db:"currency"`
	Market   string `json:"market" db:"market"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// HasOnboardingDefaults reports whether the organization still carries the
// placeholder currency/market assigned at signup. Plan attachment adopts the
// plan's currency/market in that case.
func (o *Organization) HasOnboardingDefaults() bool {
	return o.Currency == "" || o.Market == ""
}

// Workspace is a sub-tenant within an organization; the unit of day-to-day
// collaboration.
type Workspace struct {
	ID             int64  `json:"id" db:"id"`
	UUID           string `json:"uuid" db:"uuid"`
	OrganizationID int64  `json:"organization_id" db:"organization_id"`
	Name           string `json:"name" db:"name"`
	Slug           string `json:"slug" db:"slug"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// User represents a human account. Current organization/workspace pointers
// behave like session state: they scope the user's requests.
type User struct {
	ID                 int64  `json:"id" db:"id"`
	UUID               string `json:"uuid" db:"uuid"`
	Email              string `json:"email" db:"email"`
	Name               string `json:"name,omitempty" db:"name"`
	CurrentOrgID       *int64 `json:"current_organization_id,omitempty" db:"current_organization_id"`
	CurrentWorkspaceID *int64 `json:"current_workspace_id,omitempty" db:"current_workspace_id"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// OrganizationUser is the membership edge between an organization and a user.
// A user has at most one row per organization.
type OrganizationUser struct {
	OrganizationID int64            `json:"organization_id" db:"organization_id"`
	UserID         int64            `json:"user_id" db:"user_id"`
	Role           OrgRole          `json:"role" db:"role"`
	Capabilities   Capabilities     `json:"capabilities,omitempty" db:"capabilities"`
	Status         MembershipStatus `json:"status" db:"status"`
	InvitedByID    *int64           `json:"invited_by_id,omitempty" db:"invited_by_id"`
	JoinedAt       time.Time        `json:"joined_at" db:"joined_at"`
}

// WorkspaceUser is the membership edge between a workspace and a user.
// At most one row per (workspace, user).
type WorkspaceUser struct {
	WorkspaceID  int64            `json:"workspace_id" db:"workspace_id"`
	UserID       int64            `json:"user_id" db:"user_id"`
	Role         WorkspaceRole    `json:"role" db:"role"`
	Capabilities Capabilities     `json:"capabilities,omitempty" db:"capabilities"`
	Status       MembershipStatus `json:"status" db:"status"`
	InvitedByID  *int64           `json:"invited_by_id,omitempty" db:"invited_by_id"`
	JoinedAt     time.Time        `json:"joined_at" db:"joined_at"`
}

// WorkspaceAccess pairs a workspace with the user's effective role in it.
// Direct is false when the role was materialized from an organization-level
// owner/admin role rather than a WorkspaceUser row.
type WorkspaceAccess struct {
	Workspace Workspace     `json:"workspace"`
	Role      WorkspaceRole `json:"role"`
	Direct    bool          `json:"direct"`
}

// Plan is a catalog entry. Slug is unique (e.g. "free", "starter-yearly").
// Group clusters billing-cycle variants of the same tier; Priority breaks
// ties when an organization holds several active associations.
type Plan struct {
	ID           int64        `json:"id" db:"id"`
	UUID         string       `json:"uuid" db:"uuid"`
	Slug         string       `json:"slug" db:"slug"`
	Name         string       `json:"name" db:"name"`
	Price        int64        `json:"price" db:"price"`
	MaxPrice     int64        `json:"max_price" db:"max_price"`
	Currency     string       `json:"currency" db:"currency"`
	Market       string       `json:"market" db:"market"`
	BillingCycle BillingCycle `json:"billing_cycle" db:"billing_cycle"`
	Priority     int          `json:"priority" db:"priority"`
	Group        string       `json:"group" db:"plan_group"`
	IsActive     bool         `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsFreeTier reports whether this plan is the free tier. Only the "free"
// slug qualifies; other zero-price plans are promotional.
func (p *Plan) IsFreeTier() bool {
	return p.Slug == PlanSlugFree
}

// PlanLimit holds one per-plan limit value. Value is stored as a string:
// numeric for LimitTypeLimit ("-1" meaning unlimited), "true"/"false" for
// LimitTypeBoolean.
type PlanLimit struct {
	PlanID  int64         `json:"plan_id" db:"plan_id"`
	Feature string        `json:"feature" db:"feature"`
	Value   string        `json:"value" db:"value"`
	Type    PlanLimitType `json:"type" db:"limit_type"`
}

// PlanFeature is catalog metadata for a feature key. It carries no numeric
// limit itself; limits live in PlanLimit rows.
type PlanFeature struct {
	ID       int64         `json:"id" db:"id"`
	Feature  string        `json:"feature" db:"feature"`
	Name     string        `json:"name" db:"name"`
	Category string        `json:"category" db:"category"`
	Period   PeriodType    `json:"period" db:"period"`
	Type     PlanLimitType `json:"type" db:"feature_type"`
}

// OrganizationPlan is the time-bounded association between an organization
// and a plan. Rows are never physically deleted; detachment sets
// status=cancelled and ends_at=now.
type OrganizationPlan struct {
	ID             int64             `json:"id" db:"id"`
	UUID           string            `json:"uuid" db:"uuid"`
	OrganizationID int64             `json:"organization_id" db:"organization_id"`
	PlanID         int64             `json:"plan_id" db:"plan_id"`
	Status         AssociationStatus `json:"status" db:"status"`
	IsRevoked      bool              `json:"is_revoked" db:"is_revoked"`
	RevokedAt      *time.Time        `json:"revoked_at,omitempty" db:"revoked_at"`
	RevokedByID    *int64            `json:"revoked_by_id,omitempty" db:"revoked_by_id"`
	StartedAt      time.Time         `json:"started_at" db:"started_at"`
	EndsAt         *time.Time        `json:"ends_at,omitempty" db:"ends_at"`
	TrialStart     *time.Time        `json:"trial_start,omitempty" db:"trial_start"`
	TrialEnd       *time.Time        `json:"trial_end,omitempty" db:"trial_end"`
	BillingCycle   BillingCycle      `json:"billing_cycle" db:"billing_cycle"`
	Quantity       int               `json:"quantity" db:"quantity"`
	Charging       ChargingMeta      `json:"charging,omitempty" db:"charging"`
	Notes          string            `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Hydrated from the plans table on list queries; not a column.
	Plan *Plan `json:"plan,omitempty" db:"-"`
}

// ActiveAt reports whether the association is active at the given instant:
// not revoked, status active, started, and not yet ended.
func (a *OrganizationPlan) ActiveAt(now time.Time) bool {
	if a.IsRevoked || a.Status != AssociationActive {
		return false
	}
	if a.StartedAt.After(now) {
		return false
	}
	return a.EndsAt == nil || a.EndsAt.After(now)
}

// OrganizationFeatureOverride grants an ad-hoc exception to a plan limit
// without altering the plan. An active override replaces the plan-derived
// limit outright.
type OrganizationFeatureOverride struct {
	ID             int64      `json:"id" db:"id"`
	OrganizationID int64      `json:"organization_id" db:"organization_id"`
	Feature        string     `json:"feature" db:"feature"`
	Value          string     `json:"value" db:"value"`
	Reason         string     `json:"reason" db:"reason"`
	ApprovedByID   *int64     `json:"approved_by_id,omitempty" db:"approved_by_id"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// ActiveAt reports whether the override applies at the given instant.
func (o *OrganizationFeatureOverride) ActiveAt(now time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// UsageTracking is one consumption counter for (organization, optional
// workspace, feature, period). A nil WorkspaceID denotes the organization-
// level aggregate. Rows are not reset in place; a new period creates a new row.
type UsageTracking struct {
	ID             int64      `json:"id" db:"id"`
	OrganizationID int64      `json:"organization_id" db:"organization_id"`
	WorkspaceID    *int64     `json:"workspace_id,omitempty" db:"workspace_id"`
	Feature        string     `json:"feature" db:"feature"`
	CurrentUsage   int        `json:"current_usage" db:"current_usage"`
	PeriodType     PeriodType `json:"period_type" db:"period_type"`
	PeriodStartsAt time.Time  `json:"period_starts_at" db:"period_starts_at"`
	PeriodEndsAt   *time.Time `json:"period_ends_at,omitempty" db:"period_ends_at"`
}

// ActiveAt reports whether the counter still accrues at the given instant.
func (u *UsageTracking) ActiveAt(now time.Time) bool {
	if u.PeriodType == PeriodLifetime {
		return true
	}
	return u.PeriodEndsAt == nil || u.PeriodEndsAt.After(now)
}

// WorkspaceFeatureLimit is a sub-allocation of an organization's pooled limit
// to one workspace. Allocated -1 means unlimited.
type WorkspaceFeatureLimit struct {
	WorkspaceID    int64     `json:"workspace_id" db:"workspace_id"`
	OrganizationID int64     `json:"organization_id" db:"organization_id"`
	Feature        string    `json:"feature" db:"feature"`
	Allocated      int       `json:"allocated" db:"allocated"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// TrialInfo is the derived trial state of an organization's current plan
// association. All fields are neutral when no plan or no trial dates exist.
type TrialInfo struct {
	IsActive      bool       `json:"is_active"`
	IsExpired     bool       `json:"is_expired"`
	DaysRemaining int        `json:"days_remaining"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
}

// AttachAttributes are the caller-supplied fields merged into a new plan
// association by AttachPlan. Zero values leave the defaults in place.
type AttachAttributes struct {
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	EndsAt       *time.Time   `json:"ends_at,omitempty"`
	TrialStart   *time.Time   `json:"trial_start,omitempty"`
	TrialEnd     *time.Time   `json:"trial_end,omitempty"`
	BillingCycle BillingCycle `json:"billing_cycle,omitempty" validate:"omitempty,oneof=monthly yearly lifetime"`
	Quantity     int          `json:"quantity,omitempty" validate:"omitempty,min=1"`
	Charging     ChargingMeta `json:"charging,omitempty"`
	Notes        string       `json:"notes,omitempty" validate:"omitempty,max=2000"`
}
