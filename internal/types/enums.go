package types

// OrgRole defines authorization levels within an organization.
type OrgRole string

const (
	OrgRoleOwner  OrgRole = "owner"
	OrgRoleAdmin  OrgRole = "admin"
	OrgRoleMember OrgRole = "member"
)

// orgRoleRank orders organization roles for privilege comparisons.
// Owner > Admin > Member. Unknown roles rank below Member.
var orgRoleRank = map[OrgRole]int{
	OrgRoleOwner:  3,
	OrgRoleAdmin:  2,
	OrgRoleMember: 1,
}

// AtLeast reports whether the role carries at least the privilege of other.
func (r OrgRole) AtLeast(other OrgRole) bool {
	return orgRoleRank[r] >= orgRoleRank[other]
}

// IsAdministrative reports whether the role grants implicit access to every
// workspace in the organization.
func (r OrgRole) IsAdministrative() bool {
	return r == OrgRoleOwner || r == OrgRoleAdmin
}

// WorkspaceRole defines authorization levels within a workspace.
type WorkspaceRole string

const (
	WorkspaceRoleManager WorkspaceRole = "manager"
	WorkspaceRoleEditor  WorkspaceRole = "editor"
	WorkspaceRoleViewer  WorkspaceRole = "viewer"
)

var workspaceRoleRank = map[WorkspaceRole]int{
	WorkspaceRoleManager: 3,
	WorkspaceRoleEditor:  2,
	WorkspaceRoleViewer:  1,
}

// AtLeast reports whether the role carries at least the privilege of other.
func (r WorkspaceRole) AtLeast(other WorkspaceRole) bool {
	return workspaceRoleRank[r] >= workspaceRoleRank[other]
}

// AssociationStatus is the lifecycle state of an organization-plan association.
type AssociationStatus string

const (
	AssociationActive    AssociationStatus = "active"
	AssociationCancelled AssociationStatus = "cancelled"
	AssociationExpired   AssociationStatus = "expired"
	AssociationPending   AssociationStatus = "pending"
)

// PlanLimitType distinguishes numeric limits from boolean feature gates.
type PlanLimitType string

const (
	LimitTypeLimit   PlanLimitType = "limit"
	LimitTypeBoolean PlanLimitType = "boolean"
)

// BillingCycle identifies how often a plan renews.
type BillingCycle string

const (
	CycleMonthly  BillingCycle = "monthly"
	CycleYearly   BillingCycle = "yearly"
	CycleLifetime BillingCycle = "lifetime"
)

// PeriodType determines how a usage tracking row expires.
type PeriodType string

const (
	PeriodLifetime PeriodType = "lifetime"
	PeriodPeriodic PeriodType = "periodic"
)

// MembershipStatus represents the lifecycle state of a membership edge.
type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipInvited MembershipStatus = "invited"
)

// PlanSlugFree is the only slug treated as the free tier. Other zero-price
// plans are promotional and do not trigger free-tier business rules.
const PlanSlugFree = "free"

// FeatureAPIRateLimit is the catalog key for the organization-wide API rate limit.
const FeatureAPIRateLimit = "api_rate_limit"

// UnlimitedLimit is the sentinel stored as "-1" meaning no cap is enforced.
const UnlimitedLimit = -1
