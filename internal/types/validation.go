package types

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validation constraint constants.
const (
	MaxNameLength  = 200
	MaxSlugLength  = 100
	MaxNotesLength = 2000
)

// slugPattern matches lowercase url-safe slugs ("starter-yearly").
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// validate is the shared validator instance for struct-tag validation.
// go-playground/validator is safe for concurrent use.
var validate = validator.New()

// ValidateSlug checks that a plan or tenant slug is well formed.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%s: slug is required", ErrCodeValidationMissingField)
	}
	if len(slug) > MaxSlugLength || !slugPattern.MatchString(slug) {
		return fmt.Errorf("%s: malformed slug %q", ErrCodeValidationInvalidSlug, slug)
	}
	return nil
}

// ValidOrgRoles is the closed set of organization-level roles.
var ValidOrgRoles = map[OrgRole]bool{
	OrgRoleOwner:  true,
	OrgRoleAdmin:  true,
	OrgRoleMember: true,
}

// ValidWorkspaceRoles is the closed set of workspace-level roles.
var ValidWorkspaceRoles = map[WorkspaceRole]bool{
	WorkspaceRoleManager: true,
	WorkspaceRoleEditor:  true,
	WorkspaceRoleViewer:  true,
}

// ValidateOrgRole rejects role values outside the closed set.
func ValidateOrgRole(role OrgRole) error {
	if !ValidOrgRoles[role] {
		return fmt.Errorf("%s: unknown organization role %q", ErrCodeValidationInvalidRole, role)
	}
	return nil
}

// ValidateWorkspaceRole rejects role values outside the closed set.
func ValidateWorkspaceRole(role WorkspaceRole) error {
	if !ValidWorkspaceRoles[role] {
		return fmt.Errorf("%s: unknown workspace role %q", ErrCodeValidationInvalidRole, role)
	}
	return nil
}

// Validate implements the Validator interface for AttachAttributes.
// Struct tags cover shape; the time-ordering rules are checked here because
// they span multiple fields.
func (a *AttachAttributes) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%s: %w", ErrCodeValidationAttributes, err)
	}
	if a.TrialStart != nil && a.TrialEnd != nil && !a.TrialEnd.After(*a.TrialStart) {
		return fmt.Errorf("%s: trial_end must be after trial_start", ErrCodeValidationAttributes)
	}
	if a.StartedAt != nil && a.EndsAt != nil && !a.EndsAt.After(*a.StartedAt) {
		return fmt.Errorf("%s: ends_at must be after started_at", ErrCodeValidationAttributes)
	}
	return nil
}

// ValidateStruct runs struct-tag validation on any tagged value. Used by the
// config loader and service entry points.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// DaysUntil returns the number of complete 24-hour periods from now until t,
// truncated toward zero and negative when t is in the past. A target less
// than a full day away reports 0 regardless of calendar date boundaries.
// Both instants are compared in UTC.
func DaysUntil(now, t time.Time) int {
	return int(t.UTC().Sub(now.UTC()).Hours() / 24)
}
