package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSlug(t *testing.T) {
	valid := []string{"free", "pro", "starter-yearly", "tier-2", "a"}
	for _, slug := range valid {
		assert.NoError(t, ValidateSlug(slug), "slug=%s", slug)
	}

	invalid := []string{"", "Pro", "has space", "-leading", "trailing-", "double--dash", "uné"}
	for _, slug := range invalid {
		assert.Error(t, ValidateSlug(slug), "slug=%s", slug)
	}
}

func TestValidateOrgRole(t *testing.T) {
	assert.NoError(t, ValidateOrgRole(OrgRoleOwner))
	assert.NoError(t, ValidateOrgRole(OrgRoleAdmin))
	assert.NoError(t, ValidateOrgRole(OrgRoleMember))
	assert.Error(t, ValidateOrgRole(OrgRole("superuser")))
	assert.Error(t, ValidateOrgRole(OrgRole("")))
}

func TestValidateWorkspaceRole(t *testing.T) {
	assert.NoError(t, ValidateWorkspaceRole(WorkspaceRoleManager))
	assert.Error(t, ValidateWorkspaceRole(WorkspaceRole("owner")))
}

func TestAttachAttributesValidate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	later := now.Add(24 * time.Hour)

	t.Run("empty is valid", func(t *testing.T) {
		assert.NoError(t, (&AttachAttributes{}).Validate())
	})

	t.Run("well formed", func(t *testing.T) {
		a := &AttachAttributes{
			StartedAt:    &now,
			EndsAt:       &later,
			TrialStart:   &now,
			TrialEnd:     &later,
			BillingCycle: CycleMonthly,
			Quantity:     2,
		}
		assert.NoError(t, a.Validate())
	})

	t.Run("bad billing cycle", func(t *testing.T) {
		a := &AttachAttributes{BillingCycle: BillingCycle("weekly")}
		assert.Error(t, a.Validate())
	})

	t.Run("zero quantity allowed as unset", func(t *testing.T) {
		assert.NoError(t, (&AttachAttributes{Quantity: 0}).Validate())
	})

	t.Run("negative quantity rejected", func(t *testing.T) {
		assert.Error(t, (&AttachAttributes{Quantity: -1}).Validate())
	})

	t.Run("ends before start rejected", func(t *testing.T) {
		a := &AttachAttributes{StartedAt: &later, EndsAt: &now}
		assert.Error(t, a.Validate())
	})

	t.Run("trial end before trial start rejected", func(t *testing.T) {
		a := &AttachAttributes{TrialStart: &later, TrialEnd: &now}
		assert.Error(t, a.Validate())
	})
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 4, DaysUntil(now, now.Add(4*24*time.Hour)))
	assert.Equal(t, 0, DaysUntil(now, now.Add(12*time.Hour)))
	assert.Equal(t, 0, DaysUntil(now, now))
	assert.Equal(t, -2, DaysUntil(now, now.Add(-2*24*time.Hour)))

	// Truncation, not calendar days: just under 24h is still 0 even when the
	// target sits on the far side of a midnight boundary.
	midnight := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysUntil(midnight, midnight.Add(23*time.Hour+59*time.Minute)))
	assert.Equal(t, 1, DaysUntil(midnight, midnight.Add(24*time.Hour)))
}

func TestOrgRoleAtLeast(t *testing.T) {
	assert.True(t, OrgRoleOwner.AtLeast(OrgRoleAdmin))
	assert.True(t, OrgRoleAdmin.AtLeast(OrgRoleAdmin))
	assert.False(t, OrgRoleMember.AtLeast(OrgRoleAdmin))
	assert.False(t, OrgRole("").AtLeast(OrgRoleMember))
}

func TestWorkspaceRoleAtLeast(t *testing.T) {
	assert.True(t, WorkspaceRoleManager.AtLeast(WorkspaceRoleViewer))
	assert.True(t, WorkspaceRoleEditor.AtLeast(WorkspaceRoleEditor))
	assert.False(t, WorkspaceRoleViewer.AtLeast(WorkspaceRoleEditor))
}

func TestAssociationActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	base := OrganizationPlan{
		Status:    AssociationActive,
		StartedAt: earlier,
	}

	t.Run("open ended", func(t *testing.T) {
		assert.True(t, base.ActiveAt(now))
	})

	t.Run("future end", func(t *testing.T) {
		a := base
		a.EndsAt = &later
		assert.True(t, a.ActiveAt(now))
	})

	t.Run("ended", func(t *testing.T) {
		a := base
		a.EndsAt = &earlier
		assert.False(t, a.ActiveAt(now))
	})

	t.Run("not started yet", func(t *testing.T) {
		a := base
		a.StartedAt = later
		assert.False(t, a.ActiveAt(now))
	})

	t.Run("revoked", func(t *testing.T) {
		a := base
		a.IsRevoked = true
		assert.False(t, a.ActiveAt(now))
	})

	t.Run("cancelled status", func(t *testing.T) {
		a := base
		a.Status = AssociationCancelled
		assert.False(t, a.ActiveAt(now))
	})
}

func TestSecretStringRedaction(t *testing.T) {
	s := SecretString("super-secret")

	assert.Equal(t, "***REDACTED***", s.String())
	assert.Equal(t, "super-secret", s.Unmask())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"***REDACTED***"`, string(data))
}
