package authz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/interview/internal/domain/capability"
)

func TestNew_GrantsAcrossTenants(t *testing.T) {
	a, err := New(map[string][]string{
		"viewer": {"can_view_receipts", "can_view_artifacts"},
		"Admin":  {"can_view_receipts", "can_force_global_ledger"},
	})
	require.NoError(t, err)

	caps, err := a.Capabilities("viewer", "acme")
	require.NoError(t, err)
	require.Equal(t, []capability.Capability{capability.ViewArtifacts, capability.ViewReceipts}, caps.List())

	caps, err = a.Capabilities(" admin ", "globex")
	require.NoError(t, err)
	require.True(t, caps.Has(capability.ForceGlobalLedger))
	require.False(t, caps.Has(capability.PollHealth))
}

func TestNew_RejectsUnknownCapability(t *testing.T) {
	_, err := New(map[string][]string{"viewer": {"can_delete_everything"}})
	require.ErrorIs(t, err, capability.ErrUnknownCapability)
}

func TestCapabilities_UnknownRoleHoldsNothing(t *testing.T) {
	a, err := New(map[string][]string{"viewer": {"can_view_receipts"}})
	require.NoError(t, err)

	caps, err := a.Capabilities("intruder", "acme")
	require.NoError(t, err)
	require.Empty(t, caps.List())
}

func TestNewFromFiles_TenantScopedPolicy(t *testing.T) {
	a, err := NewFromFiles("testdata/model.conf", "testdata/policy.csv")
	require.NoError(t, err)

	caps, err := a.Capabilities("auditor", "acme")
	require.NoError(t, err)
	require.True(t, caps.Has(capability.ForceGlobalLedger))
	require.True(t, caps.Has(capability.ViewArtifacts))

	caps, err = a.Capabilities("auditor", "globex")
	require.NoError(t, err)
	require.Empty(t, caps.List())

	caps, err = a.Capabilities("operator", "globex")
	require.NoError(t, err)
	require.Equal(t, []capability.Capability{capability.PollHealth, capability.PollQueue, capability.ViewReceipts}, caps.List())
}
