package capability_test

import (
	"testing"

	"github.com/rpggio/interview/internal/domain/capability"
	"github.com/stretchr/testify/require"
)

func TestParseSet(t *testing.T) {
	set, err := capability.ParseSet([]string{"can_poll_queue", " CAN_VIEW_RECEIPTS "})
	require.NoError(t, err)
	require.True(t, set.Has(capability.PollQueue))
	require.True(t, set.Has(capability.ViewReceipts))
	require.False(t, set.Has(capability.ForceGlobalLedger))
	require.Equal(t, []capability.Capability{capability.PollQueue, capability.ViewReceipts}, set.List())
}

func TestParseSet_Unknown(t *testing.T) {
	_, err := capability.ParseSet([]string{"can_write_receipts"})
	require.ErrorIs(t, err, capability.ErrUnknownCapability)
}

func TestZeroSetGrantsNothing(t *testing.T) {
	var set capability.Set
	for _, c := range capability.All() {
		require.False(t, set.Has(c))
	}
	require.Empty(t, set.List())
}
