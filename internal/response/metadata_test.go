package response_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rpggio/interview/internal/response"
	"github.com/rpggio/interview/internal/sources"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, info := response.Paginate(items, 0, 2)
	require.Equal(t, []int{1, 2}, page)
	require.True(t, info.More)

	page, info = response.Paginate(items, 4, 2)
	require.Equal(t, []int{5}, page)
	require.False(t, info.More)

	page, info = response.Paginate(items, 0, 5)
	require.Len(t, page, 5)
	require.False(t, info.More, "exactly limit results is not truncated")

	page, info = response.Paginate(items, 9, 2)
	require.Empty(t, page)
	require.False(t, info.More)
}

func TestAssemble_TruncatedWithToken(t *testing.T) {
	res := &sources.Resolution{Source: sources.TierLedgerMirror, Staleness: 1500 * time.Millisecond, CostUnits: 3}
	items := make([]int, 7)
	_, page := response.Paginate(items, 0, 5)

	md := response.Assemble(res, page, now)
	require.True(t, md.Truncated)
	require.NotEmpty(t, md.NextPageToken)
	require.Equal(t, int64(1500), md.FreshnessAgeMs)

	cursor, err := response.DecodeCursor(md.NextPageToken)
	require.NoError(t, err)
	require.Equal(t, 5, cursor.Offset)
	require.Equal(t, "ledger_mirror", cursor.Tier)
	require.Equal(t, now.Add(-1500*time.Millisecond).UnixMilli(), cursor.AsOf)
}

func TestAssemble_NotTruncated(t *testing.T) {
	res := &sources.Resolution{Source: sources.TierProjectionCache, CostUnits: 1}
	_, page := response.Paginate(make([]int, 5), 0, 5)

	md := response.Assemble(res, page, now)
	require.False(t, md.Truncated)
	require.Empty(t, md.NextPageToken)
}

func TestAssemble_PollHasNoContinuation(t *testing.T) {
	res := &sources.Resolution{Source: sources.TierComponentPoll, CostUnits: 8}
	_, page := response.Paginate(make([]int, 7), 0, 5)

	md := response.Assemble(res, page, now)
	require.True(t, md.Truncated)
	require.Empty(t, md.NextPageToken)
}

func TestDecodeCursor_Rejects(t *testing.T) {
	for _, token := range []string{"%%%", "bm90LWpzb24", response.EncodeCursor(response.Cursor{Offset: 3})} {
		_, err := response.DecodeCursor(token)
		require.ErrorIs(t, err, response.ErrInvalidPageToken)
	}
}

func TestAssemble_GoldenDegraded(t *testing.T) {
	res := &sources.Resolution{
		Source:    sources.TierComponentPoll,
		Staleness: 0,
		CostUnits: 8,
		Degraded:  true,
		Attempts: []sources.Attempt{
			{Tier: sources.TierProjectionCache, Outcome: sources.OutcomeMiss},
			{Tier: sources.TierLedgerMirror, Outcome: sources.OutcomeUnavailable, Reason: "ledger_mirror unavailable: connection refused"},
			{Tier: sources.TierComponentPoll, Outcome: sources.OutcomeAnswered},
		},
	}
	_, page := response.Paginate(make([]int, 3), 0, 5)

	data, err := json.MarshalIndent(response.Assemble(res, page, now), "", "  ")
	require.NoError(t, err)
	data = append(data, '\n')

	g := goldie.New(t)
	g.Assert(t, "metadata_degraded", data)
}
