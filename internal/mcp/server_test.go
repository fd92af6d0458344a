package mcp

import (
	"context"
	"encoding/json"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/interview/internal/auth"
	"github.com/rpggio/interview/internal/authz"
	"github.com/rpggio/interview/internal/domain/capability"
	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/domain/receipt"
	"github.com/rpggio/interview/internal/domain/status"
	"github.com/rpggio/interview/internal/response"
	"github.com/rpggio/interview/internal/sources"
	"github.com/rpggio/interview/internal/viewer"
)

type viewerStub struct {
	lastQuery query.ScopedQuery
	lastCaps  capability.Set
	err       error
}

func (v *viewerStub) record(q query.ScopedQuery, caps capability.Set) {
	v.lastQuery = q
	v.lastCaps = caps
}

func (v *viewerStub) ResolveStatus(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.StatusResult, error) {
	v.record(q, caps)
	if v.err != nil {
		return nil, v.err
	}
	return &viewer.StatusResult{
		Status:   viewer.StatusSummary{TenantID: q.TenantID, RootTaskID: q.RootTask(), State: status.StateResolved, ArtifactPointers: []string{}},
		Metadata: response.Metadata{Source: "ledger_mirror", CostUnits: 3},
	}, nil
}

func (v *viewerStub) SearchReceipts(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ReceiptsResult, error) {
	v.record(q, caps)
	return &viewer.ReceiptsResult{Receipts: []receipt.Receipt{{ReceiptID: "r1", Kind: receipt.KindAccepted}}}, v.err
}

func (v *viewerStub) GetReceipt(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ReceiptResult, error) {
	v.record(q, caps)
	return &viewer.ReceiptResult{}, v.err
}

func (v *viewerStub) PollHealth(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.HealthResult, error) {
	v.record(q, caps)
	if v.err != nil {
		return nil, v.err
	}
	return &viewer.HealthResult{}, nil
}

func (v *viewerStub) PollQueue(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.QueueResult, error) {
	v.record(q, caps)
	return &viewer.QueueResult{}, v.err
}

func (v *viewerStub) ListArtifactInventory(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ArtifactsResult, error) {
	v.record(q, caps)
	return &viewer.ArtifactsResult{}, v.err
}

func (v *viewerStub) SearchGlobalLedger(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ReceiptsResult, error) {
	v.record(q, caps)
	if v.err != nil {
		return nil, v.err
	}
	return &viewer.ReceiptsResult{Receipts: []receipt.Receipt{}}, nil
}

func connect(t *testing.T, mode string, v Viewer) *sdkmcp.ClientSession {
	t.Helper()
	roles, err := authz.New(map[string][]string{
		"admin":  {"can_view_receipts", "can_poll_health", "can_force_global_ledger"},
		"viewer": {"can_view_receipts"},
	})
	require.NoError(t, err)
	store, err := auth.NewStore(nil, roles)
	require.NoError(t, err)

	server := NewServer(Config{
		Viewer:        v,
		Auth:          store,
		Authorizer:    store,
		LocalRole:     "admin",
		TransportMode: mode,
		Info:          viewer.Describe("test", "instance-1"),
	})

	ctx := context.Background()
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any) (*sdkmcp.CallToolResult, map[string]any) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &body))
	return res, body
}

func TestListTools(t *testing.T) {
	cs := connect(t, "stdio", &viewerStub{})

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"interview.health",
		"status.receipts.interview",
		"search.receipts.interview",
		"get.receipt.interview",
		"health.async.interview",
		"queue.async.interview",
		"inventory.artifacts.depot.interview",
		"global.ledger.receipts",
	}, names)
}

func TestStatusTool_Stdio(t *testing.T) {
	v := &viewerStub{}
	cs := connect(t, "stdio", v)

	res, body := callTool(t, cs, "status.receipts.interview", map[string]any{
		"tenant_id":    "acme",
		"root_task_id": "root-1",
		"freshness":    "fresh",
	})
	require.False(t, res.IsError)
	assert.Equal(t, "resolved", body["status"].(map[string]any)["state"])
	assert.Equal(t, "ledger_mirror", body["metadata"].(map[string]any)["source"])
	assert.Equal(t, query.FreshnessFresh, v.lastQuery.Freshness)
	assert.True(t, v.lastCaps.Has(capability.ForceGlobalLedger))
}

func TestSearchTool_MapsArguments(t *testing.T) {
	v := &viewerStub{}
	cs := connect(t, "stdio", v)

	res, _ := callTool(t, cs, "search.receipts.interview", map[string]any{
		"tenant_id":         "acme",
		"root_task_id":      "root-1",
		"phase":             "accepted",
		"recipient_ai":      "worker",
		"filter":            `receipt.status == "ok"`,
		"limit":             5,
		"time_window_hours": 48,
		"include_body":      true,
	})
	require.False(t, res.IsError)
	assert.Equal(t, receipt.KindAccepted, v.lastQuery.Kind)
	assert.Equal(t, "worker", v.lastQuery.RecipientAI)
	assert.Equal(t, `receipt.status == "ok"`, v.lastQuery.Expr)
	assert.Equal(t, 5, v.lastQuery.Limit)
	assert.Equal(t, 48.0, v.lastQuery.TimeWindow.Hours())
	assert.True(t, v.lastQuery.IncludeBody)
}

func TestTool_ErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{&query.ValidationError{Field: "limit", Reason: "too big"}, "VALIDATION_ERROR"},
		{&viewer.CapabilityError{Capability: capability.PollHealth}, "CAPABILITY_REQUIRED"},
		{sources.ErrGlobalLedgerDisabled, "GLOBAL_LEDGER_DISABLED"},
		{sources.ErrGlobalLedgerForbidden, "GLOBAL_LEDGER_FORBIDDEN"},
		{&sources.SourceExhaustedError{Attempts: []sources.Attempt{{Tier: sources.TierComponentPoll, Outcome: sources.OutcomeRateLimited}}}, "RATE_LIMITED"},
		{&sources.SourceExhaustedError{Attempts: []sources.Attempt{{Tier: sources.TierComponentPoll, Outcome: sources.OutcomeUnavailable}}}, "SOURCE_EXHAUSTED"},
	}
	for _, tc := range cases {
		cs := connect(t, "stdio", &viewerStub{err: tc.err})
		res, body := callTool(t, cs, "global.ledger.receipts", map[string]any{"tenant_id": "acme", "root_task_id": "root-1"})
		assert.True(t, res.IsError, tc.code)
		assert.Equal(t, tc.code, body["code"])
	}
}

func TestTool_HTTPWithoutKeyIsUnauthorized(t *testing.T) {
	v := &viewerStub{}
	cs := connect(t, "http", v)

	res, body := callTool(t, cs, "status.receipts.interview", map[string]any{"tenant_id": "acme", "root_task_id": "root-1"})
	assert.True(t, res.IsError)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
	assert.Empty(t, v.lastQuery.TenantID, "viewer never called")
}

func TestInfoTool(t *testing.T) {
	cs := connect(t, "http", &viewerStub{})

	res, body := callTool(t, cs, "interview.health", map[string]any{})
	require.False(t, res.IsError)
	assert.Equal(t, "InterView", body["service"])
	assert.Equal(t, "instance-1", body["instance_id"])
}

func TestMapError(t *testing.T) {
	assert.Nil(t, MapError(nil))
	assert.Nil(t, MapError(assert.AnError))

	apiErr := MapError(&query.ValidationError{Field: "tenant_id", Reason: "required"})
	require.NotNil(t, apiErr)
	assert.Equal(t, map[string]string{"field": "tenant_id", "reason": "required"}, apiErr.Details)

	apiErr = MapError(auth.ErrTenantMismatch)
	require.NotNil(t, apiErr)
	assert.Equal(t, "TENANT_FORBIDDEN", apiErr.Code)
}

func TestReadDocResource(t *testing.T) {
	cs := connect(t, "stdio", &viewerStub{})

	res, err := cs.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: "interview://docs/errors"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, "GLOBAL_LEDGER_FORBIDDEN")
}
