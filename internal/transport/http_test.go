package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/interview/internal/auth"
	"github.com/rpggio/interview/internal/authz"
	"github.com/rpggio/interview/internal/domain/capability"
	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/domain/status"
	"github.com/rpggio/interview/internal/ratelimit"
	"github.com/rpggio/interview/internal/sources"
	"github.com/rpggio/interview/internal/viewer"
)

const (
	operatorKey = "iv_operator-test-key"
	auditorKey  = "iv_auditor-test-key"
)

type testViewer struct {
	last query.ScopedQuery
	caps capability.Set
	err  error
}

func (v *testViewer) ResolveStatus(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.StatusResult, error) {
	v.last, v.caps = q, caps
	if v.err != nil {
		return nil, v.err
	}
	return &viewer.StatusResult{Status: viewer.StatusSummary{TenantID: q.TenantID, RootTaskID: q.RootTask(), State: status.StateInProgress}}, nil
}

func (v *testViewer) SearchReceipts(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ReceiptsResult, error) {
	v.last, v.caps = q, caps
	return &viewer.ReceiptsResult{}, v.err
}

func (v *testViewer) GetReceipt(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ReceiptResult, error) {
	v.last, v.caps = q, caps
	return &viewer.ReceiptResult{}, v.err
}

func (v *testViewer) PollHealth(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.HealthResult, error) {
	v.last, v.caps = q, caps
	return &viewer.HealthResult{}, v.err
}

func (v *testViewer) PollQueue(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.QueueResult, error) {
	v.last, v.caps = q, caps
	return &viewer.QueueResult{}, v.err
}

func (v *testViewer) ListArtifactInventory(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ArtifactsResult, error) {
	v.last, v.caps = q, caps
	return &viewer.ArtifactsResult{}, v.err
}

func (v *testViewer) SearchGlobalLedger(_ context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ReceiptsResult, error) {
	v.last, v.caps = q, caps
	return &viewer.ReceiptsResult{}, v.err
}

func newTestServer(t *testing.T, v Viewer, limiter Admitter) *httptest.Server {
	t.Helper()
	roles, err := authz.New(map[string][]string{
		"operator": {"can_view_receipts", "can_poll_health", "can_poll_queue"},
		"auditor":  {"can_view_receipts"},
	})
	require.NoError(t, err)
	store, err := auth.NewStore([]auth.Key{
		{ID: "op", Hash: auth.HashKey(operatorKey), Tenant: auth.AnyTenant, Role: "operator"},
		{ID: "aud", Hash: auth.HashKey(auditorKey), Tenant: "acme", Role: "auditor"},
	}, roles)
	require.NoError(t, err)

	server := httptest.NewServer(NewServer(Config{
		Viewer:     v,
		Auth:       store,
		Authorizer: store,
		Limiter:    limiter,
		Info:       viewer.Describe("test", "instance-1"),
	}))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url, key string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e ErrorBody
	require.NoError(t, json.Unmarshal(body, &e))
	return e.ErrorCode
}

func TestHTTPServer_Health(t *testing.T) {
	server := newTestServer(t, &testViewer{}, nil)

	resp, body := get(t, server.URL+"/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestHTTPServer_Info(t *testing.T) {
	server := newTestServer(t, &testViewer{}, nil)

	resp, body := get(t, server.URL+"/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pretty bytes.Buffer
	require.NoError(t, json.Indent(&pretty, bytes.TrimSpace(body), "", "  "))
	pretty.WriteByte('\n')
	g := goldie.New(t)
	g.Assert(t, "info", pretty.Bytes())
}

func TestHTTPServer_Status(t *testing.T) {
	v := &testViewer{}
	server := newTestServer(t, v, nil)

	resp, body := get(t, server.URL+"/v1/status?tenant_id=acme&root_task_id=root-1&freshness=fresh&limit=10", operatorKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "root-1", v.last.RootTaskID)
	require.Equal(t, query.FreshnessFresh, v.last.Freshness)
	require.Equal(t, 10, v.last.Limit)
	require.True(t, v.caps.Has(capability.PollHealth))

	var out viewer.StatusResult
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, status.StateInProgress, out.Status.State)
}

func TestHTTPServer_QueryParams(t *testing.T) {
	v := &testViewer{}
	server := newTestServer(t, v, nil)

	resp, _ := get(t, server.URL+"/v1/receipts/r-9?tenant_id=acme", operatorKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "r-9", v.last.ReceiptID)

	resp, _ = get(t, server.URL+"/v1/health?tenant_id=acme&verbose=true", operatorKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, v.last.IncludeBody)

	resp, _ = get(t, server.URL+"/v1/global-ledger/receipts?tenant_id=acme&root_task_id=r&allow_global_ledger=true", operatorKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, v.last.GlobalLedgerAllowed())

	resp, body := get(t, server.URL+"/v1/receipts?tenant_id=acme&limit=ten", operatorKey)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
}

func TestHTTPServer_Unauthorized(t *testing.T) {
	server := newTestServer(t, &testViewer{}, nil)

	resp, body := get(t, server.URL+"/v1/status?tenant_id=acme&root_task_id=r", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", errorCode(t, body))

	resp, _ = get(t, server.URL+"/v1/status?tenant_id=acme&root_task_id=r", "iv_wrong")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPServer_TenantBinding(t *testing.T) {
	server := newTestServer(t, &testViewer{}, nil)

	resp, _ := get(t, server.URL+"/v1/status?tenant_id=acme&root_task_id=r", auditorKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := get(t, server.URL+"/v1/status?tenant_id=globex&root_task_id=r", auditorKey)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "TENANT_FORBIDDEN", errorCode(t, body))
}

func TestHTTPServer_ErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&viewer.CapabilityError{Capability: capability.ViewArtifacts}, http.StatusForbidden, "CAPABILITY_REQUIRED"},
		{sources.ErrGlobalLedgerForbidden, http.StatusForbidden, "GLOBAL_LEDGER_FORBIDDEN"},
		{&sources.SourceExhaustedError{Attempts: []sources.Attempt{{Tier: sources.TierComponentPoll, Outcome: sources.OutcomeRateLimited}}}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{&sources.SourceExhaustedError{Attempts: []sources.Attempt{{Tier: sources.TierLedgerMirror, Outcome: sources.OutcomeUnavailable}}}, http.StatusServiceUnavailable, "SOURCE_EXHAUSTED"},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		server := newTestServer(t, &testViewer{err: tc.err}, nil)
		resp, body := get(t, server.URL+"/v1/status?tenant_id=acme&root_task_id=r", operatorKey)
		require.Equal(t, tc.status, resp.StatusCode, tc.code)
		require.Equal(t, tc.code, errorCode(t, body))
	}
}

func TestHTTPServer_APIRateLimit(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{Default: ratelimit.Bucket{Capacity: 2, RefillPerSecond: 0}})
	server := newTestServer(t, &testViewer{}, limiter)

	for i := 0; i < 2; i++ {
		resp, _ := get(t, server.URL+"/v1/status?tenant_id=acme&root_task_id=r", operatorKey)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := get(t, server.URL+"/v1/status?tenant_id=acme&root_task_id=r", operatorKey)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "RATE_LIMITED", errorCode(t, body))

	resp, _ = get(t, server.URL+"/v1/status?tenant_id=acme&root_task_id=r", auditorKey)
	require.Equal(t, http.StatusOK, resp.StatusCode, "buckets are per key")
}
