// Package testserver runs the full HTTP stack over an in-memory ledger mirror.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/interview/internal/auth"
	"github.com/rpggio/interview/internal/authz"
	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/domain/receipt"
	"github.com/rpggio/interview/internal/ledgerdb"
	"github.com/rpggio/interview/internal/mcp"
	"github.com/rpggio/interview/internal/ratelimit"
	"github.com/rpggio/interview/internal/sources"
	"github.com/rpggio/interview/internal/transport"
	"github.com/rpggio/interview/internal/viewer"
)

const (
	// AdminKey holds every capability across tenants.
	AdminKey = "iv_test-admin"
	// AuditorKey may only view receipts of TenantID.
	AuditorKey = "iv_test-auditor"
	TenantID   = "acme"
)

type TestServer struct {
	Server *httptest.Server
	DB     *ledgerdb.DB
	Mirror *ledgerdb.Repository
}

// New starts a server whose only tiers are the projection cache and the mirror.
func New(t *testing.T) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := ledgerdb.Open(ledgerdb.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(context.Background()))
	mirror := ledgerdb.NewRepository(db)

	manager := sources.NewManager(sources.DefaultManagerConfig(), ratelimit.New(ratelimit.DefaultConfig()), []sources.Source{
		sources.NewProjectionCache(sources.NewMemoryStore(), sources.CacheConfig{TTL: 30 * time.Second, PollTTL: 5 * time.Second}),
		sources.NewLedgerMirror(mirror, time.Second),
	})
	svc, err := viewer.NewService(manager, query.DefaultLimits(), nil)
	require.NoError(t, err)

	roles, err := authz.New(map[string][]string{
		"admin":   {"can_view_receipts", "can_view_artifacts", "can_poll_health", "can_poll_queue", "can_force_global_ledger"},
		"auditor": {"can_view_receipts"},
	})
	require.NoError(t, err)
	store, err := auth.NewStore([]auth.Key{
		{ID: "admin", Hash: auth.HashKey(AdminKey), Tenant: auth.AnyTenant, Role: "admin"},
		{ID: "auditor", Hash: auth.HashKey(AuditorKey), Tenant: TenantID, Role: "auditor"},
	}, roles)
	require.NoError(t, err)

	info := viewer.Describe("test", "test-instance")
	mcpServer := mcp.NewServer(mcp.Config{
		Viewer:        svc,
		Auth:          store,
		Authorizer:    store,
		TransportMode: "http",
		Info:          info,
	})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{Stateless: true},
	)

	server := httptest.NewServer(transport.NewServer(transport.Config{
		Viewer:     svc,
		Auth:       store,
		Authorizer: store,
		Info:       info,
		MCP:        mcpHandler,
	}))

	t.Cleanup(func() {
		server.Close()
		_ = manager.Close()
		_ = db.Close()
	})

	return &TestServer{Server: server, DB: db, Mirror: mirror}
}

// Seed inserts receipts into the mirror and marks their tenants synced now.
func (ts *TestServer) Seed(t *testing.T, receipts ...receipt.Receipt) {
	t.Helper()
	ctx := context.Background()
	tenants := map[string]bool{}
	for _, r := range receipts {
		require.NoError(t, ts.Mirror.InsertReceipt(ctx, r))
		tenants[r.TenantID] = true
	}
	for tenant := range tenants {
		require.NoError(t, ts.Mirror.MarkSynced(ctx, tenant, time.Now()))
	}
}
