package mcp

import (
	"context"
	"encoding/json"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/interview/internal/auth"
	"github.com/rpggio/interview/internal/domain/capability"
	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/viewer"
)

// Viewer answers the read-only surfaces.
type Viewer interface {
	ResolveStatus(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.StatusResult, error)
	SearchReceipts(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ReceiptsResult, error)
	GetReceipt(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ReceiptResult, error)
	PollHealth(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.HealthResult, error)
	PollQueue(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.QueueResult, error)
	ListArtifactInventory(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ArtifactsResult, error)
	SearchGlobalLedger(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*viewer.ReceiptsResult, error)
}

// Authorizer resolves the capabilities a principal holds for a tenant.
type Authorizer interface {
	Authorize(p *auth.Principal, tenant string) (capability.Set, error)
}

type toolset struct {
	viewer Viewer
	authz  Authorizer
	info   viewer.Info
}

func registerTools(server *sdkmcp.Server, t *toolset) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "interview.health",
		Description: "Service info: version, surfaces and the capabilities they require",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ InfoArgs) (*sdkmcp.CallToolResult, any, error) {
		return nil, t.info, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "status.receipts.interview",
		Description: "Derived status of a task lineage (shipped, resolved, escalated_blocked, in_progress, unknown) with provenance",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in StatusArgs) (*sdkmcp.CallToolResult, any, error) {
		return t.call(ctx, in.TenantID, func(caps capability.Set) (any, error) {
			return t.viewer.ResolveStatus(ctx, in.query(), caps)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "search.receipts.interview",
		Description: "Search receipts of a task lineage with strict bounds, filters and paging",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in SearchReceiptsArgs) (*sdkmcp.CallToolResult, any, error) {
		return t.call(ctx, in.TenantID, func(caps capability.Set) (any, error) {
			return t.viewer.SearchReceipts(ctx, in.query(), caps)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get.receipt.interview",
		Description: "Retrieve a single receipt by id; found=false when no source holds it",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetReceiptArgs) (*sdkmcp.CallToolResult, any, error) {
		return t.call(ctx, in.TenantID, func(caps capability.Set) (any, error) {
			return t.viewer.GetReceipt(ctx, in.query(), caps)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "health.async.interview",
		Description: "Health snapshot of the async component (requires can_poll_health)",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in HealthArgs) (*sdkmcp.CallToolResult, any, error) {
		return t.call(ctx, in.TenantID, func(caps capability.Set) (any, error) {
			return t.viewer.PollHealth(ctx, in.query(), caps)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "queue.async.interview",
		Description: "Queue diagnostics of the async component (requires can_poll_queue)",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in QueueArgs) (*sdkmcp.CallToolResult, any, error) {
		return t.call(ctx, in.TenantID, func(caps capability.Set) (any, error) {
			return t.viewer.PollQueue(ctx, in.query(), caps)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "inventory.artifacts.depot.interview",
		Description: "Artifact pointers, manifest pointer and staged counts for a lineage (requires can_view_artifacts)",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in ArtifactsArgs) (*sdkmcp.CallToolResult, any, error) {
		return t.call(ctx, in.TenantID, func(caps capability.Set) (any, error) {
			return t.viewer.ListArtifactInventory(ctx, in.query(), caps)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "global.ledger.receipts",
		Description: "Direct global ledger receipt search; disabled unless allow_global_ledger is set and the caller holds can_force_global_ledger",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in GlobalLedgerArgs) (*sdkmcp.CallToolResult, any, error) {
		return t.call(ctx, in.TenantID, func(caps capability.Set) (any, error) {
			return t.viewer.SearchGlobalLedger(ctx, in.query(), caps)
		})
	})
}

// call authorizes the principal for tenant and runs fn. Domain errors become
// tool results with IsError set, so clients see the code and recovery hint.
func (t *toolset) call(ctx context.Context, tenant string, fn func(capability.Set) (any, error)) (*sdkmcp.CallToolResult, any, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return errorResult(auth.ErrUnauthorized), nil, nil
	}
	var caps capability.Set
	if strings.TrimSpace(tenant) != "" {
		var err error
		caps, err = t.authz.Authorize(p, tenant)
		if err != nil {
			return errorResult(err), nil, nil
		}
	}
	out, err := fn(caps)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return nil, out, nil
}

func errorResult(err error) *sdkmcp.CallToolResult {
	apiErr := MapError(err)
	if apiErr == nil {
		apiErr = &APIError{Code: "INTERNAL_ERROR", Message: err.Error()}
	}
	data, _ := json.Marshal(apiErr)
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}
