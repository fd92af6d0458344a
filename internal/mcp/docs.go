package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `InterView answers bounded, tenant-scoped, read-only questions about work in the mesh.
It never submits work, retries, or writes anything.

Every answer carries metadata:
- source: which tier answered (projection_cache, ledger_mirror, component_poll, storage_metadata, global_ledger).
- freshness_age_ms: how old the data was.
- truncated / next_page_token: more results exist; pass the token back to continue.
- cost_units: what the answer cost; degraded + attempts: tiers that failed before the answer.

Default workflow:
1) status.receipts.interview for the derived state of a lineage.
2) search.receipts.interview to list its receipts (phase, recipient_ai and CEL filter narrow results).
3) get.receipt.interview for one receipt; include_body needs can_view_receipts.
4) health.async.interview and queue.async.interview for the async component.
5) inventory.artifacts.depot.interview for staged artifacts.

The global ledger is expensive and off by default. global.ledger.receipts and freshness=authoritative
on receipt tools need allow_global_ledger=true and the can_force_global_ledger capability.

Docs:
- interview://docs/freshness
- interview://docs/errors
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "interview://docs/freshness",
		Name:        "docs_freshness",
		Title:       "Sources and freshness",
		Description: "Tier order, per-surface eligibility, and what each freshness level accepts.",
		Content: `# Sources and freshness

Tiers are tried in a fixed order and the first acceptable answer wins:

| tier             | cost | continuation |
|------------------|------|--------------|
| projection_cache | 1    | yes          |
| ledger_mirror    | 2    | yes          |
| component_poll   | 5    | no           |
| storage_metadata | 5    | yes          |
| global_ledger    | 25   | yes          |

- cache_ok (default): any tier; the mirror must be no staler than time_window.
- fresh: only answers at most a few seconds old.
- authoritative: only the authoritative tier (global ledger for receipts, live poll for health and queue, storage for artifacts).

Component polls are rate limited per tenant and component. A denied poll is recorded as rate_limited and resolution continues.
`,
	},
	{
		URI:         "interview://docs/errors",
		Name:        "docs_errors",
		Title:       "Error codes",
		Description: "Tool error codes and how to recover.",
		Content: `# Error codes

- VALIDATION_ERROR: a bound or identifier is wrong; details name the field.
- CAPABILITY_REQUIRED: the surface needs a capability your key lacks.
- GLOBAL_LEDGER_DISABLED: the request needs the global ledger but allow_global_ledger is false.
- GLOBAL_LEDGER_FORBIDDEN: allow_global_ledger is true but your key lacks can_force_global_ledger.
- RATE_LIMITED: every usable tier was rate limited; retry later.
- SOURCE_EXHAUSTED: every eligible tier failed; details list the attempts.
- UNAUTHORIZED / TENANT_FORBIDDEN: the key is missing, invalid, or bound to another tenant.

A missing receipt is not an error: get.receipt.interview returns found=false.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
