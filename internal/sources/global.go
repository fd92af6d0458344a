package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rpggio/interview/internal/domain/evidence"
	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/domain/receipt"
)

// GlobalLedgerConfig locates the authoritative ledger.
type GlobalLedgerConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// GlobalLedgerGate reads the authoritative global ledger. The manager only
// reaches it for callers that opted in and hold can_force_global_ledger.
type GlobalLedgerGate struct {
	cfg  GlobalLedgerConfig
	http httpReader
}

// NewGlobalLedgerGate creates the global ledger tier.
func NewGlobalLedgerGate(cfg GlobalLedgerConfig, client *http.Client) *GlobalLedgerGate {
	return &GlobalLedgerGate{
		cfg:  cfg,
		http: newHTTPReader(TierGlobalLedger, client, cfg.Timeout, cfg.APIKey),
	}
}

func (g *GlobalLedgerGate) Tier() Tier { return TierGlobalLedger }

func (g *GlobalLedgerGate) Query(ctx context.Context, req Request) (Answer, error) {
	q := req.Query
	if q.Surface == query.SurfaceGetReceipt {
		var rec receipt.Receipt
		params := url.Values{"tenant_id": {q.TenantID}}
		if err := g.http.getJSON(ctx, "ledger.get_receipt", g.cfg.URL, "/receipts/"+url.PathEscape(q.ReceiptID), params, &rec); err != nil {
			return Answer{}, err
		}
		return Answer{Evidence: evidence.Evidence{Receipts: []receipt.Receipt{rec}}}, nil
	}

	var body struct {
		Receipts []receipt.Receipt `json:"receipts"`
	}
	params := url.Values{
		"tenant_id":    {q.TenantID},
		"root_task_id": {q.RootTask()},
		"limit":        {strconv.Itoa(req.MaxScan + 1)},
	}
	if err := g.http.getJSON(ctx, "ledger.search_receipts", g.cfg.URL, "/receipts/search", params, &body); err != nil {
		return Answer{}, err
	}
	return receiptAnswer(body.Receipts, req.MaxScan, 0)
}
