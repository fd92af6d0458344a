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

// Rate limiter components polled by ComponentPoller.
const (
	ComponentReceiptGate = "receiptgate.receipts"
	ComponentReceipt     = "receiptgate.receipt"
	ComponentHealth      = "asyncgate.health"
	ComponentQueue       = "asyncgate.queue"
)

// maxQueueItems caps example items requested from a queue poll.
const maxQueueItems = 50

// PollerConfig locates the live mesh components.
type PollerConfig struct {
	ReceiptGateURL string
	AsyncGateURL   string
	APIKey         string
	Timeout        time.Duration
}

// ComponentPoller asks mesh components directly. Every call is bounded by
// the configured timeout and admitted by the rate limiter first.
type ComponentPoller struct {
	cfg  PollerConfig
	http httpReader
}

// NewComponentPoller creates the poll tier.
func NewComponentPoller(cfg PollerConfig, client *http.Client) *ComponentPoller {
	return &ComponentPoller{
		cfg:  cfg,
		http: newHTTPReader(TierComponentPoll, client, cfg.Timeout, cfg.APIKey),
	}
}

func (p *ComponentPoller) Tier() Tier { return TierComponentPoll }

// Component returns the rate limiter bucket a poll for surface draws from.
func (p *ComponentPoller) Component(surface query.Surface) string {
	switch surface {
	case query.SurfaceHealth:
		return ComponentHealth
	case query.SurfaceQueue:
		return ComponentQueue
	case query.SurfaceGetReceipt:
		return ComponentReceipt
	default:
		return ComponentReceiptGate
	}
}

func (p *ComponentPoller) Query(ctx context.Context, req Request) (Answer, error) {
	q := req.Query
	switch q.Surface {
	case query.SurfaceHealth:
		return p.health(ctx, q)
	case query.SurfaceQueue:
		return p.queue(ctx, q)
	case query.SurfaceGetReceipt:
		var rec receipt.Receipt
		params := url.Values{"tenant_id": {q.TenantID}}
		if err := p.http.getJSON(ctx, "receiptgate.get_receipt", p.cfg.ReceiptGateURL, "/receipts/"+url.PathEscape(q.ReceiptID), params, &rec); err != nil {
			return Answer{}, err
		}
		return Answer{Evidence: evidence.Evidence{Receipts: []receipt.Receipt{rec}}}, nil
	default:
		var body struct {
			Receipts []receipt.Receipt `json:"receipts"`
		}
		params := url.Values{
			"tenant_id":    {q.TenantID},
			"root_task_id": {q.RootTask()},
			"limit":        {strconv.Itoa(req.MaxScan + 1)},
		}
		if err := p.http.getJSON(ctx, "receiptgate.search_receipts", p.cfg.ReceiptGateURL, "/receipts/search", params, &body); err != nil {
			return Answer{}, err
		}
		return receiptAnswer(body.Receipts, req.MaxScan, 0)
	}
}

func (p *ComponentPoller) health(ctx context.Context, q query.ScopedQuery) (Answer, error) {
	var h evidence.Health
	params := url.Values{
		"tenant_id": {q.TenantID},
		"verbose":   {strconv.FormatBool(q.IncludeBody)},
	}
	if err := p.http.getJSON(ctx, "asyncgate.health", p.cfg.AsyncGateURL, "/health", params, &h); err != nil {
		return Answer{}, err
	}
	if h.ComponentID == "" {
		h.ComponentID = "asyncgate"
	}
	h.Reachable = true
	return Answer{Evidence: evidence.Evidence{Health: &h}}, nil
}

func (p *ComponentPoller) queue(ctx context.Context, q query.ScopedQuery) (Answer, error) {
	var qe evidence.Queue
	limit := q.Limit
	if limit <= 0 || limit > maxQueueItems {
		limit = maxQueueItems
	}
	params := url.Values{
		"tenant_id":        {q.TenantID},
		"limit":            {strconv.Itoa(limit)},
		"include_examples": {strconv.FormatBool(q.IncludeBody)},
	}
	if q.QueueID != "" {
		params.Set("queue_id", q.QueueID)
	}
	if err := p.http.getJSON(ctx, "asyncgate.queue_diagnostics", p.cfg.AsyncGateURL, "/queues/diagnostics", params, &qe); err != nil {
		return Answer{}, err
	}
	if qe.QueueID == "" {
		qe.QueueID = q.QueueID
	}
	return Answer{Evidence: evidence.Evidence{Queue: &qe}}, nil
}

// receiptAnswer caps a receipt list at maxScan and treats an empty list as a miss.
func receiptAnswer(receipts []receipt.Receipt, maxScan int, staleness time.Duration) (Answer, error) {
	if len(receipts) == 0 {
		return Answer{}, ErrNotFound
	}
	ev := evidence.Evidence{Receipts: receipts}
	if maxScan > 0 && len(receipts) > maxScan {
		ev.Receipts = receipts[:maxScan]
		ev.Capped = true
	}
	return Answer{Evidence: ev, Staleness: staleness}, nil
}
