package transport

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/domain/receipt"
)

// parseQuery reads a scoped query from URL parameters. The parameter names
// match the MCP tool arguments. Bounds are enforced later by normalization.
func parseQuery(r *http.Request) (query.ScopedQuery, error) {
	v := r.URL.Query()
	q := query.ScopedQuery{
		TenantID: v.Get("tenant_id"),
		Identifiers: query.Identifiers{
			TaskID:        v.Get("task_id"),
			RootTaskID:    v.Get("root_task_id"),
			ReceiptID:     v.Get("receipt_id"),
			QueueID:       v.Get("queue_id"),
			DeliverableID: v.Get("deliverable_id"),
		},
		Filters: query.Filters{
			Kind:        receipt.Kind(v.Get("phase")),
			RecipientAI: v.Get("recipient_ai"),
			Expr:        v.Get("filter"),
		},
		Controls: query.Controls{
			Freshness: query.Freshness(v.Get("freshness")),
			PageToken: v.Get("page_token"),
		},
	}

	var err error
	if q.Limit, err = intParam(v, "limit"); err != nil {
		return q, err
	}
	hours, err := intParam(v, "time_window_hours")
	if err != nil {
		return q, err
	}
	q.TimeWindow = time.Duration(hours) * time.Hour

	// verbose (health) and include_examples (queue) are aliases of include_body.
	for _, name := range []string{"include_body", "verbose", "include_examples"} {
		set, err := boolParam(v, name)
		if err != nil {
			return q, err
		}
		if set != nil && *set {
			q.IncludeBody = true
		}
	}
	if q.AllowGlobalLedger, err = boolParam(v, "allow_global_ledger"); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(v url.Values, name string) (int, error) {
	raw := strings.TrimSpace(v.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &query.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return n, nil
}

func boolParam(v url.Values, name string) (*bool, error) {
	raw := strings.TrimSpace(v.Get(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &query.ValidationError{Field: name, Reason: "must be a boolean"}
	}
	return &b, nil
}
