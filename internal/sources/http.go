package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// readOnlyOperations is the complete set of component calls this service may
// make. Anything that could mutate the mesh is absent by construction.
var readOnlyOperations = map[string]bool{
	"receiptgate.search_receipts": true,
	"receiptgate.get_receipt":     true,
	"asyncgate.health":            true,
	"asyncgate.queue_diagnostics": true,
	"depotgate.list_artifacts":    true,
	"ledger.search_receipts":      true,
	"ledger.get_receipt":          true,
}

// httpReader issues bounded GET requests for one tier.
type httpReader struct {
	tier    Tier
	client  *http.Client
	timeout time.Duration
	apiKey  string
}

func newHTTPReader(tier Tier, client *http.Client, timeout time.Duration, apiKey string) httpReader {
	if client == nil {
		client = http.DefaultClient
	}
	return httpReader{tier: tier, client: client, timeout: timeout, apiKey: apiKey}
}

// getJSON calls baseURL+path for operation op and decodes the body into out.
// A 404 maps to ErrNotFound; every other failure is a tier failure, except
// cancellation of the caller's context which is returned as is.
func (h httpReader) getJSON(ctx context.Context, op, baseURL, path string, params url.Values, out any) error {
	if !readOnlyOperations[op] {
		return fmt.Errorf("%w: %s", ErrOperationNotAllowed, op)
	}
	if baseURL == "" {
		return unavailable(h.tier, errors.New("not configured"))
	}

	callCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	target := strings.TrimRight(baseURL, "/") + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, target, nil)
	if err != nil {
		return unavailable(h.tier, err)
	}
	req.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return unavailable(h.tier, fmt.Errorf("%s timed out after %s", op, h.timeout))
		}
		return unavailable(h.tier, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return unavailable(h.tier, fmt.Errorf("%s returned %d: %s", op, resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return unavailable(h.tier, fmt.Errorf("decode %s response: %w", op, err))
	}
	return nil
}
