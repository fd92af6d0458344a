package query

import (
	"strconv"
	"strings"
	"time"
)

// Limits carries the configured bounds and defaults for query controls.
type Limits struct {
	DefaultLimit      int
	MaxLimit          int
	DefaultTimeWindow time.Duration
	MaxTimeWindow     time.Duration
	// AllowGlobalLedger is the posture applied when a query states none.
	AllowGlobalLedger bool
}

// DefaultLimits returns the stock bounds.
func DefaultLimits() Limits {
	return Limits{
		DefaultLimit:      100,
		MaxLimit:          200,
		DefaultTimeWindow: 24 * time.Hour,
		MaxTimeWindow:     168 * time.Hour,
	}
}

// Normalize validates q and fills defaults. It never invents a tenant.
func Normalize(q ScopedQuery, limits Limits) (ScopedQuery, error) {
	q.TenantID = strings.TrimSpace(q.TenantID)
	if q.TenantID == "" {
		return ScopedQuery{}, invalid("tenant_id", "required")
	}

	switch {
	case q.Limit == 0:
		q.Limit = limits.DefaultLimit
	case q.Limit < 1 || q.Limit > limits.MaxLimit:
		return ScopedQuery{}, invalid("limit", "must be between 1 and "+strconv.Itoa(limits.MaxLimit))
	}

	switch {
	case q.TimeWindow == 0:
		q.TimeWindow = limits.DefaultTimeWindow
	case q.TimeWindow < 0 || q.TimeWindow > limits.MaxTimeWindow:
		return ScopedQuery{}, invalid("time_window", "must be positive and at most "+limits.MaxTimeWindow.String())
	}

	switch q.Freshness {
	case "":
		q.Freshness = FreshnessCacheOK
	case FreshnessCacheOK, FreshnessFresh, FreshnessAuthoritative:
	default:
		return ScopedQuery{}, invalid("freshness", "must be cache_ok, fresh, or authoritative")
	}

	if q.AllowGlobalLedger == nil {
		allow := limits.AllowGlobalLedger
		q.AllowGlobalLedger = &allow
	}

	if err := requireIdentifiers(q); err != nil {
		return ScopedQuery{}, err
	}
	return q, nil
}

func requireIdentifiers(q ScopedQuery) error {
	switch q.Surface {
	case SurfaceStatus:
		if q.RootTask() == "" {
			return invalid("root_task_id", "root_task_id or task_id required")
		}
	case SurfaceSearchReceipts, SurfaceGlobalLedger:
		if q.RootTaskID == "" {
			return invalid("root_task_id", "required")
		}
	case SurfaceGetReceipt:
		if q.ReceiptID == "" {
			return invalid("receipt_id", "required")
		}
	case SurfaceArtifacts:
		if q.RootTaskID == "" && q.DeliverableID == "" {
			return invalid("root_task_id", "root_task_id or deliverable_id required")
		}
	case SurfaceHealth, SurfaceQueue:
	default:
		return invalid("surface", "unknown surface "+string(q.Surface))
	}
	return nil
}
