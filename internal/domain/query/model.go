package query

import (
	"time"

	"github.com/rpggio/interview/internal/domain/receipt"
)

// Surface names the read-only operation a query is issued against.
type Surface string

const (
	SurfaceStatus         Surface = "status"
	SurfaceSearchReceipts Surface = "search_receipts"
	SurfaceGetReceipt     Surface = "get_receipt"
	SurfaceHealth         Surface = "health"
	SurfaceQueue          Surface = "queue"
	SurfaceArtifacts      Surface = "artifact_inventory"
	SurfaceGlobalLedger   Surface = "global_ledger"
)

// ReceiptBearing reports whether the surface answers with receipts.
func (s Surface) ReceiptBearing() bool {
	switch s {
	case SurfaceStatus, SurfaceSearchReceipts, SurfaceGetReceipt, SurfaceGlobalLedger:
		return true
	default:
		return false
	}
}

// Freshness is the caller's staleness requirement.
type Freshness string

const (
	FreshnessCacheOK       Freshness = "cache_ok"
	FreshnessFresh         Freshness = "fresh"
	FreshnessAuthoritative Freshness = "authoritative"
)

// Identifiers scope a query to a task, receipt, queue or deliverable.
type Identifiers struct {
	TaskID        string
	RootTaskID    string
	ReceiptID     string
	QueueID       string
	DeliverableID string
}

// Filters narrow receipt searches after resolution.
type Filters struct {
	Kind        receipt.Kind
	RecipientAI string
	// Expr is an optional boolean CEL expression over the receipt.
	Expr string
}

// Controls bound the cost and shape of an answer.
type Controls struct {
	Limit       int
	TimeWindow  time.Duration
	IncludeBody bool
	Freshness   Freshness
	// AllowGlobalLedger is nil when the caller did not state a preference.
	AllowGlobalLedger *bool
	PageToken         string
}

// ScopedQuery is a tenant-scoped request against one surface.
type ScopedQuery struct {
	TenantID string
	Surface  Surface
	Identifiers
	Filters
	Controls
}

// RootTask returns the root obligation the query is about.
func (q ScopedQuery) RootTask() string {
	if q.RootTaskID != "" {
		return q.RootTaskID
	}
	return q.TaskID
}

// GlobalLedgerAllowed reports whether the caller opted into global ledger access.
func (q ScopedQuery) GlobalLedgerAllowed() bool {
	return q.AllowGlobalLedger != nil && *q.AllowGlobalLedger
}

// TouchesGlobalLedger reports whether answering requires the global ledger.
func (q ScopedQuery) TouchesGlobalLedger() bool {
	if q.Surface == SurfaceGlobalLedger {
		return true
	}
	return q.Freshness == FreshnessAuthoritative && q.Surface.ReceiptBearing()
}

// EvidenceKey identifies the evidence a query resolves to, independent of filters
// and paging. Status and receipt search share the receipt set of a root task.
func (q ScopedQuery) EvidenceKey() string {
	switch q.Surface {
	case SurfaceStatus, SurfaceSearchReceipts, SurfaceGlobalLedger:
		return "receipts/" + q.RootTask()
	case SurfaceGetReceipt:
		return "receipt/" + q.ReceiptID
	case SurfaceHealth:
		if q.IncludeBody {
			return "health/verbose"
		}
		return "health"
	case SurfaceQueue:
		key := "queue/default"
		if q.QueueID != "" {
			key = "queue/" + q.QueueID
		}
		if q.IncludeBody {
			key += "/items"
		}
		return key
	case SurfaceArtifacts:
		if q.RootTaskID != "" {
			return "artifacts/" + q.RootTaskID
		}
		return "deliverable/" + q.DeliverableID
	default:
		return string(q.Surface)
	}
}
