package sources

import (
	"context"
	"time"

	"github.com/rpggio/interview/internal/domain/evidence"
	"github.com/rpggio/interview/internal/domain/query"
)

// Tier names a backing source. Tiers are consulted in a fixed order.
type Tier string

const (
	TierProjectionCache Tier = "projection_cache"
	TierLedgerMirror    Tier = "ledger_mirror"
	TierComponentPoll   Tier = "component_poll"
	TierStorageMetadata Tier = "storage_metadata"
	TierGlobalLedger    Tier = "global_ledger"
)

var tierOrder = []Tier{
	TierProjectionCache,
	TierLedgerMirror,
	TierComponentPoll,
	TierStorageMetadata,
	TierGlobalLedger,
}

func (t Tier) rank() int {
	for i, tier := range tierOrder {
		if tier == t {
			return i
		}
	}
	return len(tierOrder)
}

// Cost is the number of cost units charged for querying the tier.
func (t Tier) Cost() int {
	switch t {
	case TierProjectionCache:
		return 1
	case TierLedgerMirror:
		return 2
	case TierComponentPoll, TierStorageMetadata:
		return 5
	case TierGlobalLedger:
		return 25
	default:
		return 0
	}
}

// SupportsContinuation reports whether results from the tier can be paged
// with a cursor. Live polls return a point-in-time sample and cannot.
func (t Tier) SupportsContinuation() bool {
	return t != TierComponentPoll
}

// Request is what a source is asked to answer.
type Request struct {
	Query query.ScopedQuery
	// MaxScan bounds the receipts or artifacts a source returns.
	MaxScan int
}

// Answer is a source's evidence and how stale it was when returned.
type Answer struct {
	Evidence  evidence.Evidence
	Staleness time.Duration
}

// Source is one backing tier. Query returns ErrNotFound when the tier
// answers but holds nothing for the key, and a *SourceUnavailableError
// when it cannot answer at all.
type Source interface {
	Tier() Tier
	Query(ctx context.Context, req Request) (Answer, error)
}

// Gated is implemented by sources whose calls must be admitted by the rate limiter.
type Gated interface {
	Component(surface query.Surface) string
}

// Populator is implemented by the projection cache to accept read-through writes.
type Populator interface {
	Populate(ctx context.Context, q query.ScopedQuery, answer Answer) error
}

// Admitter decides whether a gated call may proceed.
type Admitter interface {
	Admit(tenant, component string) bool
}

// eligible lists the tiers that may answer each surface.
var eligible = map[query.Surface][]Tier{
	query.SurfaceStatus:         {TierProjectionCache, TierLedgerMirror, TierComponentPoll, TierGlobalLedger},
	query.SurfaceSearchReceipts: {TierProjectionCache, TierLedgerMirror, TierComponentPoll, TierGlobalLedger},
	query.SurfaceGetReceipt:     {TierProjectionCache, TierLedgerMirror, TierComponentPoll, TierGlobalLedger},
	query.SurfaceHealth:         {TierProjectionCache, TierComponentPoll},
	query.SurfaceQueue:          {TierProjectionCache, TierComponentPoll},
	query.SurfaceArtifacts:      {TierStorageMetadata},
	query.SurfaceGlobalLedger:   {TierGlobalLedger},
}

// Eligible reports whether tier may answer surface.
func Eligible(surface query.Surface, tier Tier) bool {
	for _, t := range eligible[surface] {
		if t == tier {
			return true
		}
	}
	return false
}

// authoritativeTier is the only tier accepted under freshness=authoritative.
func authoritativeTier(surface query.Surface) Tier {
	switch {
	case surface.ReceiptBearing():
		return TierGlobalLedger
	case surface == query.SurfaceArtifacts:
		return TierStorageMetadata
	default:
		return TierComponentPoll
	}
}
