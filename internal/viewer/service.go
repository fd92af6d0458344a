// Package viewer implements the read-only surfaces: each call normalizes the
// query, resolves it across the source tiers, derives and redacts, then
// assembles paging and provenance metadata.
package viewer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/rpggio/interview/internal/domain/capability"
	"github.com/rpggio/interview/internal/domain/evidence"
	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/domain/receipt"
	"github.com/rpggio/interview/internal/domain/status"
	"github.com/rpggio/interview/internal/receiptfilter"
	"github.com/rpggio/interview/internal/redaction"
	"github.com/rpggio/interview/internal/response"
)

// maxQueueItems bounds the example items a queue answer may carry.
const maxQueueItems = 50

// Service answers the read-only surfaces.
type Service struct {
	resolver Resolver
	limits   query.Limits
	filters  *receiptfilter.Compiler
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a viewer service.
func NewService(resolver Resolver, limits query.Limits, logger *slog.Logger) (*Service, error) {
	filters, err := receiptfilter.NewCompiler()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		resolver: resolver,
		limits:   limits,
		filters:  filters,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// SetClock replaces the time source used for windows and cursors.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ResolveStatus derives the state of a root task from its receipts.
func (s *Service) ResolveStatus(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*StatusResult, error) {
	q.Surface = query.SurfaceStatus
	q, _, err := s.prepare(q)
	if err != nil {
		return nil, err
	}
	res, err := s.resolver.Resolve(ctx, q, caps)
	if err != nil {
		return nil, err
	}

	root := q.RootTask()
	own := ownReceipts(res.Evidence.Receipts, root)
	state := status.Derive(root, own)

	ev, redacted := redaction.Apply(evidence.Evidence{Receipts: own}, caps, false)
	summary := StatusSummary{
		TenantID:         q.TenantID,
		RootTaskID:       root,
		State:            state,
		ReceiptCount:     len(own),
		ArtifactPointers: []string{},
		Redacted:         redacted,
	}
	if latest, ok := receipt.Latest(ev.Receipts); ok {
		summary.LatestReceiptID = latest.ReceiptID
		if !latest.CreatedAt.IsZero() {
			at := latest.CreatedAt
			summary.LastUpdatedAt = &at
		}
	}
	for _, r := range ev.Receipts {
		if r.ArtifactPointer != "" {
			summary.ArtifactPointers = append(summary.ArtifactPointers, r.ArtifactPointer)
		}
	}

	s.logger.Debug("status derived", "tenant_id", q.TenantID, "root_task_id", root, "state", state, "source", res.Source)
	return &StatusResult{
		Status:   summary,
		Metadata: response.Assemble(res, response.Page{Capped: res.Evidence.Capped}, s.now()),
	}, nil
}

// SearchReceipts lists the receipts of a root task, filtered and paged.
func (s *Service) SearchReceipts(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*ReceiptsResult, error) {
	q.Surface = query.SurfaceSearchReceipts
	return s.searchReceipts(ctx, q, caps)
}

// SearchGlobalLedger lists receipts of a root task from the global ledger only.
func (s *Service) SearchGlobalLedger(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*ReceiptsResult, error) {
	q.Surface = query.SurfaceGlobalLedger
	return s.searchReceipts(ctx, q, caps)
}

func (s *Service) searchReceipts(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*ReceiptsResult, error) {
	q, offset, err := s.prepare(q)
	if err != nil {
		return nil, err
	}
	filter, err := s.filters.Build(q.Filters, s.now().Add(-q.TimeWindow))
	if err != nil {
		return nil, &query.ValidationError{Field: "filter", Reason: err.Error()}
	}
	res, err := s.resolver.Resolve(ctx, q, caps)
	if err != nil {
		return nil, err
	}

	matched := filter.Apply(ownReceipts(res.Evidence.Receipts, q.RootTaskID))
	sortReceipts(matched)
	items, page := response.Paginate(matched, offset, q.Limit)
	page.Capped = res.Evidence.Capped

	ev, redacted := redaction.Apply(evidence.Evidence{Receipts: items}, caps, q.IncludeBody)
	out := ev.Receipts
	if out == nil {
		out = []receipt.Receipt{}
	}
	return &ReceiptsResult{
		Receipts: out,
		Redacted: redacted,
		Metadata: response.Assemble(res, page, s.now()),
	}, nil
}

// GetReceipt fetches a single receipt by id.
func (s *Service) GetReceipt(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*ReceiptResult, error) {
	q.Surface = query.SurfaceGetReceipt
	q, _, err := s.prepare(q)
	if err != nil {
		return nil, err
	}
	res, err := s.resolver.Resolve(ctx, q, caps)
	if err != nil {
		return nil, err
	}

	out := &ReceiptResult{Metadata: response.Assemble(res, response.Page{}, s.now())}
	for _, r := range res.Evidence.Receipts {
		if r.ReceiptID != q.ReceiptID {
			continue
		}
		ev, _ := redaction.Apply(evidence.Evidence{Receipts: []receipt.Receipt{r}}, caps, q.IncludeBody)
		out.Receipt = &ev.Receipts[0]
		out.Found = true
		break
	}
	return out, nil
}

// PollHealth reports the health of the async component. IncludeBody asks for
// the verbose metrics snapshot.
func (s *Service) PollHealth(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*HealthResult, error) {
	if err := requireCapability(caps, capability.PollHealth); err != nil {
		return nil, err
	}
	q.Surface = query.SurfaceHealth
	q, _, err := s.prepare(q)
	if err != nil {
		return nil, err
	}
	res, err := s.resolver.Resolve(ctx, q, caps)
	if err != nil {
		return nil, err
	}

	ev, redacted := redaction.Apply(res.Evidence, caps, q.IncludeBody)
	return &HealthResult{
		Health:   ev.Health,
		Found:    ev.Health != nil,
		Redacted: redacted,
		Metadata: response.Assemble(res, response.Page{}, s.now()),
	}, nil
}

// PollQueue reports queue depth and, with IncludeBody, example item headers.
func (s *Service) PollQueue(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*QueueResult, error) {
	if err := requireCapability(caps, capability.PollQueue); err != nil {
		return nil, err
	}
	q.Surface = query.SurfaceQueue
	q, _, err := s.prepare(q)
	if err != nil {
		return nil, err
	}
	res, err := s.resolver.Resolve(ctx, q, caps)
	if err != nil {
		return nil, err
	}

	ev, redacted := redaction.Apply(res.Evidence, caps, q.IncludeBody)
	page := response.Page{}
	if ev.Queue != nil && len(ev.Queue.Items) > 0 {
		qe := *ev.Queue
		qe.Items, page = response.Paginate(qe.Items, 0, min(q.Limit, maxQueueItems))
		ev.Queue = &qe
	}
	return &QueueResult{
		Queue:    ev.Queue,
		Found:    ev.Queue != nil,
		Redacted: redacted,
		Metadata: response.Assemble(res, page, s.now()),
	}, nil
}

// ListArtifactInventory lists staged artifact pointers for a root task or deliverable.
func (s *Service) ListArtifactInventory(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*ArtifactsResult, error) {
	if err := requireCapability(caps, capability.ViewArtifacts); err != nil {
		return nil, err
	}
	q.Surface = query.SurfaceArtifacts
	q, offset, err := s.prepare(q)
	if err != nil {
		return nil, err
	}
	res, err := s.resolver.Resolve(ctx, q, caps)
	if err != nil {
		return nil, err
	}

	ev, redacted := redaction.Apply(res.Evidence, caps, q.IncludeBody)
	items, page := response.Paginate(ev.Artifacts, offset, q.Limit)
	page.Capped = ev.Capped
	if items == nil {
		items = []evidence.Artifact{}
	}
	return &ArtifactsResult{
		Artifacts:       items,
		ManifestPointer: ev.ManifestPointer,
		StagedCounts:    ev.StagedCounts,
		Redacted:        redacted,
		Metadata:        response.Assemble(res, page, s.now()),
	}, nil
}

// prepare normalizes q and decodes its page token into an offset.
func (s *Service) prepare(q query.ScopedQuery) (query.ScopedQuery, int, error) {
	q, err := query.Normalize(q, s.limits)
	if err != nil {
		return query.ScopedQuery{}, 0, err
	}
	if q.PageToken == "" {
		return q, 0, nil
	}
	cursor, err := response.DecodeCursor(q.PageToken)
	if err != nil {
		if errors.Is(err, response.ErrInvalidPageToken) {
			return query.ScopedQuery{}, 0, &query.ValidationError{Field: "page_token", Reason: "malformed"}
		}
		return query.ScopedQuery{}, 0, err
	}
	return q, cursor.Offset, nil
}

func ownReceipts(rs []receipt.Receipt, root string) []receipt.Receipt {
	var out []receipt.Receipt
	for _, r := range rs {
		if r.BelongsTo(root) {
			out = append(out, r)
		}
	}
	return out
}

func sortReceipts(rs []receipt.Receipt) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ReceiptID < rs[j].ReceiptID
	})
}
