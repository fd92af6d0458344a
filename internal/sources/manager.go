package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rpggio/interview/internal/domain/capability"
	"github.com/rpggio/interview/internal/domain/evidence"
	"github.com/rpggio/interview/internal/domain/query"
)

// Outcome is what happened when the manager considered a tier.
type Outcome string

const (
	OutcomeAnswered    Outcome = "answered"
	OutcomeMiss        Outcome = "miss"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeStale       Outcome = "stale"
	OutcomeSkipped     Outcome = "skipped"
)

// Attempt records one tier's part in a resolution.
type Attempt struct {
	Tier    Tier    `json:"source"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// Resolution is the evidence chosen for a query and its provenance.
type Resolution struct {
	Evidence  evidence.Evidence
	Source    Tier
	Staleness time.Duration
	Attempts  []Attempt
	CostUnits int
	// Found is false when every tier that answered reported no such key.
	Found bool
	// Degraded is set when a tier failed or was rate limited before the answer.
	Degraded bool
}

// Recorder receives resolution telemetry.
type Recorder interface {
	RecordAttempt(tier, outcome string)
	RecordResolution(surface, tier string, costUnits int)
}

// ManagerConfig bounds resolution.
type ManagerConfig struct {
	// FreshMaxAge is the largest staleness accepted under freshness=fresh.
	FreshMaxAge time.Duration
	// MaxScan bounds how many receipts or artifacts a tier returns.
	MaxScan int
}

// DefaultManagerConfig returns the stock bounds.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{FreshMaxAge: 5 * time.Second, MaxScan: 1000}
}

// Manager resolves queries across tiers in a fixed fallback order.
type Manager struct {
	cfg      ManagerConfig
	sources  []Source
	cache    Populator
	limiter  Admitter
	recorder Recorder
	logger   *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRecorder sets the telemetry sink.
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a Manager over the given sources. Sources are consulted
// in tier order regardless of the order they are passed in.
func NewManager(cfg ManagerConfig, limiter Admitter, srcs []Source, opts ...ManagerOption) *Manager {
	if cfg.MaxScan <= 0 {
		cfg.MaxScan = DefaultManagerConfig().MaxScan
	}
	ordered := append([]Source(nil), srcs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Tier().rank() < ordered[j].Tier().rank()
	})

	m := &Manager{
		cfg:      cfg,
		sources:  ordered,
		limiter:  limiter,
		recorder: noopRecorder{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, src := range ordered {
		if p, ok := src.(Populator); ok && src.Tier() == TierProjectionCache {
			m.cache = p
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.recorder == nil {
		m.recorder = noopRecorder{}
	}
	return m
}

// Resolve walks the eligible tiers for q and returns the first acceptable answer.
func (m *Manager) Resolve(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*Resolution, error) {
	if strings.TrimSpace(q.TenantID) == "" {
		return nil, &query.ValidationError{Field: "tenant_id", Reason: "required"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// An opt-in without the capability only matters when the query needs
	// the ledger; otherwise the tier is skipped.
	globalAllowed := q.GlobalLedgerAllowed()
	canForce := caps.Has(capability.ForceGlobalLedger)
	if q.TouchesGlobalLedger() {
		if !globalAllowed {
			return nil, ErrGlobalLedgerDisabled
		}
		if !canForce {
			return nil, ErrGlobalLedgerForbidden
		}
	}

	var (
		attempts     []Attempt
		cost         int
		degraded     bool
		notFoundTier Tier
		log          = m.logger.With("tenant_id", q.TenantID, "surface", q.Surface)
	)
	record := func(tier Tier, outcome Outcome, reason string) {
		attempts = append(attempts, Attempt{Tier: tier, Outcome: outcome, Reason: reason})
		m.recorder.RecordAttempt(string(tier), string(outcome))
	}
	req := Request{Query: q, MaxScan: m.cfg.MaxScan}

	for _, src := range m.sources {
		tier := src.Tier()
		if !Eligible(q.Surface, tier) {
			continue
		}
		if tier == TierGlobalLedger && !globalAllowed {
			record(tier, OutcomeSkipped, "global ledger not enabled")
			continue
		}
		if tier == TierGlobalLedger && !canForce {
			record(tier, OutcomeSkipped, "capability absent")
			continue
		}
		if q.Freshness == query.FreshnessAuthoritative && tier != authoritativeTier(q.Surface) {
			record(tier, OutcomeSkipped, "not authoritative")
			continue
		}
		if gated, ok := src.(Gated); ok && m.limiter != nil {
			component := gated.Component(q.Surface)
			if !m.limiter.Admit(q.TenantID, component) {
				log.Debug("poll denied by rate limiter", "tier", tier, "component", component)
				record(tier, OutcomeRateLimited, ErrRateLimited.Error()+": "+component)
				degraded = true
				continue
			}
		}

		answer, err := src.Query(ctx, req)
		cost += tier.Cost()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		switch {
		case errors.Is(err, ErrNotFound) && tier == TierProjectionCache:
			// A cache miss says nothing about whether the key exists.
			record(tier, OutcomeMiss, "")
			continue
		case errors.Is(err, ErrNotFound):
			record(tier, OutcomeNotFound, "")
			notFoundTier = tier
			continue
		case err != nil:
			log.Warn("source tier unavailable", "tier", tier, "error", err)
			record(tier, OutcomeUnavailable, err.Error())
			degraded = true
			continue
		}

		if ok, reason := m.fresh(q, tier, answer.Staleness); !ok {
			log.Debug("source tier too stale", "tier", tier, "staleness", answer.Staleness)
			record(tier, OutcomeStale, reason)
			continue
		}

		record(tier, OutcomeAnswered, "")
		m.populate(ctx, log, q, tier, answer)
		m.recorder.RecordResolution(string(q.Surface), string(tier), cost)
		return &Resolution{
			Evidence:  answer.Evidence,
			Source:    tier,
			Staleness: answer.Staleness,
			Attempts:  attempts,
			CostUnits: cost,
			Found:     true,
			Degraded:  degraded,
		}, nil
	}

	if notFoundTier != "" {
		m.recorder.RecordResolution(string(q.Surface), string(notFoundTier), cost)
		return &Resolution{
			Source:    notFoundTier,
			Attempts:  attempts,
			CostUnits: cost,
			Degraded:  degraded,
		}, nil
	}

	exhausted := &SourceExhaustedError{Attempts: attempts, CostUnits: cost}
	log.Warn("all eligible sources exhausted", "attempts", len(attempts), "error", exhausted)
	return nil, exhausted
}

// fresh reports whether an answer of the given staleness meets the query's freshness requirement.
func (m *Manager) fresh(q query.ScopedQuery, tier Tier, staleness time.Duration) (bool, string) {
	switch q.Freshness {
	case query.FreshnessFresh:
		if staleness > m.cfg.FreshMaxAge {
			return false, fmt.Sprintf("staleness %dms exceeds fresh bound %dms", staleness.Milliseconds(), m.cfg.FreshMaxAge.Milliseconds())
		}
	case query.FreshnessCacheOK, "":
		if tier == TierLedgerMirror && q.TimeWindow > 0 && staleness > q.TimeWindow {
			return false, fmt.Sprintf("mirror staleness %s exceeds time window %s", staleness, q.TimeWindow)
		}
	}
	return true, ""
}

func (m *Manager) populate(ctx context.Context, log *slog.Logger, q query.ScopedQuery, tier Tier, answer Answer) {
	if m.cache == nil || tier == TierProjectionCache || tier == TierGlobalLedger || answer.Evidence.Capped {
		return
	}
	if !Eligible(q.Surface, TierProjectionCache) {
		return
	}
	if err := m.cache.Populate(ctx, q, answer); err != nil {
		log.Warn("cache population failed", "tier", tier, "error", err)
	}
}

// Close releases sources that hold resources.
func (m *Manager) Close() error {
	var errs []error
	for _, src := range m.sources {
		if closer, ok := src.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", src.Tier(), err))
			}
		}
	}
	return errors.Join(errs...)
}

type noopRecorder struct{}

func (noopRecorder) RecordAttempt(string, string) {}

func (noopRecorder) RecordResolution(string, string, int) {}
