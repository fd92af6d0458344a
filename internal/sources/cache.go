package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rpggio/interview/internal/domain/evidence"
	"github.com/rpggio/interview/internal/domain/query"
)

// CacheEntry is a cached evidence snapshot.
type CacheEntry struct {
	Evidence  evidence.Evidence `json:"evidence"`
	AsOf      time.Time         `json:"as_of"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// CacheStore is the shared backing store of the projection cache.
// Put must never replace an entry whose AsOf is newer than the incoming one.
type CacheStore interface {
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	Put(ctx context.Context, key string, entry CacheEntry) error
}

// CacheConfig sets entry lifetimes.
type CacheConfig struct {
	// TTL applies to receipt and artifact evidence.
	TTL time.Duration
	// PollTTL applies to health and queue evidence.
	PollTTL time.Duration
}

// ProjectionCache is the fastest tier: bounded-freshness snapshots keyed by
// tenant, surface and identifier.
type ProjectionCache struct {
	store CacheStore
	cfg   CacheConfig
	now   func() time.Time
}

// NewProjectionCache creates a cache tier over store.
func NewProjectionCache(store CacheStore, cfg CacheConfig, opts ...CacheOption) *ProjectionCache {
	c := &ProjectionCache{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheOption configures a ProjectionCache.
type CacheOption func(*ProjectionCache)

// WithCacheClock overrides the cache time source.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *ProjectionCache) { c.now = now }
}

func (c *ProjectionCache) Tier() Tier { return TierProjectionCache }

func (c *ProjectionCache) Query(ctx context.Context, req Request) (Answer, error) {
	entry, ok, err := c.store.Get(ctx, cacheKey(req.Query))
	if err != nil {
		return Answer{}, unavailable(TierProjectionCache, err)
	}
	now := c.now()
	if !ok || !now.Before(entry.ExpiresAt) {
		return Answer{}, ErrNotFound
	}
	return Answer{Evidence: entry.Evidence, Staleness: nonNegative(now.Sub(entry.AsOf))}, nil
}

// Populate stores an answer produced by a deeper tier.
func (c *ProjectionCache) Populate(ctx context.Context, q query.ScopedQuery, answer Answer) error {
	now := c.now()
	ttl := c.cfg.TTL
	if q.Surface == query.SurfaceHealth || q.Surface == query.SurfaceQueue {
		ttl = c.cfg.PollTTL
	}
	if ttl <= 0 {
		return nil
	}
	entry := CacheEntry{
		Evidence:  answer.Evidence,
		AsOf:      now.Add(-answer.Staleness),
		ExpiresAt: now.Add(ttl),
	}
	if err := c.store.Put(ctx, cacheKey(q), entry); err != nil {
		return fmt.Errorf("populating projection cache: %w", err)
	}
	return nil
}

// Close releases the backing store if it holds resources.
func (c *ProjectionCache) Close() error {
	if closer, ok := c.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func cacheKey(q query.ScopedQuery) string {
	return q.TenantID + ":" + q.EvidenceKey()
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// MemoryStore is an in-process CacheStore.
type MemoryStore struct {
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, entries: make(map[string]CacheEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (CacheEntry, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	return entry, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.entries[key]; ok && current.AsOf.After(entry.AsOf) && s.now().Before(current.ExpiresAt) {
		return nil
	}
	s.entries[key] = entry
	s.sweepLocked()
	return nil
}

// sweepLocked drops expired entries once the map grows past a soft bound.
func (s *MemoryStore) sweepLocked() {
	if len(s.entries) < 4096 {
		return
	}
	now := s.now()
	for key, entry := range s.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(s.entries, key)
		}
	}
}
