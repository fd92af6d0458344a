package sources

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rpggio/interview/internal/domain/evidence"
	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/domain/receipt"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func receiptsEvidence(ids ...string) evidence.Evidence {
	var ev evidence.Evidence
	for _, id := range ids {
		ev.Receipts = append(ev.Receipts, receipt.Receipt{ReceiptID: id, TenantID: "t1", Kind: receipt.KindAccepted, RootTaskID: "r1", CreatedAt: testNow})
	}
	return ev
}

func statusQuery(tenant, root string) query.ScopedQuery {
	return query.ScopedQuery{
		TenantID:    tenant,
		Surface:     query.SurfaceStatus,
		Identifiers: query.Identifiers{RootTaskID: root},
	}
}

func TestProjectionCache_MissThenHit(t *testing.T) {
	ctx := context.Background()
	now := testNow
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	cache := NewProjectionCache(store, CacheConfig{TTL: time.Minute, PollTTL: 5 * time.Second}, WithCacheClock(func() time.Time { return now }))

	q := statusQuery("t1", "r1")
	_, err := cache.Query(ctx, Request{Query: q})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, cache.Populate(ctx, q, Answer{Evidence: receiptsEvidence("a"), Staleness: 3 * time.Second}))

	now = now.Add(2 * time.Second)
	ans, err := cache.Query(ctx, Request{Query: q})
	require.NoError(t, err)
	require.Len(t, ans.Evidence.Receipts, 1)
	require.Equal(t, 5*time.Second, ans.Staleness)

	// Same evidence key from the search surface.
	search := q
	search.Surface = query.SurfaceSearchReceipts
	_, err = cache.Query(ctx, Request{Query: search})
	require.NoError(t, err)

	// Other tenants never see the entry.
	_, err = cache.Query(ctx, Request{Query: statusQuery("t2", "r1")})
	require.ErrorIs(t, err, ErrNotFound)

	now = now.Add(time.Minute)
	_, err = cache.Query(ctx, Request{Query: q})
	require.ErrorIs(t, err, ErrNotFound, "expired entries are misses")
}

func TestProjectionCache_PollTTL(t *testing.T) {
	ctx := context.Background()
	now := testNow
	cache := NewProjectionCache(NewMemoryStore(), CacheConfig{TTL: time.Minute, PollTTL: 5 * time.Second}, WithCacheClock(func() time.Time { return now }))

	q := query.ScopedQuery{TenantID: "t1", Surface: query.SurfaceHealth}
	require.NoError(t, cache.Populate(ctx, q, Answer{Evidence: evidence.Evidence{Health: &evidence.Health{ComponentID: "asyncgate", Reachable: true}}}))

	now = now.Add(4 * time.Second)
	_, err := cache.Query(ctx, Request{Query: q})
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = cache.Query(ctx, Request{Query: q})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_KeepsNewerSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.now = func() time.Time { return testNow }

	newer := CacheEntry{Evidence: receiptsEvidence("new"), AsOf: testNow, ExpiresAt: testNow.Add(time.Minute)}
	older := CacheEntry{Evidence: receiptsEvidence("old"), AsOf: testNow.Add(-time.Minute), ExpiresAt: testNow.Add(time.Minute)}

	require.NoError(t, store.Put(ctx, "k", newer))
	require.NoError(t, store.Put(ctx, "k", older))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "new", got.Evidence.Receipts[0].ReceiptID)
}

func TestRedisStore_RoundTripAndOrdering(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "test:")
	store.now = func() time.Time { return testNow }
	t.Cleanup(func() { _ = store.Close() })

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	newer := CacheEntry{Evidence: receiptsEvidence("new"), AsOf: testNow, ExpiresAt: testNow.Add(time.Minute)}
	older := CacheEntry{Evidence: receiptsEvidence("old"), AsOf: testNow.Add(-time.Minute), ExpiresAt: testNow.Add(time.Minute)}
	require.NoError(t, store.Put(ctx, "k", newer))
	require.NoError(t, store.Put(ctx, "k", older))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "new", got.Evidence.Receipts[0].ReceiptID)
	require.True(t, got.AsOf.Equal(testNow))

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok, "redis expires entries with the entry TTL")
}

func TestRedisStore_UnavailableIsTierFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	cache := NewProjectionCache(NewRedisStore(client, ""), CacheConfig{TTL: time.Minute})
	mr.Close()

	_, err := cache.Query(context.Background(), Request{Query: statusQuery("t1", "r1")})
	require.ErrorIs(t, err, ErrSourceUnavailable)
}
