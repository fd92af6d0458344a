package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpggio/interview/internal/domain/query"
	"github.com/stretchr/testify/require"
)

func TestStorageMetadataClient_Inventory(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, "/artifacts/metadata", func(r *http.Request) {
		require.Equal(t, "t1", r.URL.Query().Get("tenant_id"))
		require.Equal(t, "r1", r.URL.Query().Get("root_task_id"))
	}, map[string]any{
		"artifacts": []map[string]any{
			{"artifact_id": "art-1", "root_task_id": "r1", "artifact_role": "plan", "location": "s3://depot/art-1", "size_bytes": 12},
		},
		"shipment_manifest_pointer": "s3://depot/manifest.json",
		"staged_counts":             map[string]any{"plan": 1},
	}))
	t.Cleanup(srv.Close)

	s := NewStorageMetadataClient(StorageConfig{URL: srv.URL, Timeout: time.Second}, srv.Client())
	ans, err := s.Query(context.Background(), Request{
		Query:   query.ScopedQuery{TenantID: "t1", Surface: query.SurfaceArtifacts, Identifiers: query.Identifiers{RootTaskID: "r1"}},
		MaxScan: 100,
	})
	require.NoError(t, err)
	require.Len(t, ans.Evidence.Artifacts, 1)
	require.Equal(t, "s3://depot/art-1", ans.Evidence.Artifacts[0].Location)
	require.Equal(t, "s3://depot/manifest.json", ans.Evidence.ManifestPointer)
	require.Equal(t, 1, ans.Evidence.StagedCounts.Plan)
}

func TestStorageMetadataClient_EmptyIsNotFound(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, "/artifacts/metadata", nil, map[string]any{"artifacts": []any{}}))
	t.Cleanup(srv.Close)

	s := NewStorageMetadataClient(StorageConfig{URL: srv.URL, Timeout: time.Second}, srv.Client())
	_, err := s.Query(context.Background(), Request{
		Query: query.ScopedQuery{TenantID: "t1", Surface: query.SurfaceArtifacts, Identifiers: query.Identifiers{DeliverableID: "d1"}},
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGlobalLedgerGate_Search(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, "/receipts/search", func(r *http.Request) {
		require.Equal(t, "Bearer ledger-key", r.Header.Get("Authorization"))
	}, map[string]any{"receipts": []map[string]any{
		{"receipt_id": "g1", "kind": "shipment_complete", "root_task_id": "r1"},
	}}))
	t.Cleanup(srv.Close)

	g := NewGlobalLedgerGate(GlobalLedgerConfig{URL: srv.URL, APIKey: "ledger-key", Timeout: time.Second}, srv.Client())
	ans, err := g.Query(context.Background(), Request{
		Query:   query.ScopedQuery{TenantID: "t1", Surface: query.SurfaceGlobalLedger, Identifiers: query.Identifiers{RootTaskID: "r1"}},
		MaxScan: 10,
	})
	require.NoError(t, err)
	require.Len(t, ans.Evidence.Receipts, 1)
	require.Equal(t, TierGlobalLedger, g.Tier())
}
