package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rpggio/interview/internal/domain/evidence"
)

// StorageConfig locates the artifact metadata store.
type StorageConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// StorageMetadataClient reads artifact metadata. It only serves the artifact
// inventory surface.
type StorageMetadataClient struct {
	cfg  StorageConfig
	http httpReader
}

// NewStorageMetadataClient creates the storage tier.
func NewStorageMetadataClient(cfg StorageConfig, client *http.Client) *StorageMetadataClient {
	return &StorageMetadataClient{
		cfg:  cfg,
		http: newHTTPReader(TierStorageMetadata, client, cfg.Timeout, cfg.APIKey),
	}
}

func (s *StorageMetadataClient) Tier() Tier { return TierStorageMetadata }

type artifactMetadata struct {
	Artifacts       []evidence.Artifact    `json:"artifacts"`
	ManifestPointer string                 `json:"shipment_manifest_pointer"`
	StagedCounts    *evidence.StagedCounts `json:"staged_counts"`
}

func (s *StorageMetadataClient) Query(ctx context.Context, req Request) (Answer, error) {
	q := req.Query
	params := url.Values{
		"tenant_id": {q.TenantID},
		"limit":     {strconv.Itoa(req.MaxScan + 1)},
	}
	if q.RootTaskID != "" {
		params.Set("root_task_id", q.RootTaskID)
	}
	if q.DeliverableID != "" {
		params.Set("deliverable_id", q.DeliverableID)
	}

	var body artifactMetadata
	if err := s.http.getJSON(ctx, "depotgate.list_artifacts", s.cfg.URL, "/artifacts/metadata", params, &body); err != nil {
		return Answer{}, err
	}

	ev := evidence.Evidence{
		Artifacts:       body.Artifacts,
		ManifestPointer: body.ManifestPointer,
		StagedCounts:    body.StagedCounts,
	}
	if req.MaxScan > 0 && len(ev.Artifacts) > req.MaxScan {
		ev.Artifacts = ev.Artifacts[:req.MaxScan]
		ev.Capped = true
	}
	if ev.Empty() {
		return Answer{}, ErrNotFound
	}
	return Answer{Evidence: ev}, nil
}
