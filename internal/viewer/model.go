package viewer

import (
	"time"

	"github.com/rpggio/interview/internal/domain/evidence"
	"github.com/rpggio/interview/internal/domain/receipt"
	"github.com/rpggio/interview/internal/domain/status"
	"github.com/rpggio/interview/internal/response"
)

// StatusSummary is the derived state of a root task.
type StatusSummary struct {
	TenantID         string           `json:"tenant_id"`
	RootTaskID       string           `json:"root_task_id"`
	State            status.TaskState `json:"state"`
	LatestReceiptID  string           `json:"latest_receipt_id,omitempty"`
	LastUpdatedAt    *time.Time       `json:"last_updated_at,omitempty"`
	ReceiptCount     int              `json:"receipt_count"`
	ArtifactPointers []string         `json:"artifact_pointers"`
	Redacted         bool             `json:"redacted,omitempty"`
}

type StatusResult struct {
	Status   StatusSummary     `json:"status"`
	Metadata response.Metadata `json:"metadata"`
}

type ReceiptsResult struct {
	Receipts []receipt.Receipt `json:"receipts"`
	Redacted bool              `json:"redacted,omitempty"`
	Metadata response.Metadata `json:"metadata"`
}

// ReceiptResult holds a single receipt lookup. Found is false when every
// source that answered reported no such receipt.
type ReceiptResult struct {
	Receipt  *receipt.Receipt  `json:"receipt,omitempty"`
	Found    bool              `json:"found"`
	Metadata response.Metadata `json:"metadata"`
}

type HealthResult struct {
	Health   *evidence.Health  `json:"health,omitempty"`
	Found    bool              `json:"found"`
	Redacted bool              `json:"redacted,omitempty"`
	Metadata response.Metadata `json:"metadata"`
}

type QueueResult struct {
	Queue    *evidence.Queue   `json:"queue,omitempty"`
	Found    bool              `json:"found"`
	Redacted bool              `json:"redacted,omitempty"`
	Metadata response.Metadata `json:"metadata"`
}

type ArtifactsResult struct {
	Artifacts       []evidence.Artifact    `json:"artifact_pointers"`
	ManifestPointer string                 `json:"shipment_manifest_pointer,omitempty"`
	StagedCounts    *evidence.StagedCounts `json:"staged_counts_by_role,omitempty"`
	Redacted        bool                   `json:"redacted,omitempty"`
	Metadata        response.Metadata      `json:"metadata"`
}
