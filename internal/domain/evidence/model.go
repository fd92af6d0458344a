package evidence

import (
	"time"

	"github.com/rpggio/interview/internal/domain/receipt"
)

// MetricsSnapshot is the task counter summary reported by a health poll.
type MetricsSnapshot struct {
	QueuedCount    int `json:"queued_count"`
	LeasedCount    int `json:"leased_count"`
	SucceededCount int `json:"succeeded_count"`
	FailedCount    int `json:"failed_count"`
}

// Health describes a component health answer.
type Health struct {
	ComponentID       string           `json:"component_id"`
	Reachable         bool             `json:"reachable"`
	Version           string           `json:"version,omitempty"`
	UptimeSeconds     int64            `json:"uptime_seconds,omitempty"`
	ErrorBudgetStatus string           `json:"error_budget_status,omitempty"`
	Metrics           *MetricsSnapshot `json:"metrics_snapshot,omitempty"`
	Diagnostics       map[string]any   `json:"diagnostics,omitempty"`
}

// QueueItem is a header-only view of a queued task.
type QueueItem struct {
	TaskID    string    `json:"task_id"`
	TaskType  string    `json:"task_type"`
	Status    string    `json:"status"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	AgeMs     int64     `json:"age_ms"`
}

// Queue describes a queue diagnostics answer.
type Queue struct {
	QueueID           string         `json:"queue_id,omitempty"`
	QueueDepth        int            `json:"queue_depth"`
	OldestItemAgeMs   int64          `json:"oldest_item_age_ms"`
	ActiveLeasesCount int            `json:"active_leases_count"`
	Items             []QueueItem    `json:"items,omitempty"`
	Diagnostics       map[string]any `json:"diagnostics,omitempty"`
}

// Artifact is a metadata pointer to a stored artifact.
type Artifact struct {
	ArtifactID  string    `json:"artifact_id"`
	RootTaskID  string    `json:"root_task_id"`
	MimeType    string    `json:"mime_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	Role        string    `json:"artifact_role,omitempty"`
	StagedAt    time.Time `json:"staged_at"`
	Location    string    `json:"location,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
}

// StagedCounts tallies staged artifacts by role.
type StagedCounts struct {
	Plan         int `json:"plan"`
	FinalOutput  int `json:"final_output"`
	Supporting   int `json:"supporting"`
	Intermediate int `json:"intermediate"`
}

// Evidence is everything a single source tier returned for a query.
// Only the fields relevant to the queried surface are populated.
type Evidence struct {
	Receipts        []receipt.Receipt `json:"receipts,omitempty"`
	Health          *Health           `json:"health,omitempty"`
	Queue           *Queue            `json:"queue,omitempty"`
	Artifacts       []Artifact        `json:"artifacts,omitempty"`
	ManifestPointer string            `json:"shipment_manifest_pointer,omitempty"`
	StagedCounts    *StagedCounts     `json:"staged_counts,omitempty"`
	// Capped is set when the source stopped scanning before exhausting its data.
	Capped bool `json:"capped,omitempty"`
}

// Empty reports whether the evidence carries no answer at all.
func (e Evidence) Empty() bool {
	return len(e.Receipts) == 0 &&
		e.Health == nil &&
		e.Queue == nil &&
		len(e.Artifacts) == 0 &&
		e.ManifestPointer == "" &&
		e.StagedCounts == nil
}
