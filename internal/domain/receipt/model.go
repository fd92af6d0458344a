package receipt

import "time"

// Kind identifies the event a receipt records.
type Kind string

const (
	KindAccepted         Kind = "accepted"
	KindEscalate         Kind = "escalate"
	KindComplete         Kind = "complete"
	KindShipmentComplete Kind = "shipment_complete"
)

// Receipt is an immutable record of an event observed in the mesh ledger.
type Receipt struct {
	ReceiptID         string         `json:"receipt_id"`
	TenantID          string         `json:"tenant_id"`
	Kind              Kind           `json:"kind"`
	TaskID            string         `json:"task_id,omitempty"`
	RootTaskID        string         `json:"root_task_id,omitempty"`
	ParentTaskID      string         `json:"parent_task_id,omitempty"`
	CausedByReceiptID string         `json:"caused_by_receipt_id,omitempty"`
	RecipientAI       string         `json:"recipient_ai,omitempty"`
	Status            string         `json:"status,omitempty"`
	ArtifactPointer   string         `json:"artifact_pointer,omitempty"`
	Body              map[string]any `json:"body,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	StoredAt          time.Time      `json:"stored_at"`
	Redacted          bool           `json:"redacted,omitempty"`
}

// Subject returns the task the receipt speaks about.
func (r Receipt) Subject() string {
	if r.TaskID != "" {
		return r.TaskID
	}
	return r.RootTaskID
}

// BelongsTo reports whether the receipt is part of the root obligation's evidence.
func (r Receipt) BelongsTo(rootTaskID string) bool {
	return r.RootTaskID == rootTaskID || r.TaskID == rootTaskID
}

// Latest returns the receipt with the newest creation time.
func Latest(receipts []Receipt) (Receipt, bool) {
	if len(receipts) == 0 {
		return Receipt{}, false
	}
	latest := receipts[0]
	for _, r := range receipts[1:] {
		if r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return latest, true
}
