package status

import "github.com/rpggio/interview/internal/domain/receipt"

// TaskState is the normalized state of a root obligation, derived per query.
type TaskState string

const (
	StateShipped          TaskState = "shipped"
	StateResolved         TaskState = "resolved"
	StateEscalatedBlocked TaskState = "escalated_blocked"
	StateInProgress       TaskState = "in_progress"
	StateUnknown          TaskState = "unknown"
)

// Derive computes the state of root from receipt evidence.
//
// Rules are checked in order and the first match wins:
//
//  1. any shipment_complete receipt: shipped
//  2. a complete receipt whose subject is the root: resolved
//  3. an escalate receipt that no accepted receipt answers: escalated_blocked
//  4. any accepted receipt: in_progress
//  5. otherwise: unknown
//
// An accepted receipt answers an escalation when its caused_by_receipt_id is the
// escalate receipt's id. Only existence is checked, so receipt order and elapsed
// time never change the result.
func Derive(root string, receipts []receipt.Receipt) TaskState {
	var (
		shipped   bool
		completed bool
		accepted  bool
		escalated []string
		answered  = make(map[string]bool)
	)

	for _, r := range receipts {
		if !r.BelongsTo(root) {
			continue
		}
		switch r.Kind {
		case receipt.KindShipmentComplete:
			shipped = true
		case receipt.KindComplete:
			if r.Subject() == root {
				completed = true
			}
		case receipt.KindEscalate:
			escalated = append(escalated, r.ReceiptID)
		case receipt.KindAccepted:
			accepted = true
			if r.CausedByReceiptID != "" {
				answered[r.CausedByReceiptID] = true
			}
		}
	}

	switch {
	case shipped:
		return StateShipped
	case completed:
		return StateResolved
	case hasOpenEscalation(escalated, answered):
		return StateEscalatedBlocked
	case accepted:
		return StateInProgress
	default:
		return StateUnknown
	}
}

func hasOpenEscalation(escalated []string, answered map[string]bool) bool {
	for _, id := range escalated {
		if !answered[id] {
			return true
		}
	}
	return false
}
