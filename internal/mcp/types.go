package mcp

import (
	"time"

	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/domain/receipt"
)

// ControlArgs are the bounded request controls shared by the query tools.
type ControlArgs struct {
	Limit             int    `json:"limit,omitempty" jsonschema:"maximum results (1-200, default 100)"`
	TimeWindowHours   int    `json:"time_window_hours,omitempty" jsonschema:"only receipts created within this many hours (1-168, default 24)"`
	IncludeBody       bool   `json:"include_body,omitempty" jsonschema:"include receipt bodies (requires can_view_receipts)"`
	Freshness         string `json:"freshness,omitempty" jsonschema:"cache_ok (default), fresh, or authoritative"`
	AllowGlobalLedger *bool  `json:"allow_global_ledger,omitempty" jsonschema:"permit the global ledger tier (requires can_force_global_ledger)"`
	PageToken         string `json:"page_token,omitempty" jsonschema:"next_page_token from a previous page"`
}

func (c ControlArgs) controls() query.Controls {
	return query.Controls{
		Limit:             c.Limit,
		TimeWindow:        time.Duration(c.TimeWindowHours) * time.Hour,
		IncludeBody:       c.IncludeBody,
		Freshness:         query.Freshness(c.Freshness),
		AllowGlobalLedger: c.AllowGlobalLedger,
		PageToken:         c.PageToken,
	}
}

type InfoArgs struct{}

type StatusArgs struct {
	TenantID   string `json:"tenant_id" jsonschema:"tenant to query"`
	TaskID     string `json:"task_id,omitempty" jsonschema:"task id, used as the root when root_task_id is absent"`
	RootTaskID string `json:"root_task_id,omitempty" jsonschema:"root task id of the lineage"`
	ControlArgs
}

type SearchReceiptsArgs struct {
	TenantID    string `json:"tenant_id" jsonschema:"tenant to query"`
	RootTaskID  string `json:"root_task_id" jsonschema:"root task id of the lineage"`
	Phase       string `json:"phase,omitempty" jsonschema:"only receipts of this kind (accepted, escalate, complete, shipment_complete)"`
	RecipientAI string `json:"recipient_ai,omitempty" jsonschema:"only receipts addressed to this recipient"`
	Filter      string `json:"filter,omitempty" jsonschema:"CEL boolean expression over receipt fields, e.g. receipt.status == 'ok'"`
	ControlArgs
}

type GetReceiptArgs struct {
	TenantID  string `json:"tenant_id" jsonschema:"tenant to query"`
	ReceiptID string `json:"receipt_id" jsonschema:"receipt id"`
	ControlArgs
}

type HealthArgs struct {
	TenantID  string `json:"tenant_id" jsonschema:"tenant to query"`
	Verbose   bool   `json:"verbose,omitempty" jsonschema:"include the metrics snapshot"`
	Freshness string `json:"freshness,omitempty" jsonschema:"cache_ok (default), fresh, or authoritative"`
}

type QueueArgs struct {
	TenantID        string `json:"tenant_id" jsonschema:"tenant to query"`
	QueueID         string `json:"queue_id,omitempty" jsonschema:"specific queue id"`
	Limit           int    `json:"limit,omitempty" jsonschema:"maximum example items (capped at 50)"`
	IncludeExamples bool   `json:"include_examples,omitempty" jsonschema:"include example item headers"`
	Freshness       string `json:"freshness,omitempty" jsonschema:"cache_ok (default), fresh, or authoritative"`
}

type ArtifactsArgs struct {
	TenantID      string `json:"tenant_id" jsonschema:"tenant to query"`
	RootTaskID    string `json:"root_task_id,omitempty" jsonschema:"root task id of the lineage"`
	DeliverableID string `json:"deliverable_id,omitempty" jsonschema:"deliverable id"`
	ControlArgs
}

type GlobalLedgerArgs struct {
	TenantID   string `json:"tenant_id" jsonschema:"tenant to query"`
	RootTaskID string `json:"root_task_id" jsonschema:"root task id of the lineage"`
	ControlArgs
}

func (a StatusArgs) query() query.ScopedQuery {
	return query.ScopedQuery{
		TenantID:    a.TenantID,
		Identifiers: query.Identifiers{TaskID: a.TaskID, RootTaskID: a.RootTaskID},
		Controls:    a.controls(),
	}
}

func (a SearchReceiptsArgs) query() query.ScopedQuery {
	return query.ScopedQuery{
		TenantID:    a.TenantID,
		Identifiers: query.Identifiers{RootTaskID: a.RootTaskID},
		Filters:     query.Filters{Kind: receipt.Kind(a.Phase), RecipientAI: a.RecipientAI, Expr: a.Filter},
		Controls:    a.controls(),
	}
}

func (a GetReceiptArgs) query() query.ScopedQuery {
	return query.ScopedQuery{
		TenantID:    a.TenantID,
		Identifiers: query.Identifiers{ReceiptID: a.ReceiptID},
		Controls:    a.controls(),
	}
}

func (a HealthArgs) query() query.ScopedQuery {
	return query.ScopedQuery{
		TenantID: a.TenantID,
		Controls: query.Controls{IncludeBody: a.Verbose, Freshness: query.Freshness(a.Freshness)},
	}
}

func (a QueueArgs) query() query.ScopedQuery {
	return query.ScopedQuery{
		TenantID:    a.TenantID,
		Identifiers: query.Identifiers{QueueID: a.QueueID},
		Controls:    query.Controls{Limit: a.Limit, IncludeBody: a.IncludeExamples, Freshness: query.Freshness(a.Freshness)},
	}
}

func (a ArtifactsArgs) query() query.ScopedQuery {
	return query.ScopedQuery{
		TenantID:    a.TenantID,
		Identifiers: query.Identifiers{RootTaskID: a.RootTaskID, DeliverableID: a.DeliverableID},
		Controls:    a.controls(),
	}
}

func (a GlobalLedgerArgs) query() query.ScopedQuery {
	return query.ScopedQuery{
		TenantID:    a.TenantID,
		Identifiers: query.Identifiers{RootTaskID: a.RootTaskID},
		Controls:    a.controls(),
	}
}
