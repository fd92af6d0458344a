package ledgerdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/interview/internal/domain/receipt"
)

// Repository reads mirrored receipts. The write methods exist for the mirror
// sync job and for tests; nothing in the query path calls them.
type Repository struct {
	db *DB
}

// NewRepository creates a Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

const receiptColumns = `receipt_id, tenant_id, kind, task_id, root_task_id, parent_task_id,
	caused_by_receipt_id, recipient_ai, status, artifact_pointer, body, created_at, stored_at`

// SearchReceipts returns up to limit receipts under rootTaskID, oldest first.
func (r *Repository) SearchReceipts(ctx context.Context, tenantID, rootTaskID string, limit int) ([]receipt.Receipt, error) {
	query := r.db.rebind(`
		SELECT ` + receiptColumns + `
		FROM receipts
		WHERE tenant_id = ? AND (root_task_id = ? OR task_id = ?)
		ORDER BY created_at, receipt_id
		LIMIT ?
	`)
	rows, err := r.db.QueryContext(ctx, query, tenantID, rootTaskID, rootTaskID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search receipts: %w", err)
	}
	defer rows.Close()

	var out []receipt.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}
	return out, nil
}

// GetReceipt returns one receipt by id.
func (r *Repository) GetReceipt(ctx context.Context, tenantID, receiptID string) (receipt.Receipt, error) {
	query := r.db.rebind(`SELECT ` + receiptColumns + ` FROM receipts WHERE tenant_id = ? AND receipt_id = ?`)
	rec, err := scanReceipt(r.db.QueryRowContext(ctx, query, tenantID, receiptID))
	if errors.Is(err, sql.ErrNoRows) {
		return receipt.Receipt{}, ErrNotFound
	}
	if err != nil {
		return receipt.Receipt{}, err
	}
	return rec, nil
}

// SyncedAt returns when the mirror last caught up with the ledger for a tenant.
func (r *Repository) SyncedAt(ctx context.Context, tenantID string) (time.Time, error) {
	var syncedAt time.Time
	err := r.db.QueryRowContext(ctx, r.db.rebind(`SELECT synced_at FROM mirror_state WHERE tenant_id = ?`), tenantID).Scan(&syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read sync state: %w", err)
	}
	return syncedAt, nil
}

// InsertReceipt stores a receipt. Receipts are immutable, so an existing id is left untouched.
func (r *Repository) InsertReceipt(ctx context.Context, rec receipt.Receipt) error {
	var body any
	if len(rec.Body) > 0 {
		data, err := json.Marshal(rec.Body)
		if err != nil {
			return fmt.Errorf("failed to encode receipt body: %w", err)
		}
		body = string(data)
	}
	storedAt := rec.StoredAt
	if storedAt.IsZero() {
		storedAt = rec.CreatedAt
	}
	query := r.db.rebind(`
		INSERT INTO receipts (` + receiptColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (receipt_id) DO NOTHING
	`)
	_, err := r.db.ExecContext(ctx, query,
		rec.ReceiptID,
		rec.TenantID,
		string(rec.Kind),
		rec.TaskID,
		rec.RootTaskID,
		rec.ParentTaskID,
		rec.CausedByReceiptID,
		rec.RecipientAI,
		rec.Status,
		rec.ArtifactPointer,
		body,
		rec.CreatedAt.UTC(),
		storedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

// MarkSynced records the time the tenant's mirror was known current.
func (r *Repository) MarkSynced(ctx context.Context, tenantID string, at time.Time) error {
	query := r.db.rebind(`
		INSERT INTO mirror_state (tenant_id, synced_at) VALUES (?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET synced_at = excluded.synced_at
	`)
	if _, err := r.db.ExecContext(ctx, query, tenantID, at.UTC()); err != nil {
		return fmt.Errorf("failed to mark mirror synced: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(s scanner) (receipt.Receipt, error) {
	var (
		rec  receipt.Receipt
		kind string
		body sql.NullString
	)
	err := s.Scan(
		&rec.ReceiptID,
		&rec.TenantID,
		&kind,
		&rec.TaskID,
		&rec.RootTaskID,
		&rec.ParentTaskID,
		&rec.CausedByReceiptID,
		&rec.RecipientAI,
		&rec.Status,
		&rec.ArtifactPointer,
		&body,
		&rec.CreatedAt,
		&rec.StoredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return receipt.Receipt{}, err
		}
		return receipt.Receipt{}, fmt.Errorf("failed to scan receipt: %w", err)
	}
	rec.Kind = receipt.Kind(kind)
	if body.Valid && body.String != "" {
		if err := json.Unmarshal([]byte(body.String), &rec.Body); err != nil {
			return receipt.Receipt{}, fmt.Errorf("failed to decode receipt body: %w", err)
		}
	}
	return rec, nil
}
