package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/interview/internal/domain/evidence"
	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/domain/receipt"
	"github.com/rpggio/interview/internal/ledgerdb"
)

// MirrorReader is the read side of the ledger mirror.
type MirrorReader interface {
	SearchReceipts(ctx context.Context, tenantID, rootTaskID string, limit int) ([]receipt.Receipt, error)
	GetReceipt(ctx context.Context, tenantID, receiptID string) (receipt.Receipt, error)
	SyncedAt(ctx context.Context, tenantID string) (time.Time, error)
}

// LedgerMirror answers receipt queries from the eventually consistent mirror.
// Its staleness is the time since the tenant's mirror last synced.
type LedgerMirror struct {
	reader  MirrorReader
	timeout time.Duration
	now     func() time.Time
}

// NewLedgerMirror creates the mirror tier.
func NewLedgerMirror(reader MirrorReader, timeout time.Duration) *LedgerMirror {
	return &LedgerMirror{reader: reader, timeout: timeout, now: time.Now}
}

func (m *LedgerMirror) Tier() Tier { return TierLedgerMirror }

func (m *LedgerMirror) Query(ctx context.Context, req Request) (Answer, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	q := req.Query

	syncedAt, err := m.reader.SyncedAt(ctx, q.TenantID)
	if errors.Is(err, ledgerdb.ErrNotFound) {
		return Answer{}, unavailable(TierLedgerMirror, fmt.Errorf("mirror has never synced tenant %s", q.TenantID))
	}
	if err != nil {
		return Answer{}, unavailable(TierLedgerMirror, err)
	}
	staleness := nonNegative(m.now().Sub(syncedAt))

	switch q.Surface {
	case query.SurfaceGetReceipt:
		rec, err := m.reader.GetReceipt(ctx, q.TenantID, q.ReceiptID)
		if errors.Is(err, ledgerdb.ErrNotFound) {
			return Answer{}, ErrNotFound
		}
		if err != nil {
			return Answer{}, unavailable(TierLedgerMirror, err)
		}
		return Answer{Evidence: evidence.Evidence{Receipts: []receipt.Receipt{rec}}, Staleness: staleness}, nil
	default:
		receipts, err := m.reader.SearchReceipts(ctx, q.TenantID, q.RootTask(), req.MaxScan+1)
		if err != nil {
			return Answer{}, unavailable(TierLedgerMirror, err)
		}
		return receiptAnswer(receipts, req.MaxScan, staleness)
	}
}
