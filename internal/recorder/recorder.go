package recorder

import (
	"context"

	"WhaleSentinel/internal/model"
)

// UpsertResult summarizes one batch insert.
type UpsertResult struct {
	// Inserted counts rows that were new; duplicates are silent no-ops.
	Inserted int
	// MaxTimestamp is the newest trade in the input batch, not the store.
	MaxTimestamp int64
	// WalletsTouched lists every wallet in the batch, sorted.
	WalletsTouched []string
	// WalletsInserted lists wallets with at least one newly inserted row, sorted.
	WalletsInserted []string
}

// Store is the durable, deduplicating trade ledger plus the poll watermark.
type Store interface {
	// Upsert inserts the batch atomically, ignoring trades whose dedupe key is
	// already present. On error nothing from the batch is persisted.
	Upsert(ctx context.Context, trades []model.Trade) (*UpsertResult, error)
	Watermark(ctx context.Context) (int64, error)
	// SetWatermark raises the watermark to ts. Lower values are ignored.
	SetWatermark(ctx context.Context, ts int64) error
	// WalletAggregate returns nil when the wallet has no stored trades.
	WalletAggregate(ctx context.Context, wallet string, now int64) (*model.WalletAggregate, error)
	TradeCount(ctx context.Context) (int64, error)
	Close() error
}
