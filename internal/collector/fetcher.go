package collector

import (
	"context"
	"fmt"

	"WhaleSentinel/internal/model"
)

// FilterCash restricts the feed to trades whose cash notional is at least FilterAmount.
const FilterCash = "CASH"

// TradeQuery is one page request against the trade feed.
type TradeQuery struct {
	Limit        int
	Offset       int
	TakerOnly    bool
	FilterType   string
	FilterAmount float64
}

// Validate rejects a query that sets only one half of the notional filter.
func (q TradeQuery) Validate() error {
	if (q.FilterType == "") != (q.FilterAmount == 0) {
		return fmt.Errorf("filter type and filter amount must be set together")
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("limit and offset must not be negative")
	}
	return nil
}

// Fetcher defines the interface for fetching pages of the public trade feed.
// Pages are ordered newest first.
type Fetcher interface {
	FetchTrades(ctx context.Context, q TradeQuery) ([]model.Trade, error)
	Name() string
}
