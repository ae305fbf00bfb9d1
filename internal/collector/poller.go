package collector

import (
	"context"
	"fmt"
	"time"

	"WhaleSentinel/internal/calculator"
	"WhaleSentinel/internal/model"

	"go.uber.org/zap"
)

const (
	DefaultMaxPages  = 1000
	DefaultMaxTrades = 200_000
)

// PollOptions bounds a single walk over the feed.
type PollOptions struct {
	PageSize      int
	CashThreshold float64
	Watermark     int64
	Overlap       time.Duration
	// StopBefore, when set, replaces the watermark/overlap lower bound (backfill).
	StopBefore *int64
	MaxPages   int
	MaxTrades  int
	PageDelay  time.Duration
}

// Poller walks the newest-first trade feed page by page until it has seen
// everything at or above the lower bound.
type Poller struct {
	Fetcher Fetcher
	logger  *zap.Logger
}

// NewPoller creates a new Poller.
func NewPoller(logger *zap.Logger, fetcher Fetcher) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{Fetcher: fetcher, logger: logger}
}

// Poll returns every trade with timestamp >= the lower bound, newest first.
// Pages are fetched strictly sequentially with PageDelay between them.
func (p *Poller) Poll(ctx context.Context, opts PollOptions) ([]model.Trade, error) {
	if opts.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive")
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	maxTrades := opts.MaxTrades
	if maxTrades <= 0 {
		maxTrades = DefaultMaxTrades
	}
	lowerBound := calculator.LowerBound(opts.Watermark, opts.Overlap, opts.StopBefore)

	var all []model.Trade
	pages := 0
	for page := 0; page < maxPages && len(all) < maxTrades; page++ {
		if page > 0 && opts.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.PageDelay):
			}
		}

		trades, err := p.Fetcher.FetchTrades(ctx, TradeQuery{
			Limit:        opts.PageSize,
			Offset:       page * opts.PageSize,
			TakerOnly:    true,
			FilterType:   FilterCash,
			FilterAmount: opts.CashThreshold,
		})
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		pages++
		if len(trades) == 0 {
			break
		}

		for _, t := range trades {
			if t.Timestamp < lowerBound {
				continue
			}
			if t.ProxyWallet == "" || t.ConditionID == "" {
				p.logger.Warn("dropping trade without wallet or market",
					zap.String("tx", t.TransactionHash),
					zap.Int64("ts", t.Timestamp),
				)
				continue
			}
			all = append(all, t)
		}

		// The feed is newest first: once a page reaches the lower bound, later
		// pages only hold older trades.
		if trades[len(trades)-1].Timestamp <= lowerBound {
			break
		}
		if len(trades) < opts.PageSize {
			break
		}
	}

	p.logger.Debug("poll finished",
		zap.Int("pages", pages),
		zap.Int("trades", len(all)),
		zap.Int64("lowerBound", lowerBound),
	)
	return all, nil
}
