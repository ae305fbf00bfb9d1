package strategy

import (
	"context"
	"fmt"

	"WhaleSentinel/internal/calculator"
	"WhaleSentinel/internal/model"

	"go.uber.org/zap"
)

// AlertThreshold is the minimum score that produces an alert.
const AlertThreshold = 6

// Params are the operator-tunable scoring inputs.
type Params struct {
	CashThreshold  float64
	MinOpenMinutes float64
	// RequireCloseTime rejects markets with neither a closed time nor an end date.
	RequireCloseTime bool
}

// AggregateSource computes wallet aggregates from stored trades.
type AggregateSource interface {
	WalletAggregate(ctx context.Context, wallet string, now int64) (*model.WalletAggregate, error)
}

// StatusSource resolves market liveness; ok is false when unknown.
type StatusSource interface {
	Get(ctx context.Context, marketID string) (*model.MarketStatus, bool)
}

// Scorer turns a wallet's stored history into zero or one alert.
type Scorer struct {
	Aggregates AggregateSource
	Status     StatusSource
	logger     *zap.Logger
}

// NewScorer creates a new Scorer.
func NewScorer(logger *zap.Logger, aggregates AggregateSource, status StatusSource) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{Aggregates: aggregates, Status: status, logger: logger}
}

// Score returns an alert for the wallet, or nil when any gate fails or the
// score stays under AlertThreshold. Every gate fails closed except an unknown
// close time, which passes unless RequireCloseTime is set.
func (s *Scorer) Score(ctx context.Context, wallet string, now int64, p Params) (*model.Alert, error) {
	agg, err := s.Aggregates.WalletAggregate(ctx, wallet, now)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", wallet, err)
	}
	if agg == nil {
		return nil, nil
	}
	if agg.TopMarketID == "" {
		s.skip(wallet, "no 30d activity")
		return nil, nil
	}

	market, ok := s.Status.Get(ctx, agg.TopMarketID)
	if !ok {
		s.skip(wallet, "market status unavailable")
		return nil, nil
	}
	if market.Closed {
		s.skip(wallet, "market closed")
		return nil, nil
	}

	var minutesUntilClose *float64
	if closeTs, known := market.CloseTime(); known {
		m := calculator.MinutesUntil(now, closeTs)
		if m < p.MinOpenMinutes {
			s.skip(wallet, "market closing soon")
			return nil, nil
		}
		minutesUntilClose = &m
	} else if p.RequireCloseTime {
		s.skip(wallet, "market close time unknown")
		return nil, nil
	}

	score, flags := Evaluate(agg, now, p)
	if score < AlertThreshold {
		return nil, nil
	}

	return &model.Alert{
		Wallet:            wallet,
		Score:             score,
		Flags:             flags,
		WalletAgeDays:     calculator.WalletAgeDays(now, agg.FirstSeen),
		TotalTrades:       agg.TotalTrades,
		Trades24h:         agg.Trades24h,
		Notional24h:       agg.Notional24h,
		Notional30d:       agg.Notional30d,
		UniqueMarkets30d:  agg.UniqueMarkets30d,
		UniqueEvents30d:   agg.UniqueEvents30d,
		TopMarketShare30d: agg.TopMarketShare30d(),
		FirstSeen:         agg.FirstSeen,
		LastSeen:          agg.LastSeen,
		MarketID:          agg.TopMarketID,
		MinutesUntilClose: minutesUntilClose,
	}, nil
}

func (s *Scorer) skip(wallet, reason string) {
	s.logger.Debug("wallet not scored", zap.String("wallet", wallet), zap.String("reason", reason))
}
