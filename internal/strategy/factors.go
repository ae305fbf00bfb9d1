package strategy

import (
	"WhaleSentinel/internal/calculator"
	"WhaleSentinel/internal/model"
)

const (
	newWalletMaxAgeDays  = 30
	newWhaleMaxTrades    = 30
	concentrationShare   = 0.85
	burstMinTrades24h    = 5
	burstMaxLifetimeTrades = 15
)

// Rule is one additive heuristic.
type Rule struct {
	Flag   model.Flag
	Points int
	Match  func(agg *model.WalletAggregate, now int64, p Params) bool
}

// Rules is evaluated in order; every matching rule adds its points.
var Rules = []Rule{
	{Flag: model.FlagNewWhale, Points: 6, Match: isNewWhale},
	{Flag: model.FlagConcentrated, Points: 3, Match: isConcentrated},
	{Flag: model.FlagBurst, Points: 2, Match: isBurst},
}

// isNewWhale: young wallet, large 24h notional, short history.
func isNewWhale(agg *model.WalletAggregate, now int64, p Params) bool {
	return calculator.WalletAgeDays(now, agg.FirstSeen) <= newWalletMaxAgeDays &&
		agg.Notional24h >= p.CashThreshold &&
		agg.TotalTrades <= newWhaleMaxTrades
}

// isConcentrated: large 30d notional piled into one market or one event.
func isConcentrated(agg *model.WalletAggregate, _ int64, p Params) bool {
	if agg.Notional30d < p.CashThreshold {
		return false
	}
	singleEvent := agg.UniqueEvents30d > 0 && agg.UniqueEvents30d <= 1
	return agg.TopMarketShare30d() >= concentrationShare || singleEvent
}

// isBurst: many trades in the last day from a wallet with little history.
func isBurst(agg *model.WalletAggregate, _ int64, _ Params) bool {
	return agg.Trades24h >= burstMinTrades24h && agg.TotalTrades <= burstMaxLifetimeTrades
}

// Evaluate applies every rule and returns the total score and triggered flags.
func Evaluate(agg *model.WalletAggregate, now int64, p Params) (int, []model.Flag) {
	score := 0
	var flags []model.Flag
	for _, r := range Rules {
		if r.Match(agg, now, p) {
			score += r.Points
			flags = append(flags, r.Flag)
		}
	}
	return score, flags
}
