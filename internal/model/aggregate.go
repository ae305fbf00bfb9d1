package model

// WalletAggregate holds rolling statistics for one wallet, recomputed from the
// trade ledger on every scoring pass.
type WalletAggregate struct {
	Wallet      string
	FirstSeen   int64
	LastSeen    int64
	TotalTrades int

	Notional24h float64
	Trades24h   int

	Notional30d      float64
	UniqueMarkets30d int
	UniqueEvents30d  int

	// TopMarketID is empty when the wallet has no trades in the 30 day window.
	TopMarketID          string
	TopMarketNotional30d float64
}

// TopMarketShare30d is the top market's fraction of the wallet's 30 day notional.
func (a *WalletAggregate) TopMarketShare30d() float64 {
	if a.Notional30d <= 0 {
		return 0
	}
	return a.TopMarketNotional30d / a.Notional30d
}
