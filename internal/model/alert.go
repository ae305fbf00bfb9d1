package model

// Flag names a heuristic rule a wallet triggered.
type Flag string

const (
	FlagNewWhale     Flag = "NEW_WHALE"
	FlagConcentrated Flag = "CONCENTRATED"
	FlagBurst        Flag = "BURST"
)

// Alert is the output of a scoring pass that crossed the alert threshold.
type Alert struct {
	Wallet string
	Score  int
	Flags  []Flag

	WalletAgeDays     float64
	TotalTrades       int
	Trades24h         int
	Notional24h       float64
	Notional30d       float64
	UniqueMarkets30d  int
	UniqueEvents30d   int
	TopMarketShare30d float64
	FirstSeen         int64
	LastSeen          int64

	MarketID string
	// MinutesUntilClose is nil when the market has no known close time.
	MinutesUntilClose *float64
}

// FlagNames returns the triggered flags as plain strings.
func (a *Alert) FlagNames() []string {
	names := make([]string, len(a.Flags))
	for i, f := range a.Flags {
		names[i] = string(f)
	}
	return names
}
