package model

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the taker side of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// dedupePrecision is the number of decimals size and price are rounded to in
// the fallback dedupe key.
const dedupePrecision = 8

// Trade is a single large-notional fill from the public trade feed.
type Trade struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Side            Side    `json:"side"`
	Asset           string  `json:"asset"`
	ConditionID     string  `json:"conditionId"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"`
	Title           string  `json:"title"`
	Slug            string  `json:"slug"`
	EventSlug       string  `json:"eventSlug"`
	Outcome         string  `json:"outcome"`
	TransactionHash string  `json:"transactionHash"`
}

// Notional returns size × price.
func (t *Trade) Notional() float64 {
	return decimal.NewFromFloat(t.Size).Mul(decimal.NewFromFloat(t.Price)).InexactFloat64()
}

// DedupeKey identifies the real-world trade event. The transaction hash wins when
// present; otherwise the key is built from the trade's fields with size and price
// rounded to a fixed precision so float noise cannot split one trade into two rows.
func (t *Trade) DedupeKey() string {
	if t.TransactionHash != "" {
		return "tx:" + t.TransactionHash
	}
	return strings.Join([]string{
		"f",
		t.ProxyWallet,
		t.ConditionID,
		string(t.Side),
		decimal.NewFromFloat(t.Size).StringFixed(dedupePrecision),
		decimal.NewFromFloat(t.Price).StringFixed(dedupePrecision),
		strconv.FormatInt(t.Timestamp, 10),
	}, "|")
}
