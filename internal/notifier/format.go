package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"WhaleSentinel/internal/model"

	"github.com/dustin/go-humanize"
)

const walletURLFormat = "https://polymarket.com/@%s?tab=positions&via=history"

// WalletURL links to the wallet's public position history.
func WalletURL(wallet string) string {
	return fmt.Sprintf(walletURLFormat, wallet)
}

// Money renders a USD amount with thousands separators.
func Money(v float64) string {
	return "$" + humanize.CommafWithDigits(v, 2)
}

// Percent renders a 0..1 share as a whole percentage.
func Percent(share float64) string {
	return fmt.Sprintf("%.0f%%", share*100)
}

func flagList(a *model.Alert) string {
	if len(a.Flags) == 0 {
		return "-"
	}
	return strings.Join(a.FlagNames(), ", ")
}

func closesIn(a *model.Alert) string {
	if a.MinutesUntilClose == nil {
		return "unknown"
	}
	d := time.Duration(*a.MinutesUntilClose * float64(time.Minute))
	return humanize.RelTime(time.Time{}, time.Time{}.Add(d), "from now", "ago")
}

// FormatAlert renders an alert as a Telegram HTML message.
func FormatAlert(a *model.Alert) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🚨 <b>Whale alert</b> | score %d\n", a.Score))
	b.WriteString(fmt.Sprintf("Flags: %s\n\n", flagList(a)))
	b.WriteString(fmt.Sprintf("Wallet: <a href=\"%s\">%s</a>\n", html.EscapeString(WalletURL(a.Wallet)), html.EscapeString(a.Wallet)))
	b.WriteString(fmt.Sprintf("Wallet age: %.2f days\n", a.WalletAgeDays))
	b.WriteString(fmt.Sprintf("Total trades: %d (%d in 24h)\n", a.TotalTrades, a.Trades24h))
	b.WriteString(fmt.Sprintf("Notional 24h: %s\n", Money(a.Notional24h)))
	b.WriteString(fmt.Sprintf("Notional 30d: %s\n", Money(a.Notional30d)))
	b.WriteString(fmt.Sprintf("Top market share 30d: %s\n", Percent(a.TopMarketShare30d)))
	b.WriteString(fmt.Sprintf("Unique markets/events 30d: %d/%d\n", a.UniqueMarkets30d, a.UniqueEvents30d))
	b.WriteString(fmt.Sprintf("Market: <code>%s</code>\n", html.EscapeString(a.MarketID)))
	b.WriteString(fmt.Sprintf("Closes: %s\n", closesIn(a)))
	return b.String()
}

// FormatStatus renders the runtime snapshot as plain text.
func FormatStatus(s model.StatusReport) string {
	var b strings.Builder
	b.WriteString("alive ✅\n")
	b.WriteString(fmt.Sprintf("up since: %s\n", humanize.Time(s.StartedAt)))
	if s.LastTickAt.IsZero() {
		b.WriteString("last tick: never\n")
	} else {
		b.WriteString(fmt.Sprintf("last tick: %s (%d new trades, %d alerts)\n",
			humanize.Time(s.LastTickAt), s.LastInserted, s.LastAlerts))
	}
	if s.LastTickErr != "" {
		b.WriteString(fmt.Sprintf("last error: %s\n", s.LastTickErr))
	}
	if s.Watermark > 0 {
		b.WriteString(fmt.Sprintf("watermark: %s\n", time.Unix(s.Watermark, 0).UTC().Format(time.RFC3339)))
	} else {
		b.WriteString("watermark: none\n")
	}
	b.WriteString(fmt.Sprintf("stored trades: %s\n", humanize.Comma(s.StoredTrades)))
	b.WriteString(fmt.Sprintf("alerts sent: %d\n", s.AlertsSent))
	return b.String()
}
