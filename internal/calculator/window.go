package calculator

import "time"

const (
	SecondsPerDay = 86400
	Window24h     = SecondsPerDay
	Window30d     = 30 * SecondsPerDay
)

// Since24h returns the inclusive lower edge of the 24 hour window ending at now.
func Since24h(now int64) int64 {
	return now - Window24h
}

// Since30d returns the inclusive lower edge of the 30 day window ending at now.
func Since30d(now int64) int64 {
	return now - Window30d
}

// WalletAgeDays is the fractional number of days between the first trade and now.
func WalletAgeDays(now, firstSeen int64) float64 {
	return float64(now-firstSeen) / SecondsPerDay
}

// MinutesUntil returns the fractional minutes from now until ts (negative if ts is past).
func MinutesUntil(now, ts int64) float64 {
	return float64(ts-now) / 60
}

// LowerBound computes where a poll stops paging. An explicit stop boundary
// (backfill) is used verbatim; otherwise the watermark is pulled back by the
// overlap window and floored at zero.
func LowerBound(watermark int64, overlap time.Duration, stopBefore *int64) int64 {
	if stopBefore != nil {
		return *stopBefore
	}
	lb := watermark - int64(overlap/time.Second)
	if lb < 0 {
		return 0
	}
	return lb
}
