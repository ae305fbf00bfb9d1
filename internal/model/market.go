package model

// MarketStatus is the liveness snapshot of a single market as reported upstream.
type MarketStatus struct {
	MarketID string
	Closed   bool
	// ClosedTime and EndDate are unix seconds, zero when the upstream omitted them
	// or sent something unparseable.
	ClosedTime int64
	EndDate    int64
}

// CloseTime returns the moment the market stops being actionable, preferring the
// actual close time over the scheduled end. ok is false when neither is known.
func (m *MarketStatus) CloseTime() (ts int64, ok bool) {
	if m.ClosedTime > 0 {
		return m.ClosedTime, true
	}
	if m.EndDate > 0 {
		return m.EndDate, true
	}
	return 0, false
}
