package model

import "time"

// StatusReport is the runtime snapshot returned by the status command.
type StatusReport struct {
	StartedAt    time.Time
	LastTickAt   time.Time
	LastTickErr  string
	Watermark    int64
	StoredTrades int64
	LastInserted int
	LastAlerts   int
	AlertsSent   int
}
