package calculator

import (
	"strings"
	"time"
)

// isoLayouts covers the timestamp shapes the market metadata API has been seen to return.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseISOToUnix converts an ISO 8601 timestamp to unix seconds. ok is false for
// empty or unparseable input. Timestamps without a zone are taken as UTC.
func ParseISOToUnix(s string) (ts int64, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}
