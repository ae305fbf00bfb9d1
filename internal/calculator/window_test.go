package calculator

import (
	"math"
	"testing"
	"time"
)

func TestLowerBound(t *testing.T) {
	stop := int64(500)
	tests := []struct {
		name      string
		watermark int64
		overlap   time.Duration
		stop      *int64
		want      int64
	}{
		{"overlap subtracted", 10000, time.Hour, nil, 10000 - 3600},
		{"floored at zero", 100, time.Hour, nil, 0},
		{"cold start", 0, 6 * time.Hour, nil, 0},
		{"stop boundary verbatim", 10000, time.Hour, &stop, 500},
	}
	for _, tt := range tests {
		if got := LowerBound(tt.watermark, tt.overlap, tt.stop); got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestWalletAgeDays(t *testing.T) {
	if got := WalletAgeDays(5*SecondsPerDay, 0); got != 5 {
		t.Errorf("expected 5 days, got %f", got)
	}
	if got := WalletAgeDays(SecondsPerDay/2, 0); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected 0.5 days, got %f", got)
	}
}

func TestMinutesUntil(t *testing.T) {
	if got := MinutesUntil(0, 600); got != 10 {
		t.Errorf("expected 10, got %f", got)
	}
	if got := MinutesUntil(600, 0); got != -10 {
		t.Errorf("expected -10, got %f", got)
	}
}

func TestWindows(t *testing.T) {
	now := int64(100 * SecondsPerDay)
	if Since24h(now) != now-86400 {
		t.Error("unexpected 24h window")
	}
	if Since30d(now) != now-30*86400 {
		t.Error("unexpected 30d window")
	}
}

func TestParseISOToUnix(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"2024-11-05T12:00:00Z", 1730808000, true},
		{"2024-11-05T12:00:00.000Z", 1730808000, true},
		{"2024-11-05T14:00:00+02:00", 1730808000, true},
		{"2024-11-05 12:00:00+00", 1730808000, true},
		{"2024-11-05", 1730764800, true},
		{"", 0, false},
		{"not a date", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseISOToUnix(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("%q: expected (%d, %v), got (%d, %v)", tt.in, tt.want, tt.ok, got, ok)
		}
	}
}
