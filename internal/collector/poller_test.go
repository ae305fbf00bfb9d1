package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"WhaleSentinel/internal/model"
)

// feed builds n trades with timestamps start, start-step, ... each worth 10k notional.
func feed(n int, start, step int64) []model.Trade {
	trades := make([]model.Trade, n)
	for i := 0; i < n; i++ {
		trades[i] = model.Trade{
			ProxyWallet:     fmt.Sprintf("0xw%d", i%3),
			ConditionID:     "0xmarket",
			Side:            model.SideBuy,
			Size:            20000,
			Price:           0.5,
			Timestamp:       start - int64(i)*step,
			TransactionHash: fmt.Sprintf("0xtx%d", i),
		}
	}
	return trades
}

func TestPoll_EmptyFeed(t *testing.T) {
	m := NewMockFetcher(nil)
	p := NewPoller(nil, m)

	got, err := p.Poll(context.Background(), PollOptions{PageSize: 50, CashThreshold: 10000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no trades, got %d", len(got))
	}
	if m.Calls() != 1 {
		t.Errorf("expected exactly 1 page request, got %d", m.Calls())
	}
}

func TestPoll_SinglePartialPageTerminates(t *testing.T) {
	m := NewMockFetcher(feed(10, 1000, 1))
	p := NewPoller(nil, m)

	got, err := p.Poll(context.Background(), PollOptions{PageSize: 50, CashThreshold: 10000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("expected 10 trades, got %d", len(got))
	}
	if m.Calls() != 1 {
		t.Errorf("expected exactly 1 page request, got %d", m.Calls())
	}
}

func TestPoll_QueryShape(t *testing.T) {
	m := NewMockFetcher(feed(120, 10000, 1))
	p := NewPoller(nil, m)

	if _, err := p.Poll(context.Background(), PollOptions{PageSize: 50, CashThreshold: 10000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Queries) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(m.Queries))
	}
	for i, q := range m.Queries {
		if q.Offset != i*50 || q.Limit != 50 {
			t.Errorf("page %d: unexpected offset/limit %d/%d", i, q.Offset, q.Limit)
		}
		if !q.TakerOnly || q.FilterType != FilterCash || q.FilterAmount != 10000 {
			t.Errorf("page %d: unexpected filter %+v", i, q)
		}
	}
}

func TestPoll_StopsAtOverlapBoundary(t *testing.T) {
	// 200 trades from ts=10000 down to ts=9801.
	m := NewMockFetcher(feed(200, 10000, 1))
	p := NewPoller(nil, m)

	// Lower bound = 9960 - 10 = 9950 falls inside the first page of 100.
	got, err := p.Poll(context.Background(), PollOptions{
		PageSize:      100,
		CashThreshold: 10000,
		Watermark:     9960,
		Overlap:       10 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Calls() != 1 {
		t.Errorf("expected to stop after first page, got %d calls", m.Calls())
	}
	// Timestamps 10000..9950 inclusive qualify.
	if len(got) != 51 {
		t.Errorf("expected 51 qualifying trades, got %d", len(got))
	}
	for _, tr := range got {
		if tr.Timestamp < 9950 {
			t.Errorf("trade below lower bound: %d", tr.Timestamp)
		}
	}
}

func TestPoll_OverlapCompleteness(t *testing.T) {
	// Every trade within [W-O, now] must come back even when it spans pages.
	m := NewMockFetcher(feed(500, 100000, 10))
	p := NewPoller(nil, m)

	watermark := int64(99000)
	overlap := 500 * time.Second
	got, err := p.Poll(context.Background(), PollOptions{
		PageSize:      40,
		CashThreshold: 10000,
		Watermark:     watermark,
		Overlap:       overlap,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 0
	for _, tr := range feed(500, 100000, 10) {
		if tr.Timestamp >= watermark-500 {
			want++
		}
	}
	if len(got) != want {
		t.Errorf("expected %d trades, got %d", want, len(got))
	}
}

func TestPoll_BackfillStopBoundary(t *testing.T) {
	m := NewMockFetcher(feed(300, 5000, 1))
	p := NewPoller(nil, m)

	stop := int64(4900)
	got, err := p.Poll(context.Background(), PollOptions{
		PageSize:      50,
		CashThreshold: 10000,
		Watermark:     4990,
		Overlap:       time.Hour,
		StopBefore:    &stop,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 101 {
		t.Errorf("expected 101 trades (5000..4900), got %d", len(got))
	}
}

func TestPoll_ColdStartBoundedByPageCap(t *testing.T) {
	m := NewMockFetcher(feed(1000, 50000, 1))
	p := NewPoller(nil, m)

	got, err := p.Poll(context.Background(), PollOptions{PageSize: 50, CashThreshold: 10000, MaxPages: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Calls() != 3 {
		t.Errorf("expected 3 pages, got %d", m.Calls())
	}
	if len(got) != 150 {
		t.Errorf("expected 150 trades, got %d", len(got))
	}
}

func TestPoll_TradeCap(t *testing.T) {
	m := NewMockFetcher(feed(1000, 50000, 1))
	p := NewPoller(nil, m)

	got, err := p.Poll(context.Background(), PollOptions{PageSize: 50, CashThreshold: 10000, MaxTrades: 120})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Calls() != 3 {
		t.Errorf("expected 3 pages before reaching the trade cap, got %d", m.Calls())
	}
	if len(got) != 150 {
		t.Errorf("expected 150 trades, got %d", len(got))
	}
}

func TestPoll_DropsMalformedWithoutShorteningPage(t *testing.T) {
	trades := feed(100, 10000, 1)
	trades[10].ProxyWallet = ""
	m := NewMockFetcher(trades)
	p := NewPoller(nil, m)

	got, err := p.Poll(context.Background(), PollOptions{PageSize: 50, CashThreshold: 10000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 99 {
		t.Errorf("expected 99 trades, got %d", len(got))
	}
	if m.Calls() != 3 {
		t.Errorf("expected 3 page requests, got %d", m.Calls())
	}
}

func TestPoll_FetchErrorPropagates(t *testing.T) {
	m := NewMockFetcher(feed(10, 100, 1))
	m.Err = errors.New("boom")
	p := NewPoller(nil, m)

	if _, err := p.Poll(context.Background(), PollOptions{PageSize: 50, CashThreshold: 10000}); err == nil {
		t.Error("expected error to propagate")
	}
}

func TestPoll_CancelledDuringDelay(t *testing.T) {
	m := NewMockFetcher(feed(200, 10000, 1))
	p := NewPoller(nil, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Poll(ctx, PollOptions{PageSize: 50, CashThreshold: 10000, PageDelay: time.Minute})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
