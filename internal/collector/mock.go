package collector

import (
	"context"
	"sort"
	"sync"

	"WhaleSentinel/internal/model"
)

// MockFetcher serves a fixed, newest-first feed for development and testing.
type MockFetcher struct {
	mu      sync.Mutex
	trades  []model.Trade
	Err     error
	Queries []TradeQuery
}

// NewMockFetcher returns a fetcher over trades, sorted newest first.
func NewMockFetcher(trades []model.Trade) *MockFetcher {
	m := &MockFetcher{}
	m.SetTrades(trades)
	return m
}

func (m *MockFetcher) Name() string { return "mock" }

// SetTrades replaces the feed contents.
func (m *MockFetcher) SetTrades(trades []model.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append([]model.Trade(nil), trades...)
	sort.SliceStable(m.trades, func(i, j int) bool { return m.trades[i].Timestamp > m.trades[j].Timestamp })
}

func (m *MockFetcher) FetchTrades(_ context.Context, q TradeQuery) ([]model.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, q)
	if m.Err != nil {
		return nil, m.Err
	}
	var filtered []model.Trade
	for _, t := range m.trades {
		if q.FilterType == FilterCash && t.Notional() < q.FilterAmount {
			continue
		}
		filtered = append(filtered, t)
	}
	if q.Offset >= len(filtered) {
		return []model.Trade{}, nil
	}
	end := q.Offset + q.Limit
	if q.Limit <= 0 || end > len(filtered) {
		end = len(filtered)
	}
	return append([]model.Trade(nil), filtered[q.Offset:end]...), nil
}

// Calls returns the number of page requests served.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}
