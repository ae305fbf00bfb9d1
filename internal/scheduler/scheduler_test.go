package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"WhaleSentinel/internal/collector"
	"WhaleSentinel/internal/model"
	"WhaleSentinel/internal/recorder"
	"WhaleSentinel/internal/strategy"
)

const now int64 = 1_700_000_000

type fakeStatus struct {
	mu       sync.Mutex
	statuses map[string]*model.MarketStatus
}

func (f *fakeStatus) Get(_ context.Context, id string) (*model.MarketStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[id]
	return s, ok
}

func (f *fakeStatus) set(id string, s *model.MarketStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = s
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*model.Alert
	err  error
}

func (r *recordingNotifier) SendAlert(_ context.Context, a *model.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, a)
	return r.err
}

func (r *recordingNotifier) Close() error { return nil }

func (r *recordingNotifier) wallets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, a := range r.sent {
		out[i] = a.Wallet
	}
	return out
}

var txSeq int

func trade(wallet, market, event string, ts int64, notional float64) model.Trade {
	txSeq++
	return model.Trade{
		ProxyWallet:     wallet,
		Side:            model.SideBuy,
		ConditionID:     market,
		EventSlug:       event,
		Size:            notional * 2,
		Price:           0.5,
		Timestamp:       ts,
		TransactionHash: fmt.Sprintf("0xtx%d", txSeq),
	}
}

// whaleTrades makes a 2 day old wallet with 60k in the last day, all in one market.
func whaleTrades(wallet, market string, notional float64) []model.Trade {
	return []model.Trade{
		trade(wallet, market, "e-"+market, now-2*86400, notional),
		trade(wallet, market, "e-"+market, now-3600, notional),
		trade(wallet, market, "e-"+market, now-60, notional),
	}
}

func openMarket(id string) *model.MarketStatus {
	return &model.MarketStatus{MarketID: id, EndDate: now + 86400}
}

type harness struct {
	sched    *Scheduler
	feed     *collector.MockFetcher
	store    *recorder.SQLiteStore
	status   *fakeStatus
	notifier *recordingNotifier
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	store, err := recorder.NewSQLiteStore(nil, filepath.Join(t.TempDir(), "scanner.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := Config{
		Interval: time.Minute,
		Poll: collector.PollOptions{
			PageSize:  50,
			Overlap:   6 * time.Hour,
			MaxPages:  100,
			MaxTrades: 10000,
		},
		BackfillDays:      7,
		BackfillMaxTrades: 100000,
		Scoring:           strategy.Params{CashThreshold: 10000, MinOpenMinutes: 10},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	feed := collector.NewMockFetcher(nil)
	status := &fakeStatus{statuses: map[string]*model.MarketStatus{}}
	n := &recordingNotifier{}
	scorer := strategy.NewScorer(nil, store, status)
	s := NewScheduler(nil, collector.NewPoller(nil, feed), store, scorer, n, cfg)
	s.now = func() time.Time { return time.Unix(now, 0) }

	return &harness{sched: s, feed: feed, store: store, status: status, notifier: n}
}

func TestTick_AlertsOnceAndDedupes(t *testing.T) {
	h := newHarness(t, nil)
	h.feed.SetTrades(whaleTrades("0xw1", "0xm1", 30000))
	h.status.set("0xm1", openMarket("0xm1"))
	ctx := context.Background()

	first, err := h.sched.Tick(ctx)
	if err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if first.Inserted != 3 || len(first.Alerts) != 1 || first.Delivered != 1 {
		t.Fatalf("unexpected first tick: %+v", first)
	}
	if a := first.Alerts[0]; a.Score != 9 || a.Wallet != "0xw1" {
		t.Errorf("unexpected alert: %+v", a)
	}
	if first.Watermark != now-60 {
		t.Errorf("watermark = %d, want %d", first.Watermark, now-60)
	}

	second, err := h.sched.Tick(ctx)
	if err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if second.Inserted != 0 || second.Scored != 0 || len(second.Alerts) != 0 {
		t.Errorf("expected idle second tick, got %+v", second)
	}
	if got := h.notifier.wallets(); len(got) != 1 {
		t.Errorf("expected one delivered alert in total, got %v", got)
	}
}

func TestTick_ClosedMarketNoAlert(t *testing.T) {
	h := newHarness(t, nil)
	h.feed.SetTrades(whaleTrades("0xw1", "0xm1", 30000))
	h.status.set("0xm1", &model.MarketStatus{MarketID: "0xm1", Closed: true})

	sum, err := h.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sum.Inserted != 3 || sum.Scored != 1 || len(sum.Alerts) != 0 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestTick_AlertOrdering(t *testing.T) {
	h := newHarness(t, nil)
	var trades []model.Trade
	trades = append(trades, whaleTrades("0xw1", "0xm1", 30000)...)
	trades = append(trades, whaleTrades("0xw2", "0xm2", 50000)...)
	// 0xw3 spreads over three events: NEW_WHALE only, score 6.
	trades = append(trades,
		trade("0xw3", "0xm1", "e1", now-300, 10000),
		trade("0xw3", "0xm2", "e2", now-200, 10000),
		trade("0xw3", "0xm3", "e3", now-100, 10000),
	)
	h.feed.SetTrades(trades)
	for _, id := range []string{"0xm1", "0xm2", "0xm3"} {
		h.status.set(id, openMarket(id))
	}

	sum, err := h.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	want := []string{"0xw2", "0xw1", "0xw3"}
	got := h.notifier.wallets()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("delivery order = %v, want %v", got, want)
	}
	if sum.Alerts[2].Score != 6 {
		t.Errorf("expected last alert at threshold, got %d", sum.Alerts[2].Score)
	}
}

func TestTick_DeliveryFailureDoesNotFailTick(t *testing.T) {
	h := newHarness(t, nil)
	h.notifier.err = errors.New("discord down")
	h.feed.SetTrades(whaleTrades("0xw1", "0xm1", 30000))
	h.status.set("0xm1", openMarket("0xm1"))

	sum, err := h.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick should succeed despite delivery failure: %v", err)
	}
	if len(sum.Alerts) != 1 || sum.Delivered != 0 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if wm, _ := h.store.Watermark(context.Background()); wm != now-60 {
		t.Errorf("watermark should still advance, got %d", wm)
	}
}

func TestTick_WatermarkNeverRegresses(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.feed.SetTrades([]model.Trade{trade("0xw1", "0xm1", "e1", now-60, 20000)})
	if _, err := h.sched.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	// A late-arriving older trade inside the overlap window.
	h.feed.SetTrades([]model.Trade{trade("0xw2", "0xm1", "e1", now-3600, 20000)})
	sum, err := h.sched.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sum.Inserted != 1 {
		t.Errorf("expected late trade inserted, got %d", sum.Inserted)
	}
	if sum.Watermark != now-60 {
		t.Errorf("watermark regressed to %d", sum.Watermark)
	}
}

func TestTick_PollErrorAbortsAndIsReported(t *testing.T) {
	h := newHarness(t, nil)
	h.feed.Err = errors.New("HTTP 502")

	if _, err := h.sched.Tick(context.Background()); err == nil {
		t.Fatal("expected tick error")
	}
	if n, _ := h.store.TradeCount(context.Background()); n != 0 {
		t.Errorf("expected nothing stored, got %d", n)
	}
	st := h.sched.Status(context.Background())
	if !strings.Contains(st.LastTickErr, "HTTP 502") {
		t.Errorf("expected last error recorded, got %q", st.LastTickErr)
	}
}

func TestTick_OverlappingTickSkipped(t *testing.T) {
	h := newHarness(t, nil)
	h.sched.running.Lock()
	sum, err := h.sched.Tick(context.Background())
	h.sched.running.Unlock()

	if err != nil || !sum.Skipped {
		t.Errorf("expected skipped tick, got %+v / %v", sum, err)
	}
	if h.feed.Calls() != 0 {
		t.Errorf("skipped tick must not poll")
	}
}

func TestTick_WalletSelection(t *testing.T) {
	tests := []struct {
		name           string
		onlyNewWallets bool
		want           []string
	}{
		{"whole batch", false, []string{"0xw1"}},
		{"only wallets with new rows", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.OnlyNewWallets = tt.onlyNewWallets })
			ctx := context.Background()

			// Tick 1 stores the whale while its market status is unknown.
			whale := whaleTrades("0xw1", "0xm1", 30000)
			h.feed.SetTrades(whale)
			if _, err := h.sched.Tick(ctx); err != nil {
				t.Fatalf("tick 1: %v", err)
			}

			// Tick 2 re-serves the whale's recent trades plus a small new trade.
			h.status.set("0xm1", openMarket("0xm1"))
			h.feed.SetTrades(append(whale[1:], trade("0xw9", "0xm9", "e9", now-10, 10000)))
			if _, err := h.sched.Tick(ctx); err != nil {
				t.Fatalf("tick 2: %v", err)
			}

			got := h.notifier.wallets()
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("alerted %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBackfill(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.feed.SetTrades([]model.Trade{
		trade("0xw1", "0xm1", "e1", now-86400, 20000),
		trade("0xw2", "0xm1", "e1", now-3*86400, 20000),
		trade("0xw3", "0xm1", "e1", now-10*86400, 20000),
	})
	h.status.set("0xm1", openMarket("0xm1"))

	if err := h.sched.Backfill(ctx); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if n, _ := h.store.TradeCount(ctx); n != 2 {
		t.Errorf("expected 2 trades within 7 days, got %d", n)
	}
	if wm, _ := h.store.Watermark(ctx); wm != now-86400 {
		t.Errorf("watermark = %d, want %d", wm, now-86400)
	}
	if len(h.notifier.wallets()) != 0 {
		t.Error("backfill must not alert")
	}
	if q := h.feed.Queries[0]; q.FilterAmount != 10000 || !q.TakerOnly {
		t.Errorf("unexpected backfill query %+v", q)
	}

	calls := h.feed.Calls()
	if err := h.sched.Backfill(ctx); err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	if h.feed.Calls() != calls {
		t.Error("backfill should be skipped once a watermark exists")
	}
}

func TestBackfill_Disabled(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.BackfillDays = 0 })
	h.feed.SetTrades([]model.Trade{trade("0xw1", "0xm1", "e1", now-60, 20000)})

	if err := h.sched.Backfill(context.Background()); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if h.feed.Calls() != 0 {
		t.Error("disabled backfill must not poll")
	}
}

func TestHandleCommand(t *testing.T) {
	h := newHarness(t, nil)
	h.feed.SetTrades([]model.Trade{trade("0xw1", "0xm1", "e1", now-60, 20000)})
	if _, err := h.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	tests := []struct {
		cmd  string
		want string
	}{
		{"!alive", "alive ✅"},
		{"/alive", "alive ✅"},
		{"/alive@SentinelBot", "alive ✅"},
		{" !ALIVE ", "alive ✅"},
		{"!status", "stored trades: 1"},
		{"/help", "!status"},
		{"hello there", ""},
	}
	for _, tt := range tests {
		got := h.sched.HandleCommand(tt.cmd)
		if tt.want == "" {
			if got != "" {
				t.Errorf("HandleCommand(%q) = %q, want no reply", tt.cmd, got)
			}
			continue
		}
		if !strings.Contains(got, tt.want) {
			t.Errorf("HandleCommand(%q) = %q, want it to contain %q", tt.cmd, got, tt.want)
		}
	}
}

func TestStartRejectsZeroInterval(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Interval = 0 })
	if err := h.sched.Start(context.Background()); err == nil {
		t.Error("expected error for zero interval")
	}
}
