package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"WhaleSentinel/internal/calculator"
	"WhaleSentinel/internal/collector"
	"WhaleSentinel/internal/model"
	"WhaleSentinel/internal/notifier"
	"WhaleSentinel/internal/recorder"
	"WhaleSentinel/internal/strategy"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// WalletScorer produces at most one alert per wallet.
type WalletScorer interface {
	Score(ctx context.Context, wallet string, now int64, p strategy.Params) (*model.Alert, error)
}

// Config holds the operational parameters of the tick loop.
type Config struct {
	Interval time.Duration
	// Poll is the template for every regular tick; Watermark and StopBefore are
	// filled in per run.
	Poll              collector.PollOptions
	BackfillDays      int
	BackfillMaxTrades int
	Scoring           strategy.Params
	// OnlyNewWallets scores only wallets with newly inserted trades instead of
	// every wallet in the batch.
	OnlyNewWallets bool
}

// TickSummary describes one completed tick.
type TickSummary struct {
	Skipped   bool
	Fetched   int
	Inserted  int
	Scored    int
	Watermark int64
	Alerts    []*model.Alert
	Delivered int
}

// Scheduler runs the poll → store → score → notify loop.
type Scheduler struct {
	Cron     *cron.Cron
	Poller   *collector.Poller
	Store    recorder.Store
	Scorer   WalletScorer
	Notifier notifier.Notifier

	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	// running guards against overlapping ticks.
	running sync.Mutex

	mu     sync.Mutex
	status model.StatusReport
}

// NewScheduler creates a new Scheduler.
func NewScheduler(logger *zap.Logger, poller *collector.Poller, store recorder.Store, scorer WalletScorer, n notifier.Notifier, cfg Config) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Poller:   poller,
		Store:    store,
		Scorer:   scorer,
		Notifier: n,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		status:   model.StatusReport{StartedAt: time.Now()},
	}
}

// Start registers the tick job and starts the cron loop. Ticks run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", s.cfg.Interval)
	}
	schedule := "@every " + s.cfg.Interval.String()
	if _, err := s.Cron.AddFunc(schedule, func() {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("tick failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("register tick: %w", err)
	}
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Duration("interval", s.cfg.Interval))
	return nil
}

// Stop stops the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Backfill seeds an empty store with the last BackfillDays of trades. It does
// nothing once a watermark exists. Backfilled trades are not scored.
func (s *Scheduler) Backfill(ctx context.Context) error {
	if s.cfg.BackfillDays <= 0 {
		return nil
	}
	s.running.Lock()
	defer s.running.Unlock()

	watermark, err := s.Store.Watermark(ctx)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}
	if watermark > 0 {
		s.logger.Info("skipping backfill, watermark already set", zap.Int64("watermark", watermark))
		return nil
	}

	stopBefore := s.now().Unix() - int64(s.cfg.BackfillDays)*calculator.SecondsPerDay
	opts := s.cfg.Poll
	opts.Watermark = 0
	opts.Overlap = 0
	opts.StopBefore = &stopBefore
	opts.CashThreshold = s.cfg.Scoring.CashThreshold
	if s.cfg.BackfillMaxTrades > 0 {
		opts.MaxTrades = s.cfg.BackfillMaxTrades
	}

	s.logger.Info("backfill started",
		zap.Int("days", s.cfg.BackfillDays),
		zap.Int64("stopBefore", stopBefore),
	)
	trades, err := s.Poller.Poll(ctx, opts)
	if err != nil {
		return fmt.Errorf("backfill poll: %w", err)
	}
	res, err := s.Store.Upsert(ctx, trades)
	if err != nil {
		return fmt.Errorf("backfill upsert: %w", err)
	}
	if res.MaxTimestamp > 0 {
		if err := s.Store.SetWatermark(ctx, res.MaxTimestamp); err != nil {
			return fmt.Errorf("backfill watermark: %w", err)
		}
	}
	s.logger.Info("backfill finished",
		zap.Int("fetched", len(trades)),
		zap.Int("inserted", res.Inserted),
		zap.Int64("watermark", res.MaxTimestamp),
	)
	return nil
}

// Tick runs one poll → store → score → notify pass. A tick requested while
// another is in flight returns immediately with Skipped set.
func (s *Scheduler) Tick(ctx context.Context) (*TickSummary, error) {
	if !s.running.TryLock() {
		s.logger.Warn("previous tick still running, skipping")
		return &TickSummary{Skipped: true}, nil
	}
	defer s.running.Unlock()

	summary, err := s.tick(ctx)
	s.recordTick(summary, err)
	return summary, err
}

func (s *Scheduler) tick(ctx context.Context) (*TickSummary, error) {
	watermark, err := s.Store.Watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}

	opts := s.cfg.Poll
	opts.Watermark = watermark
	opts.StopBefore = nil
	opts.CashThreshold = s.cfg.Scoring.CashThreshold
	trades, err := s.Poller.Poll(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}

	res, err := s.Store.Upsert(ctx, trades)
	if err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}
	if res.MaxTimestamp > watermark {
		if err := s.Store.SetWatermark(ctx, res.MaxTimestamp); err != nil {
			return nil, fmt.Errorf("set watermark: %w", err)
		}
		watermark = res.MaxTimestamp
	}

	summary := &TickSummary{
		Fetched:   len(trades),
		Inserted:  res.Inserted,
		Watermark: watermark,
	}
	if res.Inserted == 0 {
		s.logSummary(summary)
		return summary, nil
	}

	wallets := res.WalletsTouched
	if s.cfg.OnlyNewWallets {
		wallets = res.WalletsInserted
	}
	now := s.now().Unix()
	for _, wallet := range wallets {
		alert, err := s.Scorer.Score(ctx, wallet, now, s.cfg.Scoring)
		if err != nil {
			s.logger.Warn("scoring failed", zap.String("wallet", wallet), zap.Error(err))
			continue
		}
		summary.Scored++
		if alert != nil {
			summary.Alerts = append(summary.Alerts, alert)
		}
	}

	sort.SliceStable(summary.Alerts, func(i, j int) bool {
		a, b := summary.Alerts[i], summary.Alerts[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Notional24h > b.Notional24h
	})

	for _, alert := range summary.Alerts {
		s.logAlert(alert)
		if err := s.Notifier.SendAlert(ctx, alert); err != nil {
			s.logger.Error("alert delivery failed", zap.String("wallet", alert.Wallet), zap.Error(err))
			continue
		}
		summary.Delivered++
	}

	s.logSummary(summary)
	return summary, nil
}

func (s *Scheduler) logSummary(t *TickSummary) {
	s.logger.Info("tick",
		zap.Int("fetched", t.Fetched),
		zap.Int("inserted", t.Inserted),
		zap.Int("scored", t.Scored),
		zap.Int64("watermark", t.Watermark),
		zap.Int("alerts", len(t.Alerts)),
	)
}

func (s *Scheduler) logAlert(a *model.Alert) {
	s.logger.Info("ALERT",
		zap.Int("score", a.Score),
		zap.Strings("flags", a.FlagNames()),
		zap.String("wallet", a.Wallet),
		zap.Float64("ageDays", a.WalletAgeDays),
		zap.Float64("notional24h", a.Notional24h),
		zap.Int("totalTrades", a.TotalTrades),
		zap.Float64("topShare30d", a.TopMarketShare30d),
		zap.Int("uniqueEvents30d", a.UniqueEvents30d),
		zap.String("market", a.MarketID),
	)
}

func (s *Scheduler) recordTick(t *TickSummary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastTickAt = s.now()
	if err != nil {
		s.status.LastTickErr = err.Error()
		return
	}
	s.status.LastTickErr = ""
	s.status.LastInserted = t.Inserted
	s.status.LastAlerts = len(t.Alerts)
	s.status.AlertsSent += t.Delivered
}

// Status returns the runtime snapshot, reading watermark and trade count from
// the store. Store errors leave those fields zero.
func (s *Scheduler) Status(ctx context.Context) model.StatusReport {
	s.mu.Lock()
	report := s.status
	s.mu.Unlock()

	if wm, err := s.Store.Watermark(ctx); err == nil {
		report.Watermark = wm
	} else {
		s.logger.Warn("status: read watermark", zap.Error(err))
	}
	if n, err := s.Store.TradeCount(ctx); err == nil {
		report.StoredTrades = n
	} else {
		s.logger.Warn("status: count trades", zap.Error(err))
	}
	return report
}
