package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"WhaleSentinel/internal/collector"
	"WhaleSentinel/internal/config"
	"WhaleSentinel/internal/market"
	"WhaleSentinel/internal/notifier"
	"WhaleSentinel/internal/recorder"
	"WhaleSentinel/internal/scheduler"
	"WhaleSentinel/internal/strategy"

	"go.uber.org/zap"
)

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		// The logger is configured from the file, so fall back to a default one.
		zap.Must(zap.NewProduction()).Fatal("load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		zap.Must(zap.NewProduction()).Fatal("config validation", zap.Error(err))
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("build logger", zap.Error(err))
	}
	defer logger.Sync()

	logger.Info("WhaleSentinel starting", cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := recorder.NewSQLiteStore(logger.Named("store"), cfg.Database.SQLitePath)
	if err != nil {
		logger.Fatal("open trade store", zap.Error(err))
	}
	defer store.Close()

	fetcher := collector.NewDataAPIFetcher(logger.Named("feed"), cfg.API.DataURL, cfg.Proxy, cfg.Poll.RequestTimeout)
	logger.Info("trade feed", zap.String("source", fetcher.Name()))
	poller := collector.NewPoller(logger.Named("poller"), fetcher)

	gamma := market.NewGammaFetcher(cfg.API.GammaURL, cfg.Proxy, cfg.Poll.RequestTimeout)
	statuses := market.NewCache(logger.Named("markets"), gamma, cfg.Market.CacheTTL, nil)
	scorer := strategy.NewScorer(logger.Named("scorer"), store, statuses)

	var sinks []notifier.Notifier
	var discord *notifier.DiscordNotifier
	if cfg.DiscordEnabled() {
		discord, err = notifier.NewDiscordNotifier(logger.Named("discord"), cfg.Discord.Token, cfg.Discord.AlertUserID)
		if err != nil {
			logger.Fatal("init discord", zap.Error(err))
		}
		sinks = append(sinks, discord)
	}
	var telegram *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		telegram = notifier.NewTelegramNotifier(logger.Named("telegram"), cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sinks = append(sinks, telegram)
	}
	if cfg.AMQPEnabled() {
		publisher, err := notifier.NewAMQPNotifier(logger.Named("amqp"), cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			logger.Fatal("init amqp", zap.Error(err))
		}
		sinks = append(sinks, publisher)
	}
	alerts := notifier.NewMulti(logger, sinks...)
	defer alerts.Close()
	logger.Info("alert sinks ready", zap.Int("count", alerts.Count()))

	sched := scheduler.NewScheduler(logger.Named("scheduler"), poller, store, scorer, alerts, scheduler.Config{
		Interval: cfg.Poll.Interval,
		Poll: collector.PollOptions{
			PageSize:  cfg.Poll.PageSize,
			Overlap:   cfg.Poll.Overlap,
			MaxPages:  cfg.Poll.MaxPages,
			MaxTrades: cfg.Poll.MaxTrades,
			PageDelay: cfg.Poll.PageDelay,
		},
		BackfillDays:      cfg.Poll.BackfillDays,
		BackfillMaxTrades: cfg.Poll.BackfillMaxTrades,
		Scoring: strategy.Params{
			CashThreshold:    cfg.Scoring.CashThreshold,
			MinOpenMinutes:   cfg.Scoring.MinOpenMinutes,
			RequireCloseTime: cfg.Scoring.RequireCloseTime,
		},
		OnlyNewWallets: cfg.Scoring.OnlyNewWallets,
	})

	if discord != nil {
		if err := discord.Open(sched.HandleCommand); err != nil {
			logger.Fatal("open discord gateway", zap.Error(err))
		}
	}
	if telegram != nil {
		go telegram.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	if err := sched.Backfill(ctx); err != nil {
		logger.Error("backfill failed", zap.Error(err))
	}
	if _, err := sched.Tick(ctx); err != nil {
		logger.Error("tick failed", zap.Error(err))
	}
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("start scheduler", zap.Error(err))
	}

	logger.Info("WhaleSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()

	logger.Info("shutdown signal received, stopping...")
	sched.Stop()
	logger.Info("WhaleSentinel stopped")
}
