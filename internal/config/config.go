package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Clamp bounds for operator-supplied values.
const (
	MinPageSize = 50
	MaxPageSize = 2000
	MinMaxPages = 10
	MaxMaxPages = 1000
	MinOverlap  = 5 * time.Minute
	MaxOverlap  = 7 * 24 * time.Hour
)

// Config holds all application configuration.
type Config struct {
	Database struct {
		SQLitePath string `yaml:"sqlite_path" env:"DB_PATH"`
	} `yaml:"database"`
	Poll struct {
		Interval          time.Duration `yaml:"interval" env:"POLL_INTERVAL"`
		PageSize          int           `yaml:"page_size" env:"PAGE_SIZE"`
		MaxPages          int           `yaml:"max_pages" env:"MAX_PAGES"`
		MaxTrades         int           `yaml:"max_trades" env:"MAX_TRADES"`
		PageDelay         time.Duration `yaml:"page_delay" env:"PAGE_DELAY"`
		Overlap           time.Duration `yaml:"overlap" env:"OVERLAP"`
		RequestTimeout    time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
		BackfillDays      int           `yaml:"backfill_days" env:"BACKFILL_DAYS"`
		BackfillMaxTrades int           `yaml:"backfill_max_trades" env:"BACKFILL_MAX_TRADES"`
	} `yaml:"poll"`
	Scoring struct {
		CashThreshold    float64 `yaml:"cash_threshold" env:"CASH_THRESHOLD"`
		MinOpenMinutes   float64 `yaml:"min_open_minutes" env:"MIN_OPEN_MINUTES"`
		RequireCloseTime bool    `yaml:"require_close_time" env:"REQUIRE_CLOSE_TIME"`
		OnlyNewWallets   bool    `yaml:"only_new_wallets" env:"SCORE_ONLY_NEW_WALLETS"`
	} `yaml:"scoring"`
	Market struct {
		CacheTTL time.Duration `yaml:"cache_ttl" env:"MARKET_CACHE_TTL"`
	} `yaml:"market"`
	API struct {
		DataURL  string `yaml:"data_url" env:"DATA_API_URL"`
		GammaURL string `yaml:"gamma_url" env:"GAMMA_API_URL"`
	} `yaml:"api"`
	Discord struct {
		Token       string `yaml:"token" env:"DISCORD_TOKEN"`
		AlertUserID string `yaml:"alert_user_id" env:"DISCORD_ALERT_USER_ID"`
	} `yaml:"discord"`
	Telegram struct {
		BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
		ChatID   string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
	} `yaml:"telegram"`
	AMQP struct {
		URL      string `yaml:"url" env:"AMQP_URL"`
		Exchange string `yaml:"exchange" env:"AMQP_EXCHANGE"`
	} `yaml:"amqp"`
	Logging struct {
		Level       string `yaml:"level" env:"LOG_LEVEL"`
		Development bool   `yaml:"development" env:"LOG_DEVELOPMENT"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy" env:"HTTPS_PROXY"`
}

// Default returns a config populated with built-in defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.Database.SQLitePath = "./data/scanner.sqlite"
	cfg.Poll.Interval = 30 * time.Second
	cfg.Poll.PageSize = 500
	cfg.Poll.MaxPages = 200
	cfg.Poll.MaxTrades = 200_000
	cfg.Poll.PageDelay = 50 * time.Millisecond
	cfg.Poll.Overlap = 6 * time.Hour
	cfg.Poll.RequestTimeout = 30 * time.Second
	cfg.Poll.BackfillDays = 7
	cfg.Poll.BackfillMaxTrades = 2_000_000
	cfg.Scoring.CashThreshold = 10000
	cfg.Scoring.MinOpenMinutes = 10
	cfg.Market.CacheTTL = 30 * time.Minute
	cfg.API.DataURL = "https://data-api.polymarket.com"
	cfg.API.GammaURL = "https://gamma-api.polymarket.com"
	cfg.AMQP.Exchange = "sentinel.alerts"
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads an optional .env file and the YAML file at path (missing files are
// fine), then applies environment overrides and normalizes out-of-range values.
// Precedence: environment, then YAML, then defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize clamps bounded values and replaces invalid ones with defaults.
func (c *Config) normalize() {
	d := Default()
	c.Poll.PageSize = clampInt(c.Poll.PageSize, MinPageSize, MaxPageSize)
	c.Poll.MaxPages = clampInt(c.Poll.MaxPages, MinMaxPages, MaxMaxPages)
	c.Poll.Overlap = clampDuration(c.Poll.Overlap, MinOverlap, MaxOverlap)

	if c.Poll.Interval <= 0 {
		c.Poll.Interval = d.Poll.Interval
	}
	if c.Poll.MaxTrades <= 0 {
		c.Poll.MaxTrades = d.Poll.MaxTrades
	}
	if c.Poll.PageDelay < 0 {
		c.Poll.PageDelay = 0
	}
	if c.Poll.RequestTimeout <= 0 {
		c.Poll.RequestTimeout = d.Poll.RequestTimeout
	}
	if c.Poll.BackfillDays < 0 {
		c.Poll.BackfillDays = 0
	}
	if c.Poll.BackfillMaxTrades <= 0 {
		c.Poll.BackfillMaxTrades = d.Poll.BackfillMaxTrades
	}
	if c.Scoring.CashThreshold <= 0 {
		c.Scoring.CashThreshold = d.Scoring.CashThreshold
	}
	if c.Scoring.MinOpenMinutes < 0 {
		c.Scoring.MinOpenMinutes = d.Scoring.MinOpenMinutes
	}
	if c.Market.CacheTTL <= 0 {
		c.Market.CacheTTL = d.Market.CacheTTL
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = d.AMQP.Exchange
	}
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	return min(max(v, lo), hi)
}

// DiscordEnabled reports whether the Discord sink is fully configured.
func (c *Config) DiscordEnabled() bool {
	return c.Discord.Token != "" && c.Discord.AlertUserID != ""
}

// TelegramEnabled reports whether the Telegram sink is fully configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// AMQPEnabled reports whether the AMQP sink is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQP.URL != ""
}

// Validate checks that required fields are set and every alert sink is either
// fully configured or absent.
func (c *Config) Validate() error {
	if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required")
	}
	if c.API.DataURL == "" {
		return fmt.Errorf("api.data_url is required")
	}
	if c.API.GammaURL == "" {
		return fmt.Errorf("api.gamma_url is required")
	}
	if (c.Discord.Token == "") != (c.Discord.AlertUserID == "") {
		return fmt.Errorf("discord.token and discord.alert_user_id must be set together")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if !c.DiscordEnabled() && !c.TelegramEnabled() && !c.AMQPEnabled() {
		return fmt.Errorf("no alert sink configured: set discord, telegram or amqp")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// NewLogger builds the process logger from the logging section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Logging.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// LogFields describes the effective config with secrets masked.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("db", c.Database.SQLitePath),
		zap.Duration("interval", c.Poll.Interval),
		zap.Int("pageSize", c.Poll.PageSize),
		zap.Int("maxPages", c.Poll.MaxPages),
		zap.Duration("overlap", c.Poll.Overlap),
		zap.Int("backfillDays", c.Poll.BackfillDays),
		zap.Float64("cashThreshold", c.Scoring.CashThreshold),
		zap.Float64("minOpenMinutes", c.Scoring.MinOpenMinutes),
		zap.String("discordToken", Mask(c.Discord.Token)),
		zap.String("telegramToken", Mask(c.Telegram.BotToken)),
		zap.String("amqpURL", Mask(c.AMQP.URL)),
		zap.String("proxy", Mask(c.Proxy)),
	}
}

// Mask hides all but the first four characters of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
