package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"WhaleSentinel/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	DefaultAlertExchange = "sentinel.alerts"
	AlertRoutingKey      = "whale.alert"
)

// alertMessage is the JSON body published for each alert.
type alertMessage struct {
	Wallet            string   `json:"wallet"`
	WalletURL         string   `json:"wallet_url"`
	Score             int      `json:"score"`
	Flags             []string `json:"flags"`
	WalletAgeDays     float64  `json:"wallet_age_days"`
	TotalTrades       int      `json:"total_trades"`
	Trades24h         int      `json:"trades_24h"`
	Notional24h       float64  `json:"notional_24h"`
	Notional30d       float64  `json:"notional_30d"`
	UniqueMarkets30d  int      `json:"unique_markets_30d"`
	UniqueEvents30d   int      `json:"unique_events_30d"`
	TopMarketShare30d float64  `json:"top_market_share_30d"`
	MarketID          string   `json:"market_id"`
	MinutesUntilClose *float64 `json:"minutes_until_close"`
	FirstSeen         int64    `json:"first_seen"`
	LastSeen          int64    `json:"last_seen"`
	EmittedAt         int64    `json:"emitted_at"`
}

func newAlertMessage(a *model.Alert, now time.Time) alertMessage {
	return alertMessage{
		Wallet:            a.Wallet,
		WalletURL:         WalletURL(a.Wallet),
		Score:             a.Score,
		Flags:             a.FlagNames(),
		WalletAgeDays:     a.WalletAgeDays,
		TotalTrades:       a.TotalTrades,
		Trades24h:         a.Trades24h,
		Notional24h:       a.Notional24h,
		Notional30d:       a.Notional30d,
		UniqueMarkets30d:  a.UniqueMarkets30d,
		UniqueEvents30d:   a.UniqueEvents30d,
		TopMarketShare30d: a.TopMarketShare30d,
		MarketID:          a.MarketID,
		MinutesUntilClose: a.MinutesUntilClose,
		FirstSeen:         a.FirstSeen,
		LastSeen:          a.LastSeen,
		EmittedAt:         now.Unix(),
	}
}

// amqpChannel is the subset of *amqp.Channel used for publishing.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// AMQPNotifier publishes alerts as persistent JSON messages to a fanout
// exchange. A dropped connection is redialed on the next send.
type AMQPNotifier struct {
	logger   *zap.Logger
	url      string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel amqpChannel
}

// NewAMQPNotifier dials the broker and declares the exchange.
func NewAMQPNotifier(logger *zap.Logger, url, exchange string) (*AMQPNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exchange == "" {
		exchange = DefaultAlertExchange
	}
	n := &AMQPNotifier{logger: logger, url: url, exchange: exchange}
	if err := n.connect(); err != nil {
		return nil, err
	}
	return n, nil
}

// connect must be called with mu held or before the notifier is shared.
func (n *AMQPNotifier) connect() error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(n.exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", n.exchange, err)
	}
	n.conn = conn
	n.channel = ch
	n.logger.Info("amqp connected", zap.String("exchange", n.exchange))
	return nil
}

// SendAlert publishes the alert.
func (n *AMQPNotifier) SendAlert(ctx context.Context, alert *model.Alert) error {
	body, err := json.Marshal(newAlertMessage(alert, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channel == nil || n.channel.IsClosed() {
		n.logger.Warn("amqp channel closed, reconnecting")
		if err := n.connect(); err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
	}

	err = n.channel.PublishWithContext(ctx, n.exchange, AlertRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp: publish: %w", err)
	}
	n.logger.Debug("published alert", zap.String("wallet", alert.Wallet))
	return nil
}

// Close closes the channel and connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	var err error
	if n.channel != nil {
		err = n.channel.Close()
	}
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
