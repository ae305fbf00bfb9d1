package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"WhaleSentinel/internal/model"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const alertColor = 0xED4245

var errNoSession = errors.New("discord session not initialized")

// DiscordNotifier sends alerts as direct messages to a single user and answers
// that user's DM commands.
type DiscordNotifier struct {
	logger  *zap.Logger
	session *discordgo.Session
	userID  string

	mu          sync.Mutex
	dmChannelID string
	handler     CommandHandler
}

// NewDiscordNotifier creates a bot session. The gateway is not opened until Open.
func NewDiscordNotifier(logger *zap.Logger, token, userID string) (*DiscordNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsGuilds

	d := &DiscordNotifier{
		logger:  logger,
		session: session,
		userID:  userID,
	}
	session.AddHandler(d.onReady)
	session.AddHandler(d.onMessage)
	return d, nil
}

// Open connects to the gateway. Commands received afterwards go to handler.
func (d *DiscordNotifier) Open(handler CommandHandler) error {
	if d.session == nil {
		return errNoSession
	}
	d.mu.Lock()
	d.handler = handler
	d.mu.Unlock()
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

func (d *DiscordNotifier) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	d.logger.Info("discord bot ready", zap.String("user", r.User.Username))
}

func (d *DiscordNotifier) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	d.mu.Lock()
	handler := d.handler
	d.mu.Unlock()

	reply := d.replyFor(m.Author.ID, m.Author.Bot, m.GuildID, m.Content, handler)
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSendReply(m.ChannelID, reply, m.Reference()); err != nil {
		d.logger.Error("send discord reply failed", zap.Error(err))
	}
}

// replyFor answers only direct messages from the configured user.
func (d *DiscordNotifier) replyFor(authorID string, bot bool, guildID, content string, handler CommandHandler) string {
	if bot || guildID != "" || authorID != d.userID || handler == nil {
		return ""
	}
	text := strings.TrimSpace(content)
	if text == "" {
		return ""
	}
	d.logger.Info("received command", zap.String("command", text))
	return handler(text)
}

func (d *DiscordNotifier) dmChannel(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dmChannelID != "" {
		return d.dmChannelID, nil
	}
	ch, err := d.session.UserChannelCreate(d.userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("open dm channel: %w", err)
	}
	d.dmChannelID = ch.ID
	return ch.ID, nil
}

// SendAlert delivers the alert as an embed in the user's DMs.
func (d *DiscordNotifier) SendAlert(ctx context.Context, alert *model.Alert) error {
	if d.session == nil {
		return errNoSession
	}
	channelID, err := d.dmChannel(ctx)
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	if _, err := d.session.ChannelMessageSendEmbed(channelID, buildAlertEmbed(alert, time.Now()), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	d.logger.Info("sent discord alert", zap.String("wallet", alert.Wallet), zap.Int("score", alert.Score))
	return nil
}

// Close disconnects from the gateway.
func (d *DiscordNotifier) Close() error {
	if d.session == nil {
		return nil
	}
	return d.session.Close()
}

func buildAlertEmbed(a *model.Alert, ts time.Time) *discordgo.MessageEmbed {
	walletURL := WalletURL(a.Wallet)
	return &discordgo.MessageEmbed{
		Title: "🚨 ALERT",
		URL:   walletURL,
		Color: alertColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Score", Value: strconv.Itoa(a.Score), Inline: true},
			{Name: "Flags", Value: flagList(a), Inline: true},
			{Name: "Wallet", Value: fmt.Sprintf("[%s](%s)", a.Wallet, walletURL)},
			{Name: "Wallet Age", Value: fmt.Sprintf("%.2f days", a.WalletAgeDays), Inline: true},
			{Name: "Notional (24h)", Value: Money(a.Notional24h), Inline: true},
			{Name: "Total Trades", Value: strconv.Itoa(a.TotalTrades), Inline: true},
			{Name: "Top Market Share (30d)", Value: Percent(a.TopMarketShare30d), Inline: true},
			{Name: "Unique Events (30d)", Value: strconv.Itoa(a.UniqueEvents30d), Inline: true},
			{Name: "Market Closes", Value: closesIn(a), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "market " + a.MarketID},
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
}
