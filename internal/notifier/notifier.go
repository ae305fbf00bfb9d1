package notifier

import (
	"context"

	"WhaleSentinel/internal/model"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Notifier delivers alerts to one channel.
type Notifier interface {
	SendAlert(ctx context.Context, alert *model.Alert) error
	Close() error
}

// CommandHandler maps an operator command to its reply. An empty reply means
// the command is ignored.
type CommandHandler func(command string) string

// Multi fans an alert out to every configured notifier. A failing sink does
// not stop delivery to the rest.
type Multi struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewMulti creates a Multi, dropping nil notifiers.
func NewMulti(logger *zap.Logger, notifiers ...Notifier) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &Multi{notifiers: active, logger: logger}
}

// SendAlert delivers to every notifier and returns the combined errors.
func (m *Multi) SendAlert(ctx context.Context, alert *model.Alert) error {
	var errs error
	for _, n := range m.notifiers {
		if err := n.SendAlert(ctx, alert); err != nil {
			m.logger.Warn("alert delivery failed", zap.String("wallet", alert.Wallet), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Close closes every notifier.
func (m *Multi) Close() error {
	var errs error
	for _, n := range m.notifiers {
		errs = multierr.Append(errs, n.Close())
	}
	return errs
}

// Count returns the number of active notifiers.
func (m *Multi) Count() int {
	return len(m.notifiers)
}
