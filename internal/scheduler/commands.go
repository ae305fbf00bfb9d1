package scheduler

import (
	"context"
	"strings"
	"time"

	"WhaleSentinel/internal/notifier"
)

const (
	aliveReply    = "alive ✅"
	statusTimeout = 5 * time.Second
	commandsHelp  = "commands: !alive, !status (Telegram: /alive, /status)"
)

// HandleCommand answers operator chat commands. Plain chatter gets no reply.
func (s *Scheduler) HandleCommand(command string) string {
	cmd := strings.ToLower(strings.TrimSpace(command))
	// Telegram group commands arrive as /cmd@botname.
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "!alive", "/alive":
		return aliveReply
	case "!status", "/status":
		ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
		defer cancel()
		return notifier.FormatStatus(s.Status(ctx))
	case "!help", "/help", "/start":
		return commandsHelp
	default:
		return ""
	}
}
