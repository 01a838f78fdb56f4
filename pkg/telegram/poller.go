// Package telegram ingests Telegram messages through the Bot API. A Poller
// long-polls getUpdates and a Listener turns the updates into records,
// reconnecting with the same policy as the WhatsApp session.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/tinyland-inc/chatsink/pkg/logger"
)

const component = "telegram"

// DefaultPollTimeout is the getUpdates long-poll timeout in seconds.
const DefaultPollTimeout = 30

// AllowedUpdates limits polling to new messages in groups, private chats
// and channels.
var AllowedUpdates = []string{"message", "channel_post"}

// Poller is an UpdateSource backed by a bot token.
type Poller struct {
	bot     *telego.Bot
	timeout int
}

// NewPoller creates the bot client. Extra options, such as
// telego.WithAPIServer for a local Bot API server, are applied after the
// logger.
func NewPoller(token string, options ...telego.BotOption) (*Poller, error) {
	opts := append([]telego.BotOption{telego.WithLogger(botLogger{token: token})}, options...)
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &Poller{bot: bot, timeout: DefaultPollTimeout}, nil
}

// Updates checks the token with getMe and starts long polling. The
// returned channel is closed once ctx is done.
func (p *Poller) Updates(ctx context.Context) (<-chan telego.Update, error) {
	me, err := p.bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("getMe: %w", err)
	}
	logger.InfoCF(component, "Bot authorized", map[string]any{
		"bot": me.Username,
		"id":  me.ID,
	})

	updates, err := p.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        p.timeout,
		AllowedUpdates: AllowedUpdates,
	})
	if err != nil {
		return nil, fmt.Errorf("starting long polling: %w", err)
	}
	return updates, nil
}

// botLogger routes telego's request logging into the component logger
// with the token masked.
type botLogger struct {
	token string
}

func (l botLogger) Debugf(format string, args ...any) {
	logger.DebugC(component, l.mask(fmt.Sprintf(format, args...)))
}

func (l botLogger) Errorf(format string, args ...any) {
	logger.WarnC(component, l.mask(fmt.Sprintf(format, args...)))
}

func (l botLogger) mask(s string) string {
	if l.token == "" {
		return s
	}
	return strings.ReplaceAll(s, l.token, "BOT_TOKEN")
}
