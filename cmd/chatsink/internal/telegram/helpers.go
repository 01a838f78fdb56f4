package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mymmrac/telego"

	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal"
	"github.com/tinyland-inc/chatsink/pkg/channels"
	"github.com/tinyland-inc/chatsink/pkg/logger"
	"github.com/tinyland-inc/chatsink/pkg/sink"
	tg "github.com/tinyland-inc/chatsink/pkg/telegram"
)

var errNoToken = errors.New("telegram_bot_token is not set and TG_BOT_TOKEN is empty")

func telegramCmd(ctx context.Context, opts options) error {
	cfg, err := internal.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logMessages := internal.ConfigureLogging(cfg, opts.verbose, opts.quiet)

	token := cfg.BotToken()
	if token == "" {
		return errNoToken
	}
	var botOpts []telego.BotOption
	if cfg.TelegramAPIURL != "" {
		botOpts = append(botOpts, telego.WithAPIServer(cfg.TelegramAPIURL))
	}
	poller, err := tg.NewPoller(token, botOpts...)
	if err != nil {
		return err
	}

	out, err := sink.Open(cfg.TelegramOutputPath())
	if err != nil {
		return fmt.Errorf("error opening output: %w", err)
	}
	defer out.Close()

	ctx, stop := internal.SignalContext(ctx)
	defer stop()

	runID := channels.NewRunID(time.Now())
	allow := channels.NewTelegramAllowList(cfg.TelegramChats)
	logger.InfoCF("telegram", "Listener starting", map[string]any{
		"output":  out.Path(),
		"run_id":  runID,
		"allowed": allow.Len(),
	})

	l := tg.NewListener(poller, channels.NewTelegramNormalizer(runID, allow), out,
		tg.WithRetryPolicy(internal.RetryPolicy(cfg)),
		tg.WithMessageLog(logMessages),
	)
	return internal.SessionResult(l.Run(ctx))
}
