package listen

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal"
	"github.com/tinyland-inc/chatsink/pkg/channels"
	"github.com/tinyland-inc/chatsink/pkg/logger"
	"github.com/tinyland-inc/chatsink/pkg/session"
	"github.com/tinyland-inc/chatsink/pkg/sink"
)

func listenCmd(ctx context.Context, stderr io.Writer, opts options) error {
	cfg, err := internal.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logMessages := internal.ConfigureLogging(cfg, opts.verbose, opts.quiet)

	store, err := internal.NewStore(cfg)
	if err != nil {
		return err
	}

	out, err := sink.Open(cfg.OutputPath())
	if err != nil {
		return fmt.Errorf("error opening output: %w", err)
	}
	defer out.Close()

	ctx, stop := internal.SignalContext(ctx)
	defer stop()

	runID := channels.NewRunID(time.Now())
	allow := channels.NewAllowList(cfg.Chats)
	logger.InfoCF("whatsapp", "Listener starting", map[string]any{
		"output":  out.Path(),
		"auth":    store.Dir(),
		"run_id":  runID,
		"allowed": allow.Len(),
	})

	mgr := session.NewManager(session.ModeListen, internal.NewProvider(cfg), store,
		session.WithRetryPolicy(internal.RetryPolicy(cfg)),
		session.WithVersion(internal.ResolveVersion(ctx, cfg)),
		session.WithPresenter(internal.NewQRPresenter(stderr)),
		session.WithMessageSink(channels.NewNormalizer(runID, allow), out),
		session.WithMessageLog(logMessages),
	)
	return internal.SessionResult(mgr.Run(ctx))
}
