package chats

import (
	"context"
	"io"

	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal"
	"github.com/tinyland-inc/chatsink/pkg/directory"
	"github.com/tinyland-inc/chatsink/pkg/session"
)

func chatsCmd(ctx context.Context, stdout, stderr io.Writer, opts options) error {
	cfg, err := internal.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	internal.ConfigureLogging(cfg, false, false)

	store, err := internal.NewStore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := internal.SignalContext(ctx)
	defer stop()

	limit := opts.limit
	if limit < 0 {
		limit = 0
	}
	printer := directory.NewPrinter(stdout, opts.asJSON)

	mgr := session.NewManager(session.ModeListChats, internal.NewProvider(cfg), store,
		session.WithRetryPolicy(internal.RetryPolicy(cfg)),
		session.WithVersion(internal.ResolveVersion(ctx, cfg)),
		session.WithPresenter(internal.NewQRPresenter(stderr)),
		session.WithChatDirectory(directory.NewBuilder(limit), printer.Print),
	)
	return internal.SessionResult(mgr.Run(ctx))
}
