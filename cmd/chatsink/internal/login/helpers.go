package login

import (
	"context"
	"fmt"
	"io"

	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal"
	"github.com/tinyland-inc/chatsink/pkg/session"
)

func loginCmd(ctx context.Context, stdout, stderr io.Writer, configPath string) error {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return err
	}
	internal.ConfigureLogging(cfg, false, false)

	store, err := internal.NewStore(cfg)
	if err != nil {
		return err
	}
	if store.Present() {
		fmt.Fprintln(stdout, "[whatsapp] auth already present")
	}

	ctx, stop := internal.SignalContext(ctx)
	defer stop()

	paired := false
	mgr := session.NewManager(session.ModePair, internal.NewProvider(cfg), store,
		session.WithRetryPolicy(internal.RetryPolicy(cfg)),
		session.WithVersion(internal.ResolveVersion(ctx, cfg)),
		session.WithPresenter(internal.NewQRPresenter(stderr)),
		session.WithStateHook(func(s session.SessionState) {
			if s == session.StateConnected && !paired {
				paired = true
				fmt.Fprintln(stdout, "[whatsapp] login successful")
			}
		}),
	)
	return internal.SessionResult(mgr.Run(ctx))
}
