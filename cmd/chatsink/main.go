// chatsink - Record WhatsApp and Telegram messages to JSONL
// License: MIT
//
// Copyright (c) 2026 chatsink contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal"
	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal/chats"
	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal/listen"
	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal/login"
	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal/telegram"
	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal/version"
	"github.com/tinyland-inc/chatsink/pkg/logger"
)

func NewChatsinkCommand() *cobra.Command {
	short := fmt.Sprintf("chatsink - WhatsApp and Telegram message recorder v%s", internal.GetVersion())

	cmd := &cobra.Command{
		Use:           "chatsink",
		Short:         short,
		Example:       "chatsink listen --config config.yaml",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(internal.FlagError)

	cmd.AddCommand(
		listen.NewListenCommand(),
		chats.NewChatsCommand(),
		login.NewLoginCommand(),
		telegram.NewTelegramCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewChatsinkCommand()
	err := cmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(internal.ExitCode(err))
	}
}
