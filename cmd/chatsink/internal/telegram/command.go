package telegram

import (
	"github.com/spf13/cobra"

	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal"
)

type options struct {
	configPath string
	verbose    bool
	quiet      bool
}

func NewTelegramCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "Record Telegram messages seen by a bot to a JSONL file",
		Args:  cobra.NoArgs,
		Example: `  TG_BOT_TOKEN=123456:ABC chatsink telegram --config config.yaml
  chatsink telegram --config config.yaml --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return telegramCmd(cmd.Context(), opts)
		},
	}

	cmd.SetFlagErrorFunc(internal.FlagError)
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to config.yaml")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every saved message and enable debug logging")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not log saved messages")

	return cmd
}
