package listen

import (
	"github.com/spf13/cobra"

	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal"
)

type options struct {
	configPath string
	verbose    bool
	quiet      bool
}

func NewListenCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Record incoming WhatsApp messages to a JSONL file",
		Args:  cobra.NoArgs,
		Example: `  chatsink listen --config config.yaml
  LISTENER_MAX_RETRIES=10 chatsink listen --config config.yaml --quiet`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listenCmd(cmd.Context(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.SetFlagErrorFunc(internal.FlagError)
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to config.yaml")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every saved message and enable debug logging")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not log saved messages")

	return cmd
}
