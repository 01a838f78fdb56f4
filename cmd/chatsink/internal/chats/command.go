package chats

import (
	"github.com/spf13/cobra"

	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal"
)

type options struct {
	configPath string
	asJSON     bool
	limit      int
}

func NewChatsCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:     "chats",
		Aliases: []string{"list-chats"},
		Short:   "List known WhatsApp chats and groups",
		Long: `Connects with the stored credentials, collects the chats announced by the
server plus all participating groups, prints them once and exits.

Exit status 3 means the server asked for a restart; run the command again.`,
		Args: cobra.NoArgs,
		Example: `  chatsink chats --config config.yaml
  chatsink chats --config config.yaml --json --limit 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return chatsCmd(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.SetFlagErrorFunc(internal.FlagError)
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to config.yaml")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print one JSON object per chat")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Print at most N chats (0 for all)")

	return cmd
}
