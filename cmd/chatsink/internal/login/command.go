package login

import (
	"github.com/spf13/cobra"

	"github.com/tinyland-inc/chatsink/cmd/chatsink/internal"
)

func NewLoginCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "login",
		Aliases: []string{"pair"},
		Short:   "Pair this device with a WhatsApp account",
		Args:    cobra.NoArgs,
		Example: `  chatsink login --config config.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return loginCmd(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), configPath)
		},
	}

	cmd.SetFlagErrorFunc(internal.FlagError)
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config.yaml")

	return cmd
}
