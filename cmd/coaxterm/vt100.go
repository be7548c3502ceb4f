package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/coaxterm/internal/cli"
	"github.com/aretw0/coaxterm/pkg/session"
)

var vt100Cmd = &cobra.Command{
	Use:   "vt100 <interface> <command> [args...]",
	Short: "Connect terminals to a local program on a pseudo-terminal",
	Example: `  coaxterm vt100 /dev/ttyACM0 /bin/login
  coaxterm vt100 /dev/ttyACM0 ssh -l operator host.example.com`,
	Args: usageArgs(cobra.MinimumNArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		return cli.Execute(cmd.Context(), cli.RunOptions{
			Config:    cfg,
			Kind:      session.KindVT100,
			Interface: args[0],
			Command:   args[1],
			Args:      args[2:],
			NoBanner:  globalFlags.noBanner,
			Logger:    logger,
		})
	},
}

func init() {
	// Flags after the command belong to it.
	vt100Cmd.Flags().SetInterspersed(false)
	if session.DetectCapabilities().CharacterStream {
		rootCmd.AddCommand(vt100Cmd)
	}
}
