package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/coaxterm"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of coaxterm",
	Args:  usageArgs(cobra.NoArgs),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "coaxterm version %s\n", strings.TrimSpace(coaxterm.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
