package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aretw0/coaxterm/internal/cli"
	"github.com/aretw0/coaxterm/pkg/codepage"
	"github.com/aretw0/coaxterm/pkg/domain"
	"github.com/aretw0/coaxterm/pkg/session"
)

// codepageFlag validates the code page while flags are parsed.
type codepageFlag struct {
	name string
}

func (f *codepageFlag) String() string { return f.name }
func (f *codepageFlag) Type() string   { return "codepage" }

func (f *codepageFlag) Set(s string) error {
	name, err := codepage.Validate(s)
	if err != nil {
		return err
	}
	f.name = name
	return nil
}

var tn3270Flags struct {
	codepage codepageFlag
	tn3270e  string
}

var tn3270Cmd = &cobra.Command{
	Use:   "tn3270 <interface> <[lu[,lu...]@]host[:port]>",
	Short: "Connect terminals to a TN3270 host",
	Example: `  coaxterm tn3270 /dev/ttyACM0 mainframe.example.com
  coaxterm tn3270 /dev/ttyACM0 LU1,LU2@mainframe.example.com:3270 --codepage cp1140`,
	// The deprecated standalone port is accepted as a third argument.
	Args: usageArgs(cobra.RangeArgs(2, 3)),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("codepage") {
			cfg.TN3270.Codepage = tn3270Flags.codepage.name
		}
		if flags.Changed("tn3270e") {
			cfg.TN3270.TN3270E = tn3270Flags.tn3270e
		}

		var legacyPort *int
		if len(args) == 3 {
			p, err := strconv.Atoi(args[2])
			if err != nil {
				return &domain.ConfigError{Arg: "port", Value: args[2], Reason: "invalid port", Err: err}
			}
			legacyPort = &p
		}

		return cli.Execute(cmd.Context(), cli.RunOptions{
			Config:     cfg,
			Kind:       session.KindTN3270,
			Interface:  args[0],
			Target:     args[1],
			LegacyPort: legacyPort,
			NoBanner:   globalFlags.noBanner,
			Logger:     logger,
		})
	},
}

func init() {
	tn3270Flags.codepage.name = codepage.Default
	tn3270Cmd.Flags().Var(&tn3270Flags.codepage, "codepage", "EBCDIC code page of the host")
	tn3270Cmd.Flags().StringVar(&tn3270Flags.tn3270e, "tn3270e", string(session.TN3270EDefault), "TN3270E negotiation: off, basic or default")
	rootCmd.AddCommand(tn3270Cmd)
}
