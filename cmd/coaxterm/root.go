package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/coaxterm/internal/config"
	"github.com/aretw0/coaxterm/internal/logging"
	"github.com/aretw0/coaxterm/pkg/domain"
)

// Exit codes.
const (
	exitOK     = 0
	exitFatal  = 1
	exitConfig = 2
)

var globalFlags struct {
	configPath  string
	logLevel    string
	metricsAddr string
	baud        int
	noBanner    bool
}

var rootCmd = &cobra.Command{
	Use:   "coaxterm",
	Short: "Connect a 3270 display terminal to a host through a coax bridge",
	Long: `coaxterm drives IBM 3270-family display terminals attached to a serial
coax bridge and connects each of them to a TN3270 or VT100 host session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string) int {
	rootCmd.SetArgs(normalizeArgs(rootCmd, args))
	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(os.Stderr, "coaxterm:", err)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case domain.IsConfigError(err):
		return exitConfig
	default:
		return exitFatal
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globalFlags.configPath, "config", "", "Configuration file (YAML or JSON)")
	flags.StringVar(&globalFlags.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flags.StringVar(&globalFlags.metricsAddr, "metrics-addr", "", "Serve /healthz and /metrics on this address")
	flags.IntVar(&globalFlags.baud, "baud", 115200, "Serial line speed of the bridge")
	flags.BoolVar(&globalFlags.noBanner, "no-banner", false, "Do not print the startup banner")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})
}

// usageError marks command line mistakes so they exit with exitConfig.
func usageError(err error) error {
	var cfgErr *domain.ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}
	return &domain.ConfigError{Arg: "usage", Reason: err.Error(), Err: err}
}

// usageArgs wraps a positional argument validator with usageError.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// loadConfig reads the configuration file and applies the global flags the
// user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(globalFlags.configPath)
	if err != nil {
		return cfg, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = globalFlags.logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = globalFlags.metricsAddr
	}
	if flags.Changed("baud") {
		cfg.Link.Baud = globalFlags.baud
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logging.New(level), nil
}

// emulators are the subcommands that take the interface argument.
var emulators = map[string]bool{"tn3270": true, "vt100": true}

// normalizeArgs accepts the interface before the emulator name, as in
// "coaxterm /dev/ttyACM0 tn3270 host", by moving it behind the emulator.
func normalizeArgs(cmd *cobra.Command, args []string) []string {
	var positional []int
	for i := 0; i < len(args) && len(positional) < 2; i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if len(arg) > 1 && arg[0] == '-' {
			if takesValue(cmd, arg) {
				i++
			}
			continue
		}
		positional = append(positional, i)
	}
	if len(positional) < 2 {
		return args
	}

	first, second := positional[0], positional[1]
	if emulators[args[first]] || !emulators[args[second]] {
		return args
	}

	out := make([]string, len(args))
	copy(out, args)
	out[first], out[second] = args[second], args[first]
	return out
}

// takesValue reports whether a global flag given as arg consumes the next
// argument.
func takesValue(cmd *cobra.Command, arg string) bool {
	name := strings.TrimLeft(arg, "-")
	if strings.Contains(name, "=") {
		return false
	}
	f := cmd.PersistentFlags().Lookup(name)
	return f != nil && f.NoOptDefVal == ""
}
