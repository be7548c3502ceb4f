package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/coaxterm"
	httpAdapter "github.com/aretw0/coaxterm/internal/adapters/http"
	"github.com/aretw0/coaxterm/internal/config"
	"github.com/aretw0/coaxterm/internal/presentation/tui"
	"github.com/aretw0/coaxterm/pkg/address"
	"github.com/aretw0/coaxterm/pkg/coax"
	"github.com/aretw0/coaxterm/pkg/controller"
	"github.com/aretw0/coaxterm/pkg/device"
	"github.com/aretw0/coaxterm/pkg/domain"
	"github.com/aretw0/coaxterm/pkg/keymap"
	"github.com/aretw0/coaxterm/pkg/lifecycle"
	"github.com/aretw0/coaxterm/pkg/observability"
	"github.com/aretw0/coaxterm/pkg/session"
)

// Link is an open bridge link.
type Link interface {
	coax.Link
	io.Closer
}

// LinkOpener opens the bridge on the named interface.
type LinkOpener func(ctx context.Context, name string, opts ...coax.Option) (Link, error)

// OpenSerialLink opens the bridge on a serial port.
func OpenSerialLink(ctx context.Context, name string, opts ...coax.Option) (Link, error) {
	l, err := coax.Open(ctx, name, opts...)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// RunOptions contains all the configuration for one controller run.
type RunOptions struct {
	Config     config.Config
	Kind       session.Kind
	Interface  string
	Target     string
	LegacyPort *int
	Command    string
	Args       []string
	NoBanner   bool

	Logger       *slog.Logger
	Stdout       io.Writer
	OpenLink     LinkOpener
	Capabilities *session.Capabilities
}

// Execute bootstraps the controller and runs it until ctx is done or a
// termination signal arrives. Configuration problems are returned as
// *domain.ConfigError before the bridge is touched.
func Execute(ctx context.Context, opts RunOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.OpenLink == nil {
		opts.OpenLink = OpenSerialLink
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	cfg := opts.Config

	if err := cfg.Validate(); err != nil {
		return err
	}

	factory, err := newSessionFactory(opts, logger)
	if err != nil {
		return err
	}

	registry := keymap.NewRegistry()
	if err := registry.LoadFiles(cfg.Keymaps...); err != nil {
		return &domain.ConfigError{Arg: "keymaps", Reason: "cannot load keymap", Err: err}
	}

	metrics := observability.NewMetrics()
	manager := lifecycle.NewManager(
		lifecycle.WithLogger(logger),
		lifecycle.WithControllerOptions(
			controller.WithLogger(logger),
			controller.WithMetrics(metrics),
			controller.WithAttachedPollPeriod(cfg.Controller.AttachedPollPeriod),
			controller.WithDetachedPollPeriod(cfg.Controller.DetachedPollPeriod),
			controller.WithPollDepth(cfg.Controller.PollDepth),
			controller.WithSessionRestartDelay(cfg.Controller.SessionRestartDelay),
		),
	)
	stopSignals := manager.NotifySignals(ctx)
	defer stopSignals()

	if cfg.MetricsAddr != "" {
		serverCtx, stopServer := context.WithCancel(ctx)
		serverDone := make(chan struct{})
		defer func() {
			stopServer()
			<-serverDone
		}()
		handler := httpAdapter.NewHandler(metrics, manager.State)
		go func() {
			defer close(serverDone)
			if err := httpAdapter.Serve(serverCtx, cfg.MetricsAddr, handler, logger); err != nil {
				logger.Error("Status server failed", "err", err)
			}
		}()
	}

	if !opts.NoBanner {
		if f, ok := opts.Stdout.(*os.File); ok && tui.IsTerminal(f) {
			tui.PrintBanner(f, strings.TrimSpace(coaxterm.Version))
		}
	}

	link, err := opts.OpenLink(ctx, opts.Interface,
		coax.WithBaudRate(cfg.Link.Baud),
		coax.WithReceiveTimeout(cfg.Link.ReceiveTimeout),
		coax.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to open interface %s: %w", opts.Interface, err)
	}
	defer func() {
		if err := link.Close(); err != nil {
			logger.Warn("Failed to close interface", "interface", opts.Interface, "err", err)
		}
	}()

	identifier := device.NewIdentifier(device.Params{Keymaps: registry}, device.WithLogger(logger))

	err = manager.Start(ctx, link, identifier.Identify, factory.New)
	if sig := manager.Signal(); sig != nil {
		logger.Info("Terminated by signal", "signal", sig.String())
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newSessionFactory resolves the session parameters and checks that the
// emulator is available before anything is opened.
func newSessionFactory(opts RunOptions, logger *slog.Logger) (*session.Factory, error) {
	caps := session.DetectCapabilities()
	if opts.Capabilities != nil {
		caps = *opts.Capabilities
	}

	factoryOpts := []session.FactoryOption{session.WithLogger(logger)}
	switch opts.Kind {
	case session.KindTN3270:
		target, err := address.Parse(opts.Target, opts.LegacyPort, logger)
		if err != nil {
			return nil, err
		}
		profile, err := session.ParseTN3270EProfile(opts.Config.TN3270.TN3270E)
		if err != nil {
			return nil, err
		}
		factoryOpts = append(factoryOpts, session.WithTN3270(session.TN3270Params{
			Target:   target,
			Encoding: opts.Config.TN3270.Codepage,
			Profile:  profile,
		}))
	case session.KindVT100:
		if opts.Command == "" {
			return nil, &domain.ConfigError{Arg: "command", Reason: "a host command is required"}
		}
		factoryOpts = append(factoryOpts, session.WithVT100(session.VT100Params{
			Command: opts.Command,
			Args:    opts.Args,
		}))
	}

	factory := session.NewFactory(opts.Kind, caps, factoryOpts...)
	if err := factory.Check(); err != nil {
		return nil, err
	}
	return factory, nil
}
