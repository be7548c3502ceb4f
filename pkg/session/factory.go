package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/coaxterm/pkg/codepage"
	"github.com/aretw0/coaxterm/pkg/device"
	"github.com/aretw0/coaxterm/pkg/domain"
)

// TN3270EProfile controls TN3270E negotiation.
type TN3270EProfile string

const (
	// TN3270EOff refuses TN3270E; the session runs classic TN3270.
	TN3270EOff TN3270EProfile = "off"
	// TN3270EBasic accepts TN3270E without any optional functions.
	TN3270EBasic TN3270EProfile = "basic"
	// TN3270EDefault accepts TN3270E with the BIND-IMAGE and SYSREQ functions.
	TN3270EDefault TN3270EProfile = "default"
)

// ParseTN3270EProfile validates a profile name.
func ParseTN3270EProfile(s string) (TN3270EProfile, error) {
	switch p := TN3270EProfile(strings.ToLower(strings.TrimSpace(s))); p {
	case TN3270EOff, TN3270EBasic, TN3270EDefault:
		return p, nil
	default:
		return "", &domain.ConfigError{Arg: "tn3270e", Value: s, Reason: "invalid profile (off, basic or default)"}
	}
}

// TN3270Params are the resolved inputs of a TN3270 session.
type TN3270Params struct {
	Target   domain.HostTarget
	Encoding string
	Profile  TN3270EProfile
}

// VT100Params are the resolved inputs of a VT100 session.
type VT100Params struct {
	Command string
	Args    []string
}

// Factory constructs the session selected on the command line.
type Factory struct {
	kind   Kind
	caps   Capabilities
	tn3270 TN3270Params
	vt100  VT100Params
	logger *slog.Logger

	newTN3270 func(*device.Terminal, TN3270Params, *slog.Logger) (Session, error)
	newVT100  func(*device.Terminal, VT100Params, *slog.Logger) (Session, error)
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithTN3270 sets the TN3270 parameters.
func WithTN3270(params TN3270Params) FactoryOption {
	return func(f *Factory) {
		f.tn3270 = params
	}
}

// WithVT100 sets the VT100 parameters.
func WithVT100(params VT100Params) FactoryOption {
	return func(f *Factory) {
		f.vt100 = params
	}
}

// WithLogger sets the logger handed to sessions.
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// NewFactory creates a Factory for one emulator kind.
func NewFactory(kind Kind, caps Capabilities, opts ...FactoryOption) *Factory {
	f := &Factory{
		kind:      kind,
		caps:      caps,
		logger:    slog.New(slog.DiscardHandler),
		newTN3270: newTN3270Session,
		newVT100:  newVT100Session,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Kind returns the emulator kind the factory builds.
func (f *Factory) Kind() Kind {
	return f.kind
}

// Check reports whether the factory can build its session on this platform. It is
// called before the link is opened so an unavailable emulator fails early.
func (f *Factory) Check() error {
	switch f.kind {
	case KindTN3270:
		return nil
	case KindVT100:
		if !f.caps.CharacterStream {
			return fmt.Errorf("%w: %s is not available on this platform", domain.ErrUnsupportedEmulator, f.kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedEmulator, f.kind)
	}
}

// New constructs the session for an identified terminal.
func (f *Factory) New(terminal *device.Terminal) (Session, error) {
	if err := f.Check(); err != nil {
		return nil, err
	}
	if terminal == nil {
		return nil, errors.New("session requires an identified terminal")
	}

	logger := f.logger.With("emulator", string(f.kind), "address", terminal.Address.String())

	switch f.kind {
	case KindTN3270:
		return f.newTN3270(terminal, f.tn3270, logger)
	default:
		return f.newVT100(terminal, f.vt100, logger)
	}
}

func newTN3270Session(terminal *device.Terminal, params TN3270Params, logger *slog.Logger) (Session, error) {
	enc, err := codepage.Lookup(params.Encoding)
	if err != nil {
		return nil, err
	}
	if params.Profile == "" {
		params.Profile = TN3270EDefault
	}
	return NewTN3270(terminal, params, enc, logger), nil
}
