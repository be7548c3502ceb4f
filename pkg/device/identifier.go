package device

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/coaxterm/pkg/coax"
	"github.com/aretw0/coaxterm/pkg/domain"
	"github.com/aretw0/coaxterm/pkg/keymap"
)

// Querier issues the identification queries.
type Querier interface {
	QueryIDs(ctx context.Context, link coax.Link, addr coax.Address) (domain.TerminalID, domain.ExtendedID, error)
	QueryFeatures(ctx context.Context, link coax.Link, addr coax.Address) (domain.Features, error)
}

// LinkQuerier queries the terminal over the bridge.
type LinkQuerier struct{}

func (LinkQuerier) QueryIDs(ctx context.Context, link coax.Link, addr coax.Address) (domain.TerminalID, domain.ExtendedID, error) {
	return coax.GetIDs(ctx, link, addr)
}

func (LinkQuerier) QueryFeatures(ctx context.Context, link coax.Link, addr coax.Address) (domain.Features, error) {
	return coax.GetFeatures(ctx, link, addr)
}

// Params carries the user-supplied inputs of identification.
type Params struct {
	// Keymaps replaces the built-in keymap selection when set.
	Keymaps *keymap.Registry
}

// Identifier builds a Terminal from an attached device.
type Identifier struct {
	params    Params
	querier   Querier
	logger    *slog.Logger
	newScreen func(addr coax.Address) Screen
}

// Option configures an Identifier.
type Option func(*Identifier)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Identifier) {
		i.logger = logger
	}
}

// WithQuerier replaces the bridge querier.
func WithQuerier(q Querier) Option {
	return func(i *Identifier) {
		i.querier = q
	}
}

// WithScreen sets the constructor for terminal screens.
func WithScreen(newScreen func(addr coax.Address) Screen) Option {
	return func(i *Identifier) {
		i.newScreen = newScreen
	}
}

// NewIdentifier creates an Identifier.
func NewIdentifier(params Params, opts ...Option) *Identifier {
	i := &Identifier{
		params:  params,
		querier: LinkQuerier{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.newScreen == nil {
		logger := i.logger
		i.newScreen = func(addr coax.Address) Screen {
			return NewBufferScreen(logger.With("address", addr.String()))
		}
	}
	return i
}

// Identify queries the terminal at addr and builds its Terminal. Only CUT
// terminals are accepted; anything else fails with domain.ErrUnsupportedDevice
// before features are read.
func (i *Identifier) Identify(ctx context.Context, link coax.Link, addr coax.Address, poll coax.PollResponse) (*Terminal, error) {
	logger := i.logger.With("address", addr.String())
	logger.Debug("Identifying terminal", "poll_response", poll.Kind)

	tid, eid, err := i.querier.QueryIDs(ctx, link, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to read terminal ids: %w", err)
	}
	logger.Info("Terminal ID", "terminal_id", tid)

	if tid.Type != domain.TerminalTypeCUT {
		return nil, fmt.Errorf("%w: only CUT type terminals are supported, got %s", domain.ErrUnsupportedDevice, tid)
	}

	logger.Info("Extended ID", "extended_id", eid)
	if eid.Present() {
		logger.Info(fmt.Sprintf("Model = IBM %s or equivalent", eid.ModelCode()))
	}

	description := KeyboardDescription(tid, eid)
	logger.Info("Keyboard", "description", description)

	features, err := i.querier.QueryFeatures(ctx, link, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to read terminal features: %w", err)
	}
	logger.Info("Features", "features", features)

	km := i.selectKeymap(description)
	logger.Info("Keymap", "name", km.Name())

	return &Terminal{
		Link:       link,
		Address:    addr,
		TerminalID: tid,
		ExtendedID: eid,
		Features:   features,
		Keymap:     km,
		Screen:     i.newScreen(addr),
	}, nil
}

func (i *Identifier) selectKeymap(description string) *keymap.Keymap {
	if i.params.Keymaps != nil {
		return i.params.Keymaps.Select(description)
	}
	return keymap.Select(description)
}

// KeyboardDescription classifies the keyboard. The extended id keyboard type wins
// when present; otherwise the 3278 keyboard id nibble is used.
func KeyboardDescription(tid domain.TerminalID, eid domain.ExtendedID) string {
	if kt, ok := eid.KeyboardType(); ok {
		switch kt {
		case 0x01:
			return keymap.IBMTypewriter
		case 0x02, 0x03:
			return keymap.IBMEnhanced
		default:
			return fmt.Sprintf("UNKNOWN-%02X", kt)
		}
	}
	return fmt.Sprintf("3278-%X", tid.Keyboard)
}
