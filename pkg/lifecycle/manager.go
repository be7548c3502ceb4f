package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/aretw0/coaxterm/pkg/coax"
	"github.com/aretw0/coaxterm/pkg/controller"
)

// ErrAlreadyRunning is returned by Start while another controller runs.
var ErrAlreadyRunning = errors.New("controller already running")

// State is the manager state.
type State int32

const (
	StateAbsent State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Runner is the part of the controller the manager drives.
type Runner interface {
	Run(ctx context.Context) error
	Stop()
}

type handle struct {
	runner Runner
}

type constructor func(link coax.Link, newDevice controller.DeviceFactory, newSession controller.SessionFactory) Runner

// Manager runs one controller at a time.
type Manager struct {
	logger         *slog.Logger
	controllerOpts []controller.Option
	construct      constructor

	ctx    context.Context
	cancel context.CancelFunc
	handle atomic.Pointer[handle]
	state  atomic.Int32

	mu     sync.Mutex
	signal os.Signal
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithControllerOptions sets the options every controller is built with.
func WithControllerOptions(opts ...controller.Option) Option {
	return func(m *Manager) {
		m.controllerOpts = append(m.controllerOpts, opts...)
	}
}

// NewManager creates a Manager in StateAbsent.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger: slog.New(slog.DiscardHandler),
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(m)
	}
	if m.construct == nil {
		m.construct = func(link coax.Link, newDevice controller.DeviceFactory, newSession controller.SessionFactory) Runner {
			return controller.New(link, newDevice, newSession, m.controllerOpts...)
		}
	}
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Start builds the controller, publishes it and runs it until it stops. It
// returns at once when Terminate was already called.
func (m *Manager) Start(ctx context.Context, link coax.Link, newDevice controller.DeviceFactory, newSession controller.SessionFactory) error {
	if m.ctx.Err() != nil {
		m.logger.Info("Terminated before start")
		return nil
	}

	h := &handle{runner: m.construct(link, newDevice, newSession)}
	if !m.handle.CompareAndSwap(nil, h) {
		return ErrAlreadyRunning
	}
	m.state.Store(int32(StateRunning))
	defer func() {
		m.handle.CompareAndSwap(h, nil)
		m.state.Store(int32(StateAbsent))
	}()

	// Terminate may have run between the first check and publishing the
	// handle; it then cancelled m.ctx without seeing h.
	if m.ctx.Err() != nil {
		m.logger.Info("Terminated before start")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	m.logger.Debug("Controller running")
	return h.runner.Run(runCtx)
}

// Terminate stops the running controller. Only the first call has an effect;
// when nothing runs yet it makes a later Start return immediately.
func (m *Manager) Terminate() {
	m.cancel()
	h := m.handle.Swap(nil)
	if h == nil {
		return
	}
	m.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
	m.logger.Info("Stopping controller")
	h.runner.Stop()
}

// Terminated reports whether Terminate was called.
func (m *Manager) Terminated() bool {
	return m.ctx.Err() != nil
}

// Signal returns the signal that terminated the manager, or nil.
func (m *Manager) Signal() os.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signal
}
