package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/coaxterm/pkg/coax"
	"github.com/aretw0/coaxterm/pkg/device"
	"github.com/aretw0/coaxterm/pkg/domain"
	"github.com/aretw0/coaxterm/pkg/keymap"
	"github.com/aretw0/coaxterm/pkg/observability"
	"github.com/aretw0/coaxterm/pkg/session"
)

// DeviceFactory identifies the terminal found at addr.
type DeviceFactory func(ctx context.Context, link coax.Link, addr coax.Address, poll coax.PollResponse) (*device.Terminal, error)

// SessionFactory builds the host session for an identified terminal.
type SessionFactory func(terminal *device.Terminal) (session.Session, error)

// Defaults.
const (
	DefaultAttachedPollPeriod  = time.Second / 15
	DefaultDetachedPollPeriod  = time.Second / 2
	DefaultPollDepth           = 3
	DefaultSessionRestartDelay = 5 * time.Second
)

// SessionState is the state of the session bound to an attached terminal.
type SessionState int

const (
	SessionStarting SessionState = iota + 1
	SessionActive
	SessionTerminating
)

func (s SessionState) String() string {
	switch s {
	case SessionStarting:
		return "starting"
	case SessionActive:
		return "active"
	case SessionTerminating:
		return "terminating"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

type sessionEntry struct {
	state   SessionState
	session session.Session
	// cancel aborts a start still in progress.
	cancel context.CancelFunc
}

type eventKind int

const (
	eventStarted eventKind = iota
	eventDone
	eventTerminated
)

type sessionEvent struct {
	kind    eventKind
	addr    coax.Address
	session session.Session
	err     error
}

// Controller polls the bridge, attaches terminals and runs one session per
// attached terminal.
type Controller struct {
	id         string
	link       coax.Link
	newDevice  DeviceFactory
	newSession SessionFactory

	logger              *slog.Logger
	metrics             *observability.Metrics
	attachedPollPeriod  time.Duration
	detachedPollPeriod  time.Duration
	pollDepth           int
	sessionRestartDelay time.Duration

	// Owned by the Run goroutine.
	devices          map[coax.Address]*device.Terminal
	sessions         map[coax.Address]*sessionEntry
	retryAt          map[coax.Address]time.Time
	detachedQueue    []coax.Address
	lastAttachedPoll time.Time
	lastDetachedPoll time.Time

	events   chan sessionEvent
	exited   chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics enables metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithAttachedPollPeriod sets the target time between POLLs of attached terminals.
func WithAttachedPollPeriod(d time.Duration) Option {
	return func(c *Controller) {
		c.attachedPollPeriod = d
	}
}

// WithDetachedPollPeriod sets the time between POLLs looking for new terminals.
func WithDetachedPollPeriod(d time.Duration) Option {
	return func(c *Controller) {
		c.detachedPollPeriod = d
	}
}

// WithPollDepth sets the maximum number of POLLs per attached terminal per loop
// iteration.
func WithPollDepth(n int) Option {
	return func(c *Controller) {
		c.pollDepth = n
	}
}

// WithSessionRestartDelay sets how long to wait before starting a session again
// after it failed to start.
func WithSessionRestartDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.sessionRestartDelay = d
	}
}

// New creates a controller. Nothing is polled until Run.
func New(link coax.Link, newDevice DeviceFactory, newSession SessionFactory, opts ...Option) *Controller {
	c := &Controller{
		id:                  uuid.NewString(),
		link:                link,
		newDevice:           newDevice,
		newSession:          newSession,
		logger:              slog.New(slog.DiscardHandler),
		attachedPollPeriod:  DefaultAttachedPollPeriod,
		detachedPollPeriod:  DefaultDetachedPollPeriod,
		pollDepth:           DefaultPollDepth,
		sessionRestartDelay: DefaultSessionRestartDelay,
		devices:             make(map[coax.Address]*device.Terminal),
		sessions:            make(map[coax.Address]*sessionEntry),
		retryAt:             make(map[coax.Address]time.Time),
		events:              make(chan sessionEvent, 16),
		exited:              make(chan struct{}),
		stopCh:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("controller_id", c.id)
	return c
}

// ID returns the controller id.
func (c *Controller) ID() string {
	return c.id
}

// Stop asks the run loop to exit. It is safe to call more than once, before Run
// and after Run has returned.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// Run polls until ctx is cancelled or Stop is called. Sessions are terminated
// before it returns. A non-nil error means the bridge link failed.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("controller already running")
	}

	sessionCtx, cancelSessions := context.WithCancel(ctx)
	defer cancelSessions()

	c.logger.Info("Controller started", "interface", c.link.Name())

	var err error
	for !c.stopping(ctx) {
		c.startMissingSessions(sessionCtx)

		if delay := c.pollDelay(); delay > 0 {
			c.handleEvents(ctx, delay)
		}
		if c.stopping(ctx) {
			break
		}

		if err = c.pollAttached(ctx); err != nil {
			break
		}
		if err = c.pollNextDetached(ctx); err != nil {
			break
		}
	}

	cancelSessions()
	c.shutdown()

	if err != nil && ctx.Err() == nil {
		c.logger.Error("Controller stopped", "err", err)
		return err
	}
	c.logger.Info("Controller stopped")
	return nil
}

func (c *Controller) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Controller) pollDelay() time.Duration {
	if c.lastAttachedPoll.IsZero() {
		return 0
	}
	return time.Until(c.lastAttachedPoll.Add(c.attachedPollPeriod))
}

// handleEvents processes session events for up to d.
func (c *Controller) handleEvents(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case ev := <-c.events:
			c.handleEvent(ev)
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		}
	}
}

// send delivers an event unless the run loop has exited.
func (c *Controller) send(ev sessionEvent) {
	select {
	case c.events <- ev:
	case <-c.exited:
	}
}

func (c *Controller) startMissingSessions(ctx context.Context) {
	now := time.Now()
	for _, addr := range c.attachedAddresses() {
		if _, ok := c.sessions[addr]; ok {
			continue
		}
		if at, ok := c.retryAt[addr]; ok && now.Before(at) {
			continue
		}
		delete(c.retryAt, addr)
		c.startSession(ctx, c.devices[addr])
	}
}

func (c *Controller) startSession(ctx context.Context, terminal *device.Terminal) {
	addr := terminal.Address
	c.logger.Info("Starting session", "address", addr.String())
	ctx, cancel := context.WithCancel(ctx)
	c.sessions[addr] = &sessionEntry{state: SessionStarting, cancel: cancel}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		s, err := c.newSession(terminal)
		if err == nil {
			err = s.Start(ctx)
		}
		c.send(sessionEvent{kind: eventStarted, addr: addr, session: s, err: err})
	}()
}

func (c *Controller) terminateSession(addr coax.Address, entry *sessionEntry) {
	c.logger.Info("Terminating session", "address", addr.String())
	entry.state = SessionTerminating
	s := entry.session

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := s.Terminate(); err != nil {
			c.logger.Warn("Session terminate failed", "address", addr.String(), "err", err)
		}
		c.send(sessionEvent{kind: eventTerminated, addr: addr, session: s})
	}()
}

func (c *Controller) watchSession(addr coax.Address, s session.Session) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-s.Done():
			c.send(sessionEvent{kind: eventDone, addr: addr, session: s})
		case <-c.exited:
		}
	}()
}

func (c *Controller) handleEvent(ev sessionEvent) {
	entry, ok := c.sessions[ev.addr]
	if !ok {
		return
	}

	switch ev.kind {
	case eventStarted:
		if ev.err != nil {
			entry.cancel()
			if ev.session != nil {
				_ = ev.session.Terminate()
			}
			delete(c.sessions, ev.addr)
			if entry.state == SessionTerminating {
				c.logger.Info("Session start aborted", "address", ev.addr.String())
				return
			}
			c.logger.Error("Session failed to start", "address", ev.addr.String(), "err", ev.err)
			c.metrics.SessionEvent(observability.SessionFailed)
			if _, attached := c.devices[ev.addr]; attached {
				c.retryAt[ev.addr] = time.Now().Add(c.sessionRestartDelay)
			}
			return
		}

		entry.session = ev.session
		if entry.state == SessionTerminating {
			c.terminateSession(ev.addr, entry)
			return
		}
		entry.state = SessionActive
		c.watchSession(ev.addr, ev.session)
		c.metrics.SessionEvent(observability.SessionStarted)
		c.logger.Info("Session started", "address", ev.addr.String(), "session_id", ev.session.ID())

	case eventDone:
		if entry.session != ev.session || entry.state != SessionActive {
			return
		}
		c.logger.Info("Session disconnected", "address", ev.addr.String(), "err", ev.session.Err())
		c.metrics.SessionEvent(observability.SessionDisconnected)
		c.terminateSession(ev.addr, entry)

	case eventTerminated:
		if entry.session != ev.session {
			return
		}
		entry.cancel()
		delete(c.sessions, ev.addr)
		c.metrics.SessionEvent(observability.SessionTerminated)
		c.logger.Info("Session terminated", "address", ev.addr.String())
	}
}

// shutdown terminates every session and waits for them.
func (c *Controller) shutdown() {
	for addr, entry := range c.sessions {
		switch entry.state {
		case SessionActive:
			c.terminateSession(addr, entry)
		case SessionStarting:
			entry.state = SessionTerminating
			entry.cancel()
		}
	}
	for len(c.sessions) > 0 {
		c.handleEvent(<-c.events)
	}

	close(c.exited)
	c.wg.Wait()

	for range c.devices {
		c.metrics.DeviceDetached()
	}
	clear(c.devices)
	clear(c.retryAt)
	c.detachedQueue = nil
}

func (c *Controller) attachedAddresses() []coax.Address {
	addrs := make([]coax.Address, 0, len(c.devices))
	for addr := range c.devices {
		addrs = append(addrs, addr)
	}
	slices.Sort(addrs)
	return addrs
}

type pollResult struct {
	terminal *device.Terminal
	response coax.PollResponse
}

func (c *Controller) pollAttached(ctx context.Context) error {
	c.lastAttachedPoll = time.Now()

	for range c.pollDepth {
		addrs := c.attachedAddresses()
		if len(addrs) == 0 {
			return nil
		}

		var handleable []pollResult
		var lost []coax.Address
		for _, addr := range addrs {
			terminal := c.devices[addr]
			res, err := c.poll(ctx, addr, terminal.PollAction())
			switch {
			case err == nil:
				if res.NeedsAck() {
					handleable = append(handleable, pollResult{terminal: terminal, response: res})
				}
			case errors.Is(err, coax.ErrReceiveTimeout):
				lost = append(lost, addr)
			case isDeviceError(err):
				c.logger.Warn("POLL attached device failed", "address", addr.String(), "err", err)
			default:
				return err
			}
		}

		for _, r := range handleable {
			if err := coax.PollAck(ctx, c.link, r.terminal.Address); err != nil && !isDeviceError(err) {
				return err
			}
			c.handlePollResponse(ctx, r.terminal, r.response)
		}

		for _, addr := range lost {
			c.handleDeviceLost(addr)
		}

		if len(handleable) == 0 {
			return nil
		}
	}
	return nil
}

func (c *Controller) pollNextDetached(ctx context.Context) error {
	if !c.lastDetachedPoll.IsZero() && time.Since(c.lastDetachedPoll) < c.detachedPollPeriod {
		return nil
	}
	c.lastDetachedPoll = time.Now()

	if len(c.detachedQueue) == 0 {
		c.detachedQueue = c.detachedAddresses()
	}
	if len(c.detachedQueue) == 0 {
		return nil
	}
	addr := c.detachedQueue[0]
	c.detachedQueue = c.detachedQueue[1:]
	if _, attached := c.devices[addr]; attached {
		return nil
	}

	res, err := c.poll(ctx, addr, coax.PollActionNone)
	switch {
	case err == nil:
	case errors.Is(err, coax.ErrReceiveTimeout):
		return nil
	case isDeviceError(err):
		c.logger.Warn("POLL detached device failed", "address", addr.String(), "err", err)
		return nil
	default:
		return err
	}

	if res.NeedsAck() {
		if err := coax.PollAck(ctx, c.link, addr); err != nil && !isDeviceError(err) {
			return err
		}
	}

	c.handleDeviceFound(ctx, addr, res)
	return nil
}

func (c *Controller) poll(ctx context.Context, addr coax.Address, action coax.PollAction) (coax.PollResponse, error) {
	start := time.Now()
	res, err := coax.Poll(ctx, c.link, addr, action)

	result := observability.PollOK
	switch {
	case errors.Is(err, coax.ErrReceiveTimeout):
		result = observability.PollTimeout
	case err != nil:
		result = observability.PollError
	}
	c.metrics.ObservePoll(result, time.Since(start))
	return res, err
}

// detachedAddresses lists the addresses to probe for new terminals. A direct
// attached terminal means there is no 3299; a terminal on a 3299 port means
// the direct address is the multiplexer itself.
func (c *Controller) detachedAddresses() []coax.Address {
	_, direct := c.devices[coax.DirectAddress]
	multiplexed := false
	for addr := range c.devices {
		if !addr.IsDirect() {
			multiplexed = true
		}
	}

	var candidates []coax.Address
	switch {
	case direct || !c.link.Features().Has(coax.FeatureProtocol3299):
		candidates = []coax.Address{coax.DirectAddress}
	case multiplexed:
		candidates = coax.Ports3299
	default:
		candidates = append([]coax.Address{coax.DirectAddress}, coax.Ports3299...)
	}

	addrs := make([]coax.Address, 0, len(candidates))
	for _, addr := range candidates {
		if _, attached := c.devices[addr]; !attached {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

func (c *Controller) handleDeviceFound(ctx context.Context, addr coax.Address, res coax.PollResponse) {
	c.logger.Info("Found device", "address", addr.String())

	terminal, err := c.newDevice(ctx, c.link, addr, res)
	if err != nil {
		reason := "error"
		if errors.Is(err, domain.ErrUnsupportedDevice) {
			reason = "unsupported"
			c.logger.Error("Unsupported device", "address", addr.String(), "err", err)
		} else {
			c.logger.Error("Failed to identify device", "address", addr.String(), "err", err)
		}
		c.metrics.AttachFailed(reason)
		return
	}

	c.devices[addr] = terminal
	c.metrics.DeviceAttached()
	c.logger.Info("Attached device", "address", addr.String())
}

func (c *Controller) handleDeviceLost(addr coax.Address) {
	c.logger.Info("Lost device", "address", addr.String())

	if entry, ok := c.sessions[addr]; ok {
		switch entry.state {
		case SessionActive:
			c.terminateSession(addr, entry)
		case SessionStarting:
			entry.state = SessionTerminating
			entry.cancel()
		}
	}

	delete(c.devices, addr)
	delete(c.retryAt, addr)
	c.metrics.DeviceDetached()
	c.logger.Info("Detached device", "address", addr.String())
}

func (c *Controller) handlePollResponse(ctx context.Context, terminal *device.Terminal, res coax.PollResponse) {
	if res.Kind == coax.PollKeystroke {
		c.handleKeystroke(ctx, terminal, res.ScanCode)
	}
}

func (c *Controller) handleKeystroke(ctx context.Context, terminal *device.Terminal, scan uint8) {
	c.metrics.Keystroke()

	key, ok := terminal.LookupKey(scan)
	c.logger.Debug("Keystroke detected", "address", terminal.Address.String(), "scan_code", scan, "key", key)
	if !ok {
		return
	}

	switch key {
	case keymap.KeyCursorBlink:
		terminal.ToggleCursorBlink()
	case keymap.KeyAltCursor:
		terminal.ToggleCursorReverse()
	case keymap.KeyClicker:
		terminal.ToggleClicker()
	case keymap.KeyShift:
		terminal.LatchShift()
	default:
		entry, ok := c.sessions[terminal.Address]
		if !ok || entry.state != SessionActive {
			return
		}
		if err := entry.session.HandleKey(ctx, key); err != nil {
			c.logger.Warn("Session rejected key", "address", terminal.Address.String(), "key", key, "err", err)
		}
	}
}

// isDeviceError reports errors a terminal can cause without the bridge link
// being at fault.
func isDeviceError(err error) bool {
	return errors.Is(err, coax.ErrReceiveError) || errors.Is(err, coax.ErrProtocolError)
}
