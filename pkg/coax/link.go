package coax

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Bridge errors reported for a single EXECUTE.
var (
	ErrReceiveTimeout = errors.New("receive timeout")
	ErrReceiveError   = errors.New("receive error")
	ErrProtocolError  = errors.New("protocol error")
)

// ErrReadTimeout is returned when the bridge itself does not answer.
var ErrReadTimeout = errors.New("bridge read timeout")

const (
	opReset   byte = 0x01
	opExecute byte = 0x06

	statusOK    byte = 0x01
	statusError byte = 0x02

	errCodeReceiveTimeout byte = 0x01
	errCodeReceiveError   byte = 0x02
	errCodeProtocolError  byte = 0x03

	maxFrameLength = 1024
)

// Features is the bridge feature bitmask returned by a reset.
type Features uint8

const (
	// FeatureProtocol3299 means the bridge can address 3299 multiplexer ports.
	FeatureProtocol3299 Features = 1 << iota
)

// Has reports whether every bit of f2 is set.
func (f Features) Has(f2 Features) bool {
	return f&f2 == f2
}

// Link executes coax commands against a terminal address.
type Link interface {
	Execute(ctx context.Context, addr Address, cmd Command) ([]byte, error)
	Features() Features
	Name() string
}

// Option configures a SerialLink.
type Option func(*options)

type options struct {
	baudRate       int
	receiveTimeout time.Duration
	logger         *slog.Logger
}

// WithBaudRate sets the serial line speed.
func WithBaudRate(baud int) Option {
	return func(o *options) {
		o.baudRate = baud
	}
}

// WithReceiveTimeout sets how long the bridge waits for a terminal response.
func WithReceiveTimeout(d time.Duration) Option {
	return func(o *options) {
		o.receiveTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

const (
	DefaultBaudRate       = 115200
	DefaultReceiveTimeout = 100 * time.Millisecond

	// bridgeMargin is added to the receive timeout to bound frame reads.
	bridgeMargin = 500 * time.Millisecond
)

func newOptions(opts []Option) options {
	o := options{
		baudRate:       DefaultBaudRate,
		receiveTimeout: DefaultReceiveTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// SerialLink is a Link over a byte stream to the bridge.
type SerialLink struct {
	name     string
	conn     io.ReadWriteCloser
	opts     options
	features Features
	version  string

	mu     sync.Mutex
	closed bool
}

// Open opens the named serial port and resets the bridge.
func Open(ctx context.Context, name string, opts ...Option) (*SerialLink, error) {
	o := newOptions(opts)

	port, err := serial.Open(name, &serial.Mode{BaudRate: o.baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(o.receiveTimeout + bridgeMargin); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to configure serial port %s: %w", name, err)
	}

	link, err := NewLink(ctx, name, port, opts...)
	if err != nil {
		port.Close()
		return nil, err
	}
	return link, nil
}

// NewLink wraps an already open connection and resets the bridge.
func NewLink(ctx context.Context, name string, conn io.ReadWriteCloser, opts ...Option) (*SerialLink, error) {
	l := &SerialLink{
		name: name,
		conn: conn,
		opts: newOptions(opts),
	}
	if err := l.reset(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset bridge on %s: %w", name, err)
	}

	l.opts.logger.Info("Bridge ready", "interface", name, "version", l.version, "features", l.features)
	return l, nil
}

// Name returns the interface name the link was opened with.
func (l *SerialLink) Name() string {
	return l.name
}

// Features returns the features advertised by the bridge on reset.
func (l *SerialLink) Features() Features {
	return l.features
}

// Version returns the bridge firmware version.
func (l *SerialLink) Version() string {
	return l.version
}

// Close releases the underlying connection. It is safe to call more than once.
func (l *SerialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.conn.Close()
}

func (l *SerialLink) reset(ctx context.Context) error {
	res, err := l.transact(ctx, []byte{opReset})
	if err != nil {
		return err
	}
	if len(res) < 4 {
		return fmt.Errorf("%w: short reset response", ErrProtocolError)
	}
	l.version = fmt.Sprintf("%d.%d.%d", res[0], res[1], res[2])
	l.features = Features(res[3])
	return nil
}

// Execute sends cmd to the terminal at addr and returns its response data.
func (l *SerialLink) Execute(ctx context.Context, addr Address, cmd Command) ([]byte, error) {
	timeout := uint16(l.opts.receiveTimeout / time.Millisecond)

	req := make([]byte, 0, 5+len(cmd.Data))
	req = append(req, opExecute, addr.wire())
	req = binary.BigEndian.AppendUint16(req, timeout)
	req = append(req, cmd.Code)
	req = append(req, cmd.Data...)

	return l.transact(ctx, req)
}

func (l *SerialLink) transact(ctx context.Context, req []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, io.ErrClosedPipe
	}

	if err := writeFrame(l.conn, req); err != nil {
		return nil, err
	}
	if d, ok := l.conn.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = d.SetReadDeadline(time.Now().Add(l.opts.receiveTimeout + bridgeMargin))
	}
	res, err := readFrame(l.conn)
	if err != nil {
		return nil, err
	}
	return decodeResponse(res)
}

func decodeResponse(res []byte) ([]byte, error) {
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrProtocolError)
	}
	switch res[0] {
	case statusOK:
		return res[1:], nil
	case statusError:
		if len(res) < 2 {
			return nil, fmt.Errorf("%w: missing error code", ErrProtocolError)
		}
		var sentinel error
		switch res[1] {
		case errCodeReceiveTimeout:
			sentinel = ErrReceiveTimeout
		case errCodeReceiveError:
			sentinel = ErrReceiveError
		case errCodeProtocolError:
			sentinel = ErrProtocolError
		default:
			return nil, fmt.Errorf("%w: unknown error code 0x%02x", ErrProtocolError, res[1])
		}
		if msg := string(res[2:]); msg != "" {
			return nil, fmt.Errorf("%w: %s", sentinel, msg)
		}
		return nil, sentinel
	default:
		return nil, fmt.Errorf("%w: unknown status 0x%02x", ErrProtocolError, res[0])
	}
}

func writeFrame(w io.Writer, payload []byte) error {
	frame := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(payload)), uint16(len(payload)))
	frame = append(frame, payload...)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	r = timeoutReader{r}

	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}
	n := binary.BigEndian.Uint16(header[:])
	if n > maxFrameLength {
		return nil, fmt.Errorf("%w: frame length %d", ErrProtocolError, n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return payload, nil
}

// timeoutReader turns the (0, nil) read a serial port returns on timeout into
// an error so io.ReadFull does not spin.
type timeoutReader struct {
	r io.Reader
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, ErrReadTimeout
	}
	return n, err
}
