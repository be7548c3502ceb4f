package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"

	"github.com/aretw0/coaxterm/pkg/codepage"
	"github.com/aretw0/coaxterm/pkg/device"
	"github.com/aretw0/coaxterm/pkg/domain"
	"github.com/aretw0/coaxterm/pkg/keymap"
)

// 3270 attention identifiers.
var aids = map[keymap.Key]byte{
	"ENTER": 0x7d,
	"CLEAR": 0x6d,
	"PA1":   0x6c,
	"PA2":   0x6e,
	"PA3":   0x6b,
	"PF1":   0xf1, "PF2": 0xf2, "PF3": 0xf3, "PF4": 0xf4, "PF5": 0xf5, "PF6": 0xf6,
	"PF7": 0xf7, "PF8": 0xf8, "PF9": 0xf9, "PF10": 0x7a, "PF11": 0x7b, "PF12": 0x7c,
	"PF13": 0xc1, "PF14": 0xc2, "PF15": 0xc3, "PF16": 0xc4, "PF17": 0xc5, "PF18": 0xc6,
	"PF19": 0xc7, "PF20": 0xc8, "PF21": 0xc9, "PF22": 0x4a, "PF23": 0x4b, "PF24": 0x4c,
}

// Short reads carry the AID only.
var shortReadAIDs = map[byte]bool{0x6d: true, 0x6c: true, 0x6e: true, 0x6b: true}

// 3270 orders.
const (
	orderSF  byte = 0x1d
	orderSFE byte = 0x29
	orderSBA byte = 0x11
	orderSA  byte = 0x28
	orderMF  byte = 0x2c
	orderIC  byte = 0x13
	orderPT  byte = 0x05
	orderRA  byte = 0x3c
	orderEUA byte = 0x12
	orderGE  byte = 0x08
)

// Write commands, both the local (CCW) and SNA forms.
var writeCommands = map[byte]bool{
	0x01: true, 0xf1: true, // write
	0x05: true, 0xf5: true, // erase/write
	0x0d: true, 0x7e: true, // erase/write alternate
	0x11: true, 0xf3: true, // write structured field
}

// bufferOrigin is the 12-bit encoded buffer address of row 1, column 1.
var bufferOrigin = []byte{0x40, 0x40}

// TN3270 is a TN3270 session.
type TN3270 struct {
	id       string
	terminal *device.Terminal
	params   TN3270Params
	enc      encoding.Encoding
	logger   *slog.Logger
	dialer   net.Dialer

	mu          sync.Mutex
	conn        *telnetConn
	input       []byte
	cancelStart context.CancelFunc

	done    chan struct{}
	err     error
	errOnce sync.Once
	wg      sync.WaitGroup
	stop    sync.Once
	closing atomic.Bool
}

// NewTN3270 creates a TN3270 session. Nothing is dialed until Start.
func NewTN3270(terminal *device.Terminal, params TN3270Params, enc encoding.Encoding, logger *slog.Logger) *TN3270 {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TN3270{
		id:       uuid.NewString(),
		terminal: terminal,
		params:   params,
		enc:      enc,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (s *TN3270) ID() string {
	return s.id
}

func (s *TN3270) Done() <-chan struct{} {
	return s.done
}

func (s *TN3270) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// terminalType returns the 3278 model name for the attached terminal.
func (s *TN3270) terminalType() string {
	model := s.terminal.TerminalID.Model
	if model == 0 {
		model = 2
	}
	return fmt.Sprintf("IBM-3278-%d", model)
}

// Start connects to the host. When LU names were given they are tried in order;
// an LU the host rejects, or closes the connection on, moves on to the next one.
func (s *TN3270) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		return errors.New("session terminated while starting")
	}
	s.cancelStart = cancel
	s.mu.Unlock()

	lus := s.params.Target.LUNames
	if !s.params.Target.HasLUNames() {
		lus = []string{""}
	}

	var lastErr error
	for _, lu := range lus {
		conn, first, err := s.connect(ctx, lu)
		if err == nil {
			s.logger.Info("Connected to host", "target", s.params.Target.Addr(), "lu", conn.connected, "tn3270e", conn.tn3270e.Load())
			s.mu.Lock()
			if s.closing.Load() {
				s.mu.Unlock()
				conn.Close()
				return errors.New("session terminated while starting")
			}
			s.conn = conn
			s.mu.Unlock()

			s.show(ctx, first)
			s.wg.Add(1)
			go s.readLoop(conn)
			return nil
		}

		var reject *rejectError
		if ctx.Err() != nil || !(errors.As(err, &reject) || errors.Is(err, io.EOF)) {
			return err
		}
		s.logger.Warn("LU rejected", "lu", lu, "err", err)
		lastErr = err
	}

	return fmt.Errorf("%w: no LU accepted by %s: %v", domain.ErrSessionDisconnected, s.params.Target, lastErr)
}

type hostRecord struct {
	dataType byte
	data     []byte
}

// connect dials the host and negotiates until the first record arrives.
func (s *TN3270) connect(ctx context.Context, lu string) (*telnetConn, hostRecord, error) {
	nc, err := s.dialer.DialContext(ctx, "tcp", s.params.Target.Addr())
	if err != nil {
		return nil, hostRecord{}, fmt.Errorf("failed to connect to %s: %w", s.params.Target.Addr(), err)
	}

	conn := newTelnetConn(nc, s.terminalType(), lu, s.params.Profile)
	stop := context.AfterFunc(ctx, func() { nc.Close() })
	defer stop()

	dataType, data, err := conn.readRecord()
	if err != nil {
		nc.Close()
		if ctx.Err() != nil {
			return nil, hostRecord{}, ctx.Err()
		}
		return nil, hostRecord{}, err
	}
	return conn, hostRecord{dataType: dataType, data: data}, nil
}

func (s *TN3270) readLoop(conn *telnetConn) {
	defer s.wg.Done()
	for {
		dataType, data, err := conn.readRecord()
		if err != nil {
			if s.closing.Load() {
				s.finish(nil)
			} else {
				s.finish(fmt.Errorf("%w: %v", domain.ErrSessionDisconnected, err))
			}
			return
		}
		s.show(context.Background(), hostRecord{dataType: dataType, data: data})
	}
}

func (s *TN3270) show(ctx context.Context, rec hostRecord) {
	if rec.dataType != dataType3270 && rec.dataType != dataTypeSSCPLU {
		s.logger.Debug("Ignoring host record", "data_type", rec.dataType, "bytes", len(rec.data))
		return
	}
	text, err := renderRecord(s.enc, rec.data, rec.dataType == dataTypeSSCPLU)
	if err != nil {
		s.logger.Warn("Failed to decode host record", "err", err)
		return
	}
	if err := s.terminal.Show(ctx, text); err != nil {
		s.logger.Warn("Failed to update screen", "err", err)
	}
}

// HandleKey buffers printable keys and sends them with the next AID key.
func (s *TN3270) HandleKey(ctx context.Context, key keymap.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errors.New("session not started")
	}

	if key.IsPrintable() {
		b, err := codepage.Encode(s.enc, string(key))
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		s.input = append(s.input, b...)
		return nil
	}
	if key == "BACKSPACE" {
		if len(s.input) > 0 {
			s.input = s.input[:len(s.input)-1]
		}
		return nil
	}

	aid, ok := aids[key]
	if !ok {
		s.logger.Debug("Ignoring key", "key", key)
		return nil
	}

	record := []byte{aid}
	if !shortReadAIDs[aid] {
		record = append(record, bufferOrigin...)
		if len(s.input) > 0 {
			record = append(record, orderSBA)
			record = append(record, bufferOrigin...)
			record = append(record, s.input...)
		}
	}
	s.input = s.input[:0]

	return s.conn.writeRecord(record)
}

// Terminate closes the host connection and waits for the reader to exit. A
// Start still negotiating with the host is aborted.
func (s *TN3270) Terminate() error {
	var err error
	s.stop.Do(func() {
		s.mu.Lock()
		s.closing.Store(true)
		conn := s.conn
		if s.cancelStart != nil {
			s.cancelStart()
		}
		s.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
		s.wg.Wait()
		s.finish(nil)
	})
	return err
}

func (s *TN3270) finish(err error) {
	s.errOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}

// renderRecord turns a host record into text. Orders are dropped; a buffer
// address order starts a new line.
func renderRecord(enc encoding.Encoding, data []byte, sscp bool) (string, error) {
	if !sscp && len(data) > 0 && writeCommands[data[0]] {
		data = data[1:]
		if len(data) > 0 {
			data = data[1:] // WCC
		}
	}

	var text []byte
	for i := 0; i < len(data); i++ {
		b := data[i]
		if sscp {
			text = append(text, b)
			continue
		}
		switch b {
		case orderSBA, orderEUA:
			i += 2
			if b == orderSBA && len(text) > 0 {
				text = append(text, 0x25) // EBCDIC LF
			}
		case orderSF:
			i++
			text = append(text, 0x40)
		case orderSFE, orderMF:
			if i+1 < len(data) {
				i += 1 + 2*int(data[i+1])
			}
			text = append(text, 0x40)
		case orderSA:
			i += 2
		case orderRA:
			i += 3
		case orderGE:
			i++
		case orderIC, orderPT:
		default:
			text = append(text, b)
		}
	}

	decoded, err := codepage.Decode(enc, text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(decoded, "\x00"), nil
}
