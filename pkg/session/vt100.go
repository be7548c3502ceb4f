package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/aretw0/coaxterm/pkg/device"
	"github.com/aretw0/coaxterm/pkg/domain"
	"github.com/aretw0/coaxterm/pkg/keymap"
)

// Screen size reported to the host process.
const (
	vt100Rows = 24
	vt100Cols = 80
)

// Byte sequences for non-printable keys.
var vt100Keys = map[keymap.Key]string{
	"ENTER":     "\r",
	"NEWLINE":   "\r",
	"TAB":       "\t",
	"BACKTAB":   "\x1b[Z",
	"BACKSPACE": "\x7f",
	"DELETE":    "\x1b[3~",
	"CLEAR":     "\x0c",
	"RESET":     "\x1b",
	"UP":        "\x1b[A",
	"DOWN":      "\x1b[B",
	"RIGHT":     "\x1b[C",
	"LEFT":      "\x1b[D",
	"HOME":      "\x1b[H",
	"PF1":       "\x1bOP",
	"PF2":       "\x1bOQ",
	"PF3":       "\x1bOR",
	"PF4":       "\x1bOS",
}

// VT100 runs a host process on a pseudo-terminal.
type VT100 struct {
	id       string
	terminal *device.Terminal
	params   VT100Params
	logger   *slog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	ptmx io.ReadWriteCloser

	done    chan struct{}
	err     error
	errOnce sync.Once
	wg      sync.WaitGroup
	stop    sync.Once
	closing atomic.Bool
}

// NewVT100 creates a VT100 session. The host process is started by Start.
func NewVT100(terminal *device.Terminal, params VT100Params, logger *slog.Logger) *VT100 {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &VT100{
		id:       uuid.NewString(),
		terminal: terminal,
		params:   params,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func newVT100Session(terminal *device.Terminal, params VT100Params, logger *slog.Logger) (Session, error) {
	if params.Command == "" {
		return nil, &domain.ConfigError{Arg: "command", Reason: "host command is required"}
	}
	return NewVT100(terminal, params, logger), nil
}

func (s *VT100) ID() string {
	return s.id
}

func (s *VT100) Done() <-chan struct{} {
	return s.done
}

func (s *VT100) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Start launches the host process.
func (s *VT100) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(s.params.Command, s.params.Args...)
	cmd.Env = append(os.Environ(), "TERM=vt100")

	ptmx, err := startPTY(cmd, vt100Cols, vt100Rows)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", s.params.Command, err)
	}

	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		ptmx.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return errors.New("session terminated while starting")
	}
	s.cmd, s.ptmx = cmd, ptmx
	s.mu.Unlock()

	s.logger.Info("Host process started", "command", s.params.Command, "pid", cmd.Process.Pid)

	s.wg.Add(1)
	go s.readLoop(ptmx, cmd)
	return nil
}

func (s *VT100) readLoop(ptmx io.Reader, cmd *exec.Cmd) {
	defer s.wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			if serr := s.terminal.Show(context.Background(), string(buf[:n])); serr != nil {
				s.logger.Warn("Failed to update screen", "err", serr)
			}
		}
		if err != nil {
			werr := cmd.Wait()
			if s.closing.Load() {
				s.finish(nil)
			} else {
				s.logger.Info("Host process exited", "err", werr)
				s.finish(fmt.Errorf("%w: host process exited", domain.ErrSessionDisconnected))
			}
			return
		}
	}
}

// HandleKey writes the key to the host process.
func (s *VT100) HandleKey(ctx context.Context, key keymap.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ptmx == nil {
		return errors.New("session not started")
	}

	seq := string(key)
	if !key.IsPrintable() {
		var ok bool
		if seq, ok = vt100Keys[key]; !ok {
			s.logger.Debug("Ignoring key", "key", key)
			return nil
		}
	}
	if _, err := io.WriteString(s.ptmx, seq); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

// Terminate closes the pseudo-terminal, kills the host process and waits for it.
func (s *VT100) Terminate() error {
	var err error
	s.stop.Do(func() {
		s.mu.Lock()
		s.closing.Store(true)
		ptmx, cmd := s.ptmx, s.cmd
		s.mu.Unlock()

		if ptmx != nil {
			err = ptmx.Close()
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		}
		s.wg.Wait()
		s.finish(nil)
	})
	return err
}

func (s *VT100) finish(err error) {
	s.errOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}
