package device

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/coaxterm/pkg/coax"
	"github.com/aretw0/coaxterm/pkg/domain"
	"github.com/aretw0/coaxterm/pkg/keymap"
)

// Screen receives decoded host output for a terminal. Drawing on the coax
// display itself is left to an implementation of this interface; BufferScreen
// only records the latest frame.
type Screen interface {
	Show(ctx context.Context, text string) error
}

// Terminal is an identified CUT terminal. It is owned by the controller for one
// attach cycle.
type Terminal struct {
	Link       coax.Link
	Address    coax.Address
	TerminalID domain.TerminalID
	ExtendedID domain.ExtendedID
	Features   domain.Features
	Keymap     *keymap.Keymap
	Screen     Screen

	mu            sync.Mutex
	clicker       bool
	pending       coax.PollAction
	cursorBlink   bool
	cursorReverse bool
	shift         bool
}

// LookupKey maps a scan code through the keymap. A latched shift applies to this
// key only.
func (t *Terminal) LookupKey(scan uint8) (keymap.Key, bool) {
	t.mu.Lock()
	shift := t.shift
	t.shift = false
	t.mu.Unlock()
	return t.Keymap.Lookup(scan, shift)
}

// LatchShift shifts the next key.
func (t *Terminal) LatchShift() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shift = true
}

// Show forwards host output to the terminal screen.
func (t *Terminal) Show(ctx context.Context, text string) error {
	return t.Screen.Show(ctx, text)
}

// ToggleClicker flips the keyboard clicker and queues the matching POLL action.
func (t *Terminal) ToggleClicker() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clicker = !t.clicker
	if t.clicker {
		t.pending = coax.PollActionEnableClicker
	} else {
		t.pending = coax.PollActionDisableClicker
	}
	return t.clicker
}

// Alarm queues a POLL that sounds the terminal alarm.
func (t *Terminal) Alarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = coax.PollActionAlarm
}

// PollAction returns the action to send with the next POLL and clears it.
func (t *Terminal) PollAction() coax.PollAction {
	t.mu.Lock()
	defer t.mu.Unlock()
	action := t.pending
	t.pending = coax.PollActionNone
	return action
}

// ToggleCursorBlink flips cursor blinking.
func (t *Terminal) ToggleCursorBlink() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursorBlink = !t.cursorBlink
	return t.cursorBlink
}

// ToggleCursorReverse flips between the underline and reverse cursor.
func (t *Terminal) ToggleCursorReverse() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursorReverse = !t.cursorReverse
	return t.cursorReverse
}

// BufferScreen keeps the last frame shown and logs each update at debug level.
type BufferScreen struct {
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

// NewBufferScreen creates a BufferScreen.
func NewBufferScreen(logger *slog.Logger) *BufferScreen {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BufferScreen{logger: logger}
}

// Show implements Screen.
func (s *BufferScreen) Show(ctx context.Context, text string) error {
	s.mu.Lock()
	s.last = text
	s.mu.Unlock()
	s.logger.Debug("Screen updated", "bytes", len(text))
	return nil
}

// Contents returns the last frame shown.
func (s *BufferScreen) Contents() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
