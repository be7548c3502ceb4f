package session

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/aretw0/coaxterm/pkg/domain"
	"github.com/aretw0/coaxterm/pkg/keymap"
)

// Kind selects the emulator.
type Kind string

const (
	KindTN3270 Kind = "tn3270"
	KindVT100  Kind = "vt100"
)

// ParseKind validates an emulator name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindTN3270, KindVT100:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedEmulator, s)
	}
}

// Session is a host session driving one terminal.
type Session interface {
	// ID returns a unique session id.
	ID() string

	// Start connects to the host. It returns once the session is running; host
	// output is then delivered to the terminal screen in the background.
	Start(ctx context.Context) error

	// HandleKey forwards a key pressed on the terminal.
	HandleKey(ctx context.Context, key keymap.Key) error

	// Done is closed when the host side has gone away or Terminate was called.
	Done() <-chan struct{}

	// Err returns domain.ErrSessionDisconnected (possibly wrapped) once Done is
	// closed because the host went away, nil otherwise.
	Err() error

	// Terminate closes the session. It is safe to call more than once.
	Terminate() error
}

// Capabilities are platform features that decide which emulators are available.
type Capabilities struct {
	// CharacterStream is set when host processes can be run on a pseudo-terminal.
	CharacterStream bool
}

// DetectCapabilities resolves the capabilities of the running platform.
func DetectCapabilities() Capabilities {
	return Capabilities{
		CharacterStream: runtime.GOOS != "windows",
	}
}
