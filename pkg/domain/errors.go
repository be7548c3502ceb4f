package domain

import (
	"errors"
	"fmt"
)

// ErrUnsupportedDevice is returned when an attached terminal is not a CUT terminal.
var ErrUnsupportedDevice = errors.New("unsupported device")

// ErrUnsupportedEmulator is returned when the requested session kind cannot be built,
// either because it is unknown or because this platform does not provide it.
var ErrUnsupportedEmulator = errors.New("unsupported emulator")

// ErrSessionDisconnected is returned by a session once the host side has gone away.
var ErrSessionDisconnected = errors.New("session disconnected")

// ConfigError reports an invalid command-line argument or configuration value.
type ConfigError struct {
	Arg    string // Argument, flag or config key name
	Value  string // Offending value (may be empty)
	Reason string // Human-readable reason for failure
	Err    error  // Underlying cause, if any
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("argument %s: %s", e.Arg, e.Reason)
	}
	return fmt.Sprintf("argument %s: %s: %s", e.Arg, e.Reason, e.Value)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
