/*
Package domain contains the core types shared by the terminal controller.

It describes what is read from an attached terminal (TerminalID, ExtendedID,
Features), the resolved host address of a TN3270 session (HostTarget) and the error
categories the bootstrap sequence reports. The package has no I/O and no
dependencies outside the standard library.

# Error Categories

  - ConfigError: an invalid flag, argument or config value. Reported before any
    link is opened.
  - ErrUnsupportedDevice: the attached terminal is not a CUT terminal.
  - ErrUnsupportedEmulator: the requested session kind cannot be built here.
  - ErrSessionDisconnected: the host side of a session has gone away.
*/
package domain
