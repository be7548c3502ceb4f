/*
Package session builds and runs host sessions for an identified terminal.

Two emulators are provided:

  - tn3270: a TN3270 client. It dials the host, negotiates telnet options (binary,
    end-of-record, terminal type and, depending on the TN3270E profile, TN3270E),
    requests an LU when one was given and decodes host records with the selected
    EBCDIC code page.
  - vt100: a host process started on a pseudo-terminal. Its output is forwarded to
    the terminal screen and keys are written back as bytes. It is only available
    where Capabilities.CharacterStream is set.

Factory picks the emulator. It refuses unavailable emulators before constructing
anything.
*/
package session
