// Package coaxterm connects IBM 3270-family display terminals to hosts through
// a serial-to-coax bridge.
//
// The binary lives in cmd/coaxterm. The packages under pkg implement its parts:
//
//   - pkg/address parses [lu[,lu...]@]host[:port] targets.
//   - pkg/codepage resolves EBCDIC code pages.
//   - pkg/coax talks to the bridge and issues coax commands.
//   - pkg/device identifies attached terminals.
//   - pkg/keymap maps keyboard scan codes to keys.
//   - pkg/session runs TN3270 and VT100 host sessions.
//   - pkg/controller polls terminals and supervises their sessions.
//   - pkg/lifecycle starts the controller and stops it on a signal.
package coaxterm
