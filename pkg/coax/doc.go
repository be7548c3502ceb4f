/*
Package coax talks to a serial-to-coax bridge.

The bridge accepts length-prefixed frames over a serial line. Each request frame starts
with an opcode; EXECUTE forwards a single coax command to a terminal (directly attached or
behind a 3299 multiplexer port) and returns the terminal's response. Open resets the
bridge and records the feature set it advertises.

Higher level queries used while attaching a terminal (terminal id, extended id, feature
ids, POLL) are provided as functions over the Link interface so they can be exercised
against a fake link in tests.
*/
package coax
