// Package controller runs the coax poll loop.
//
// A Controller owns one bridge link. It probes free addresses for new
// terminals, attaches the ones it can identify, polls attached terminals for
// keystrokes and keeps exactly one host session per attached terminal. When a
// terminal stops answering its session is terminated and the terminal is
// detached; it will be attached again, with a new session, once it answers a
// later probe.
//
// All device and session bookkeeping happens on the goroutine calling Run.
// Session start and terminate run on their own goroutines and report back
// through a channel, so a slow host never stalls polling.
package controller
