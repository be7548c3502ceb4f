// Package lifecycle owns the running controller and stops it on request.
//
// Termination may be requested from any goroutine, typically a signal
// handler, at any point: before the controller exists, while it runs or after
// it returned. The Manager publishes the controller through an atomic handle so
// exactly one Terminate call stops it and a Start racing a Terminate never
// leaves a controller running.
package lifecycle
