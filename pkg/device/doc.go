// Package device identifies terminals attached to the bridge and holds the
// per-attach Terminal state.
package device
