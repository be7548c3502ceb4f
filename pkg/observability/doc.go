/*
Package observability provides the Prometheus metrics of the controller.

Metrics owns a private registry holding the coaxterm collectors plus the Go
runtime and process collectors. Every method is safe on a nil *Metrics, which
is what components get when metrics are disabled.
*/
package observability
