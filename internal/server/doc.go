// Package server provides the optional status and metrics HTTP server of a running sync process.
//
// # Routes
//
//	GET /healthz  liveness, 503 once any worker has halted
//	GET /status   JSON snapshot of every integration worker
//	GET /metrics  Prometheus exposition of the process registry
//
// # Middleware
//
// [Middleware] wraps handlers in the order it is added to the chi router: request ids first,
// then request logging, panic recovery and metrics. The metrics middleware labels requests
// by chi route pattern, so unknown paths collapse into a single "unmatched" series.
//
// The server is read-only. Workers run whether or not it is enabled.
package server
