// Package observability groups the logging, metrics and tracing setup shared
// by the API server and the worker.
//
// Subpackages:
//   - logging: JSON slog handler with request ID propagation and secret redaction
//   - metrics: build info and database pool metrics
//   - tracing: OpenTelemetry provider, tracer and HTTP middleware
package observability
