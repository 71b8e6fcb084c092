// Package tracing provides the OpenTelemetry tracer and HTTP middleware.
//
// The dispatch engine opens a "notify.Send" span per message and a
// "notify.deliver" child span per channel. Middleware opens the parent server
// span for API requests. Spans go to whatever provider is installed with
// otel.SetTracerProvider; without one they are no-ops.
package tracing
