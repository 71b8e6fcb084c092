// Package logging configures log/slog for the service.
//
// NewLogger returns a JSON logger on stdout whose level comes from LOG_LEVEL
// (debug, info, warn, error). Records logged with a request context carry the
// request_id set by the HTTP middleware:
//
//	slog.SetDefault(logging.NewLogger())
//	slog.InfoContext(r.Context(), "channel config added")
//
// Redact masks webhook tokens, signatures and credentials in free text so
// adapter errors can be logged and stored as delivery diagnostics.
package logging
