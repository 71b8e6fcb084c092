// Package respond writes JSON responses and the {kind, error} error envelope.
// Internal errors are sanitized before they reach the client.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"notify-dispatch/internal/handler/http/requestid"
)

// Error kinds carried in the envelope.
const (
	KindInvalidConfig   = "invalid_config"
	KindDuplicateConfig = "duplicate_config"
	KindNotFound        = "not_found"
	KindInvalidRequest  = "invalid_request"
	KindInternal        = "internal"
)

// ErrorBody is the error envelope.
type ErrorBody struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			// Log the error but cannot send error response as headers already sent
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// Error writes the envelope with err's text as-is. Use it only for errors
// that are safe to show, such as validation failures.
func Error(w http.ResponseWriter, code int, kind string, err error) {
	JSON(w, code, ErrorBody{Kind: kind, Error: err.Error()})
}

// Internal logs err in full and writes a sanitized 500 envelope.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	// 機密情報をマスクしてログ出力
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("request_id", requestid.FromContext(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", SanitizeError(err)))
	JSON(w, http.StatusInternalServerError, ErrorBody{Kind: KindInternal, Error: "internal server error"})
}

// DecodeJSON reads a JSON request body into v. Oversized and malformed
// bodies come back as an error safe to show the client.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body must not exceed %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
