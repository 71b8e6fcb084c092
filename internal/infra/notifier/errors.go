package notifier

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// maxBodyInError bounds how much of a response body ends up in a diagnostic.
const maxBodyInError = 200

// ErrSettingsMismatch is returned when an adapter receives a config of another channel type.
var ErrSettingsMismatch = errors.New("channel settings do not match adapter type")

// RateLimitError represents a 429 rate limit error from a webhook service.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string // Optional custom message
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// Temporary marks rate limits as worth retrying.
func (e *RateLimitError) Temporary() bool { return true }

// RetryDelay is the wait the server asked for before the next request.
func (e *RateLimitError) RetryDelay() time.Duration { return e.RetryAfter }

// ClientError represents a 4xx client error from a webhook service.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx server error from a webhook service.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// Temporary marks server errors as worth retrying.
func (e *ServerError) Temporary() bool { return true }

// APIError is a 2xx response whose body reports a failure code,
// as the DingTalk, WeChat Work and Feishu robots do.
type APIError struct {
	Service string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error code %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s API error code %d: %s", e.Service, e.Code, e.Message)
}

// IsRateLimited reports whether err carries a rate limit response.
func IsRateLimited(err error) (*RateLimitError, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr, true
	}
	return nil, false
}

// truncateText truncates text to maxLength bytes.
// If truncated, appends suffix to indicate continuation.
func truncateText(text string, maxLength int, suffix string) string {
	if len(text) <= maxLength {
		return text
	}

	truncateAt := maxLength - len(suffix)
	if truncateAt < 0 {
		truncateAt = 0
	}

	return strings.ToValidUTF8(text[:truncateAt], "") + suffix
}
