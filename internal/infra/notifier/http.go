package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	userAgent = "notify-dispatch/1.0"

	// Upper bound for reading a response body; robots answer with a few bytes.
	maxResponseBytes = 64 * 1024

	defaultRetryAfter = 5 * time.Second
)

// request is one outbound HTTP call made by an adapter.
type request struct {
	service string
	method  string
	url     string
	headers map[string]string
	body    []byte
}

// do executes req and returns the response body for a 2xx status.
//
// Error types:
//   - 429: *RateLimitError (temporary, carries Retry-After)
//   - 4xx (non-429): *ClientError
//   - 5xx: *ServerError (temporary)
//   - transport failures are returned wrapped, so net.Error timeouts stay detectable
func do(ctx context.Context, client *http.Client, req request) ([]byte, error) {
	var reader io.Reader
	if req.body != nil {
		reader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, reader)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("User-Agent", userAgent)
	for name, value := range req.headers {
		httpReq.Header.Set(name, value)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	snippet := truncateText(string(body), maxBodyInError, "...")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			Message:    fmt.Sprintf("%s rate limit exceeded", req.service),
			RetryAfter: extractRetryAfter(resp, body),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s client error: status %d: %s", req.service, resp.StatusCode, snippet),
		}
	case resp.StatusCode >= 500:
		return nil, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s server error: status %d: %s", req.service, resp.StatusCode, snippet),
		}
	}
	return nil, fmt.Errorf("%s unexpected status code %d: %s", req.service, resp.StatusCode, snippet)
}

// postJSON marshals payload and POSTs it to url.
func postJSON(ctx context.Context, client *http.Client, service, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", service, err)
	}
	return do(ctx, client, request{service: service, method: http.MethodPost, url: url, body: data})
}

// extractRetryAfter reads retry_after (seconds) from a JSON body first,
// then the Retry-After header, defaulting to 5s.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		return time.Duration(payload.RetryAfter * float64(time.Second))
	}

	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return defaultRetryAfter
}

// robotReply is the {errcode, errmsg} envelope shared by DingTalk and WeChat Work.
type robotReply struct {
	ErrCode *int   `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// checkRobotReply turns a 2xx robot response into an error when it reports a failure.
func checkRobotReply(service string, body []byte) error {
	var reply robotReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return fmt.Errorf("%s returned non-JSON response: %s", service, truncateText(string(body), maxBodyInError, "..."))
	}
	if reply.ErrCode == nil {
		return fmt.Errorf("%s response missing errcode: %s", service, truncateText(string(body), maxBodyInError, "..."))
	}
	if *reply.ErrCode != 0 {
		return &APIError{Service: service, Code: *reply.ErrCode, Message: reply.ErrMsg}
	}
	return nil
}
