package notifier

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// adapterRequestsTotal counts outbound deliveries by channel type and outcome.
	adapterRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_adapter_requests_total",
			Help: "Total number of outbound delivery requests made by channel adapters",
		},
		[]string{"type", "outcome"}, // outcome: success|client_error|server_error|rate_limited|api_error|error
	)

	// adapterRequestDuration tracks the latency of a single outbound request.
	adapterRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_adapter_request_duration_seconds",
			Help:    "Outbound delivery request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	// rateLimitWaitSeconds tracks time spent waiting for the client-side limiter.
	rateLimitWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_adapter_rate_limit_wait_seconds",
			Help:    "Time spent waiting for client-side rate limits in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"type"},
	)
)

func recordRateLimitWait(channelType string, d time.Duration) {
	rateLimitWaitSeconds.WithLabelValues(channelType).Observe(d.Seconds())
}

// observe records the outcome of one adapter call.
func observe(channelType string, start time.Time, err error) {
	adapterRequestDuration.WithLabelValues(channelType).Observe(time.Since(start).Seconds())
	adapterRequestsTotal.WithLabelValues(channelType, outcome(err)).Inc()
}

func outcome(err error) string {
	var (
		clientErr *ClientError
		serverErr *ServerError
		rateErr   *RateLimitError
		apiErr    *APIError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &rateErr):
		return "rate_limited"
	case errors.As(err, &clientErr):
		return "client_error"
	case errors.As(err, &serverErr):
		return "server_error"
	case errors.As(err, &apiErr):
		return "api_error"
	default:
		return "error"
	}
}
