package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the dispatch engine.
var (
	// messagesTotal counts Send calls by outcome.
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_messages_total",
			Help: "Total number of messages submitted for dispatch",
		},
		[]string{"outcome"}, // outcome: dispatched|invalid|store_error|no_channels
	)

	// deliveriesTotal counts per-channel results.
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_deliveries_total",
			Help: "Total number of per-channel delivery results",
		},
		[]string{"type", "status"}, // status: success|failed
	)

	// deliveryDuration tracks the time from first attempt to final result.
	deliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_delivery_duration_seconds",
			Help:    "Per-channel delivery duration in seconds, retries included",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"type"},
	)

	// deliveryAttempts tracks how many tries a delivery needed.
	deliveryAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_delivery_attempts",
			Help:    "Number of attempts per channel delivery",
			Buckets: []float64{1, 2, 3, 5, 10},
		},
		[]string{"type"},
	)

	// circuitBreakerOpenTotal tracks circuit breaker open transitions.
	circuitBreakerOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_circuit_breaker_open_total",
			Help: "Total number of circuit breaker open events",
		},
		[]string{"type"},
	)

	// historyWriteFailures counts results that could not be recorded.
	historyWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_history_write_failures_total",
			Help: "Total number of delivery results that failed to be recorded",
		},
	)

	// activeDeliveries tracks deliveries currently in flight.
	activeDeliveries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_active_deliveries",
			Help: "Number of channel deliveries currently in flight",
		},
	)

	// channelsEnabled tracks the number of enabled channels seen by the last Send.
	channelsEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_channels_enabled",
			Help: "Number of enabled notification channels",
		},
	)
)

// RecordMessage records the outcome of one Send call.
func RecordMessage(outcome string) {
	messagesTotal.WithLabelValues(outcome).Inc()
}

// RecordDelivery records one per-channel result.
func RecordDelivery(channelType string, succeeded bool, attempts int, duration time.Duration) {
	status := "failed"
	if succeeded {
		status = "success"
	}
	deliveriesTotal.WithLabelValues(channelType, status).Inc()
	deliveryDuration.WithLabelValues(channelType).Observe(duration.Seconds())
	deliveryAttempts.WithLabelValues(channelType).Observe(float64(attempts))
}

// RecordCircuitBreakerOpen records a circuit breaker open event.
func RecordCircuitBreakerOpen(channelType string) {
	circuitBreakerOpenTotal.WithLabelValues(channelType).Inc()
}

// RecordHistoryWriteFailure records a result that was not stored.
func RecordHistoryWriteFailure() {
	historyWriteFailures.Inc()
}

// SetChannelsEnabled sets the number of enabled notification channels.
func SetChannelsEnabled(count float64) {
	channelsEnabled.Set(count)
}
