package intake

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeDispatched        = "dispatched"
	outcomeMalformed         = "malformed"
	outcomeHistoryIncomplete = "history_incomplete"
	outcomeFailed            = "failed"
	outcomeRequeued          = "requeued"
	outcomeDropped           = "dropped"
)

var (
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_intake_messages_total",
			Help: "Total number of queued messages handled by outcome",
		},
		[]string{"driver", "outcome"},
	)

	handleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_intake_handle_duration_seconds",
			Help:    "Time spent decoding and dispatching one queued message",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"driver"},
	)
)

func recordMessage(driver, outcome string) {
	messagesTotal.WithLabelValues(driver, outcome).Inc()
}

func recordDuration(driver string, d time.Duration) {
	handleDuration.WithLabelValues(driver).Observe(d.Seconds())
}
