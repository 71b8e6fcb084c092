package pagination

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts history page requests by status code and page bucket.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_history_page_requests_total",
			Help: "Total number of history page requests",
		},
		[]string{"status", "page_range"},
	)

	// DurationSeconds tracks history listing duration by layer.
	DurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_history_page_duration_seconds",
			Help:    "History listing duration distribution",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0},
		},
		[]string{"operation"},
	)

	// TotalCount is the number of stored history records seen on the last count.
	TotalCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_history_records",
			Help: "Current number of stored history records",
		},
	)
)

// RecordRequest records a page request metric.
func RecordRequest(statusCode int, page int) {
	RequestsTotal.WithLabelValues(strconv.Itoa(statusCode), getPageRangeBucket(page)).Inc()
}

// RecordDuration records operation duration in seconds.
func RecordDuration(operation string, duration float64) {
	DurationSeconds.WithLabelValues(operation).Observe(duration)
}

// UpdateTotalCount updates the record count gauge.
func UpdateTotalCount(count int64) {
	TotalCount.Set(float64(count))
}

func getPageRangeBucket(page int) string {
	switch {
	case page <= 10:
		return "1-10"
	case page <= 50:
		return "11-50"
	case page <= 100:
		return "51-100"
	default:
		return "100+"
	}
}
