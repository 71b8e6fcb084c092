package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics tracks heartbeat runs and worker liveness.
type WorkerMetrics struct {
	// HeartbeatRunsTotal counts heartbeat dispatches by status (success/failure).
	HeartbeatRunsTotal *prometheus.CounterVec

	// HeartbeatLastSuccessTimestamp is the Unix time of the last heartbeat
	// that reached at least one channel.
	HeartbeatLastSuccessTimestamp prometheus.Gauge

	// IntakeRunning is 1 while a queue consumer is running.
	IntakeRunning *prometheus.GaugeVec
}

// NewWorkerMetrics registers the worker metrics with reg. Tests pass a fresh
// prometheus.NewRegistry.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	f := promauto.With(reg)
	return &WorkerMetrics{
		HeartbeatRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_worker_heartbeat_runs_total",
			Help: "Total number of heartbeat dispatches by status",
		}, []string{"status"}),

		HeartbeatLastSuccessTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "notify_worker_heartbeat_last_success_timestamp",
			Help: "Unix timestamp of the last heartbeat delivered to at least one channel",
		}),

		IntakeRunning: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "notify_worker_intake_running",
			Help: "Whether the queue consumer is running (1) or stopped (0)",
		}, []string{"driver"}),
	}
}

func (m *WorkerMetrics) RecordHeartbeat(status string) {
	m.HeartbeatRunsTotal.WithLabelValues(status).Inc()
}

func (m *WorkerMetrics) RecordHeartbeatSuccess() {
	m.HeartbeatLastSuccessTimestamp.SetToCurrentTime()
}

func (m *WorkerMetrics) SetIntakeRunning(driver string, running bool) {
	v := 0.0
	if running {
		v = 1
	}
	m.IntakeRunning.WithLabelValues(driver).Set(v)
}
