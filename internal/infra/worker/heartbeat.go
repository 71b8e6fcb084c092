package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/infra/intake"
	"notify-dispatch/internal/usecase/notify"
)

const (
	HeartbeatTitle  = "heartbeat"
	HeartbeatSource = "notify-worker"
)

// Heartbeat is a cron job dispatching an info message through every enabled
// channel. A channel that stops receiving it signals a dead dispatcher.
type Heartbeat struct {
	sender  intake.Sender
	metrics *WorkerMetrics
	timeout time.Duration
}

func NewHeartbeat(sender intake.Sender, metrics *WorkerMetrics, timeout time.Duration) *Heartbeat {
	return &Heartbeat{sender: sender, metrics: metrics, timeout: timeout}
}

// Run implements cron.Job.
func (h *Heartbeat) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	now := time.Now().UTC()
	msg := entity.NewMessage(entity.LevelInfo, HeartbeatTitle,
		fmt.Sprintf("notify-dispatch worker is alive (%s)", now.Format(time.RFC3339)), HeartbeatSource)

	report, err := h.sender.Send(ctx, msg)
	if err != nil && !errors.Is(err, notify.ErrHistoryWrite) {
		h.metrics.RecordHeartbeat("failure")
		slog.Error("heartbeat dispatch failed", slog.Any("error", err))
		return
	}

	h.metrics.RecordHeartbeat("success")
	if report.Succeeded() > 0 {
		h.metrics.RecordHeartbeatSuccess()
	}
	slog.Info("heartbeat dispatched",
		slog.String("message_id", report.MessageID),
		slog.Int("succeeded", report.Succeeded()),
		slog.Int("failed", report.Failed()))
}

// ScheduleHeartbeat returns a stopped scheduler running h on schedule. A run
// still in progress when the next one is due is skipped.
func ScheduleHeartbeat(schedule cron.Schedule, h *Heartbeat) *cron.Cron {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn))
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	c.Schedule(schedule, h)
	return c
}
