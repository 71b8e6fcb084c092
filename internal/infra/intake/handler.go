// Package intake consumes queued notification messages and hands them to the
// dispatch engine. Each driver (Redis list, Kafka topic, NSQ topic) shares one
// Handler so decoding, validation and error classification stay identical.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/usecase/notify"
)

// Driver names accepted in INTAKE_DRIVER.
const (
	DriverRedis = "redis"
	DriverKafka = "kafka"
	DriverNSQ   = "nsq"
)

// Sender is the dispatch entry point.
type Sender interface {
	Send(ctx context.Context, msg *entity.Message) (*notify.DispatchReport, error)
}

// Payload is the queued message shape.
type Payload struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

// Handler decodes and dispatches one payload.
//
// Handle returns nil when the payload is done with: dispatched, malformed
// (logged and dropped) or dispatched with an incomplete history (redelivery
// would notify every channel again). A non-nil error means the message was
// not dispatched and the driver should retry it.
type Handler struct {
	sender  Sender
	driver  string
	timeout time.Duration
}

// NewHandler creates a Handler. timeout bounds one dispatch and keeps it
// running after the consumer context is cancelled.
func NewHandler(sender Sender, driver string, timeout time.Duration) *Handler {
	return &Handler{sender: sender, driver: driver, timeout: timeout}
}

func (h *Handler) Handle(ctx context.Context, body []byte) error {
	start := time.Now()
	defer func() { recordDuration(h.driver, time.Since(start)) }()

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		recordMessage(h.driver, outcomeMalformed)
		slog.WarnContext(ctx, "dropping malformed intake payload",
			slog.String("driver", h.driver),
			slog.Int("bytes", len(body)),
			slog.Any("error", err))
		return nil
	}

	msg := entity.NewMessage(p.Level, p.Title, p.Content, p.Source)

	dctx := context.WithoutCancel(ctx)
	if h.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(dctx, h.timeout)
		defer cancel()
	}

	report, err := h.sender.Send(dctx, msg)
	switch {
	case err == nil:
		recordMessage(h.driver, outcomeDispatched)
		slog.DebugContext(ctx, "intake message dispatched",
			slog.String("driver", h.driver),
			slog.String("message_id", report.MessageID),
			slog.Int("succeeded", report.Succeeded()),
			slog.Int("failed", report.Failed()))
		return nil

	case errors.Is(err, notify.ErrInvalidMessage):
		recordMessage(h.driver, outcomeMalformed)
		slog.WarnContext(ctx, "dropping invalid intake message",
			slog.String("driver", h.driver),
			slog.String("source", p.Source),
			slog.Any("error", err))
		return nil

	case errors.Is(err, notify.ErrHistoryWrite):
		recordMessage(h.driver, outcomeHistoryIncomplete)
		slog.ErrorContext(ctx, "intake message dispatched with incomplete history",
			slog.String("driver", h.driver),
			slog.String("message_id", msg.ID),
			slog.Any("error", err))
		return nil

	default:
		recordMessage(h.driver, outcomeFailed)
		return fmt.Errorf("dispatch intake message: %w", err)
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
