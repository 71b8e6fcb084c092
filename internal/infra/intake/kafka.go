package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"notify-dispatch/internal/resilience/retry"
)

// MessageReader is the subset of *kafka.Reader the Kafka consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a consumer group reader.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewKafkaReader builds a consumer group reader with explicit commits. With
// no committed offset the group starts from the oldest message.
func NewKafkaReader(cfg KafkaConfig) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers cannot be empty")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic cannot be empty")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka group id cannot be empty")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	}), nil
}

// KafkaConsumer reads one message at a time and commits it only after the
// handler is done with it. A message that keeps failing stops the consumer
// uncommitted, so the group redelivers it after a restart.
type KafkaConsumer struct {
	reader     MessageReader
	handler    *Handler
	retry      retry.Config
	fetchDelay time.Duration
}

func NewKafkaConsumer(reader MessageReader, handler *Handler, retryCfg retry.Config) *KafkaConsumer {
	return &KafkaConsumer{reader: reader, handler: handler, retry: retryCfg, fetchDelay: time.Second}
}

// Run consumes until ctx is cancelled or a message exhausts its retries.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "kafka intake started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			slog.Error("failed to close kafka reader", slog.Any("error", err))
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				slog.InfoContext(ctx, "kafka intake stopped")
				return nil
			}
			slog.ErrorContext(ctx, "kafka fetch failed", slog.Any("error", err))
			sleep(ctx, c.fetchDelay)
			continue
		}

		err = retry.WithBackoff(ctx, c.retry, func() error {
			return c.handler.Handle(ctx, msg.Value)
		})
		if err != nil {
			if ctx.Err() != nil {
				slog.InfoContext(ctx, "kafka intake stopped, message left uncommitted",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset))
				return nil
			}
			return fmt.Errorf("kafka message %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}

		if err := c.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
			slog.ErrorContext(ctx, "kafka commit failed",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Any("error", err))
		}
	}
}
