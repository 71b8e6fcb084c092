package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"
)

// NSQConfig configures an NSQ consumer. At least one nsqd or lookupd address
// is required.
type NSQConfig struct {
	Topic            string
	Channel          string
	NSQDAddresses    []string
	LookupdAddresses []string
	MaxInFlight      int
	MaxAttempts      uint16
	Concurrency      int
}

func (c NSQConfig) validate() error {
	if c.Topic == "" {
		return errors.New("nsq topic is required")
	}
	if c.Channel == "" {
		return errors.New("nsq channel is required")
	}
	if len(c.NSQDAddresses) == 0 && len(c.LookupdAddresses) == 0 {
		return errors.New("no nsqd address or lookupd configured")
	}
	return nil
}

// NSQConsumer hands NSQ messages to the Handler. A returned error makes NSQ
// requeue the message with its own backoff until MaxAttempts is reached.
type NSQConsumer struct {
	cfg      NSQConfig
	consumer *nsq.Consumer
	handler  *Handler
	ctx      context.Context
}

func NewNSQConsumer(cfg NSQConfig, handler *Handler) (*NSQConsumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	nsqCfg := nsq.NewConfig()
	if cfg.MaxInFlight > 0 {
		nsqCfg.MaxInFlight = cfg.MaxInFlight
	}
	if cfg.MaxAttempts > 0 {
		nsqCfg.MaxAttempts = cfg.MaxAttempts
	}
	nsqCfg.UserAgent = "notify-dispatch"

	consumer, err := nsq.NewConsumer(cfg.Topic, cfg.Channel, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("create nsq consumer: %w", err)
	}
	consumer.SetLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn), nsq.LogLevelWarning)

	return &NSQConsumer{cfg: cfg, consumer: consumer, handler: handler, ctx: context.Background()}, nil
}

// HandleMessage implements nsq.Handler.
func (c *NSQConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		recordMessage(DriverNSQ, outcomeMalformed)
		return nil
	}
	if err := c.handler.Handle(c.ctx, m.Body); err != nil {
		recordMessage(DriverNSQ, outcomeRequeued)
		slog.WarnContext(c.ctx, "intake dispatch failed, requeueing",
			slog.String("topic", c.cfg.Topic),
			slog.Int("attempts", int(m.Attempts)),
			slog.Any("error", err))
		return err
	}
	return nil
}

// LogFailedMessage implements nsq.FailedMessageLogger. NSQ finishes the
// message after this call.
func (c *NSQConsumer) LogFailedMessage(m *nsq.Message) {
	recordMessage(DriverNSQ, outcomeDropped)
	slog.ErrorContext(c.ctx, "intake message exceeded max attempts, dropping",
		slog.String("topic", c.cfg.Topic),
		slog.Int("attempts", int(m.Attempts)))
}

// Run connects and consumes until ctx is cancelled, then stops the consumer
// and waits for in-flight messages.
func (c *NSQConsumer) Run(ctx context.Context) error {
	c.ctx = ctx

	concurrency := c.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	c.consumer.AddConcurrentHandlers(c, concurrency)

	if len(c.cfg.NSQDAddresses) > 0 {
		if err := c.consumer.ConnectToNSQDs(c.cfg.NSQDAddresses); err != nil {
			return fmt.Errorf("connect to nsqd: %w", err)
		}
	}
	if len(c.cfg.LookupdAddresses) > 0 {
		if err := c.consumer.ConnectToNSQLookupds(c.cfg.LookupdAddresses); err != nil {
			return fmt.Errorf("connect to nsqlookupd: %w", err)
		}
	}
	slog.InfoContext(ctx, "nsq intake started",
		slog.String("topic", c.cfg.Topic),
		slog.String("channel", c.cfg.Channel))

	select {
	case <-ctx.Done():
		c.consumer.Stop()
		<-c.consumer.StopChan
	case <-c.consumer.StopChan:
	}
	slog.Info("nsq intake stopped", slog.String("topic", c.cfg.Topic))
	return nil
}
