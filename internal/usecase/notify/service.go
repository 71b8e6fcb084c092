package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"reflect"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/observability/logging"
	"notify-dispatch/internal/observability/tracing"
	"notify-dispatch/internal/resilience/circuitbreaker"
	"notify-dispatch/internal/resilience/retry"
)

// DiagnosticCircuitOpen is the diagnostic of a delivery skipped by an open breaker.
const DiagnosticCircuitOpen = "circuit breaker open"

// Diagnostics longer than this are cut before being stored.
const maxDiagnosticLength = 512

var (
	// errAttemptTimeout marks an adapter call that outlived AttemptTimeout.
	errAttemptTimeout = errors.New("delivery attempt timed out")

	// errDispatchAborted marks an adapter call interrupted by the caller's context.
	errDispatchAborted = errors.New("dispatch aborted")
)

// ChannelLister is the read side of the channel store.
type ChannelLister interface {
	List(ctx context.Context) ([]*entity.ChannelConfig, error)
}

// HistoryWriter records delivery results.
type HistoryWriter interface {
	Append(ctx context.Context, msg *entity.Message, results ...entity.DeliveryResult) error
}

// DispatchReport is the outcome of one Send, one result per enabled channel
// in the order of the store snapshot.
type DispatchReport struct {
	MessageID string
	Results   []entity.DeliveryResult
}

// Succeeded returns the number of successful deliveries.
func (r *DispatchReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed deliveries.
func (r *DispatchReport) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Option customizes a Service.
type Option func(*Service)

// WithBreakerConfig replaces the per-channel circuit breaker settings.
func WithBreakerConfig(fn func(name string) circuitbreaker.Config) Option {
	return func(s *Service) { s.breakerConfig = fn }
}

// WithRetryConfig replaces the per-channel retry backoff. MaxAttempts is
// always taken from Config.
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Service) { s.retry = cfg }
}

// WithClock replaces the clock used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the dispatch engine.
type Service struct {
	store    ChannelLister
	history  HistoryWriter
	registry *Registry
	cfg      Config

	retry         retry.Config
	breakerConfig func(name string) circuitbreaker.Config
	now           func() time.Time

	breakersMu sync.Mutex
	breakers   map[entity.ChannelKey]*channelBreaker
}

// NewService creates a dispatch engine. cfg is expected to be validated.
func NewService(store ChannelLister, history HistoryWriter, registry *Registry, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:         store,
		history:       history,
		registry:      registry,
		cfg:           cfg,
		retry:         retry.DeliveryConfig(),
		breakerConfig: circuitbreaker.ChannelConfig,
		now:           time.Now,
		breakers:      make(map[entity.ChannelKey]*channelBreaker),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retry.MaxAttempts = cfg.MaxAttempts
	s.retry.Retryable = isRetryableDelivery
	return s
}

// Send delivers msg to every enabled channel and waits for all of them.
//
// A store failure or an invalid message fails the whole call. Channel
// failures never do; they are reported per channel in the returned report.
// If some results could not be written to history, the complete report is
// returned together with an error wrapping ErrHistoryWrite.
func (s *Service) Send(ctx context.Context, msg *entity.Message) (*DispatchReport, error) {
	if err := msg.Validate(); err != nil {
		RecordMessage("invalid")
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	ctx, span := tracing.GetTracer().Start(ctx, "notify.Send", trace.WithAttributes(
		attribute.String("notify.message_id", msg.ID),
		attribute.String("notify.level", msg.Level),
		attribute.String("notify.source", msg.Source),
	))
	defer span.End()

	configs, err := s.store.List(ctx)
	if err != nil {
		RecordMessage("store_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "channel snapshot failed")
		return nil, fmt.Errorf("snapshot channel configs: %w", err)
	}

	enabled := make([]*entity.ChannelConfig, 0, len(configs))
	for _, cfg := range configs {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	SetChannelsEnabled(float64(len(enabled)))
	span.SetAttributes(attribute.Int("notify.channels", len(enabled)))

	report := &DispatchReport{MessageID: msg.ID, Results: make([]entity.DeliveryResult, len(enabled))}
	if len(enabled) == 0 {
		RecordMessage("no_channels")
		slog.DebugContext(ctx, "no notification channels enabled",
			slog.String("message_id", msg.ID))
		return report, nil
	}

	RecordMessage("dispatched")
	slog.InfoContext(ctx, "dispatching notification",
		slog.String("message_id", msg.ID),
		slog.String("level", msg.Level),
		slog.String("source", msg.Source),
		slog.Int("enabled_channels", len(enabled)))

	// History must be written even when the caller has gone away.
	historyCtx := context.WithoutCancel(ctx)

	var (
		mu          sync.Mutex
		historyErrs []error
	)
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrent)
	for i, cfg := range enabled {
		g.Go(func() error {
			res := s.deliver(ctx, msg, cfg)
			report.Results[i] = res

			if err := s.history.Append(historyCtx, msg, res); err != nil {
				RecordHistoryWriteFailure()
				slog.ErrorContext(ctx, "failed to record delivery result",
					slog.String("message_id", msg.ID),
					slog.String("channel", cfg.Key().String()),
					slog.Any("error", err))
				mu.Lock()
				historyErrs = append(historyErrs, fmt.Errorf("%s: %w", cfg.Key(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(
		attribute.Int("notify.succeeded", report.Succeeded()),
		attribute.Int("notify.failed", report.Failed()),
	)
	slog.InfoContext(ctx, "notification dispatched",
		slog.String("message_id", msg.ID),
		slog.Int("succeeded", report.Succeeded()),
		slog.Int("failed", report.Failed()))

	if len(historyErrs) > 0 {
		err := fmt.Errorf("%w: %w", ErrHistoryWrite, errors.Join(historyErrs...))
		span.RecordError(err)
		return report, err
	}
	return report, nil
}

// deliver runs the retry loop for one channel and never returns an error:
// every outcome becomes a DeliveryResult.
func (s *Service) deliver(ctx context.Context, msg *entity.Message, cfg *entity.ChannelConfig) entity.DeliveryResult {
	key := cfg.Key()
	ctx, span := tracing.GetTracer().Start(ctx, "notify.deliver", trace.WithAttributes(
		attribute.String("notify.channel", cfg.Name),
		attribute.String("notify.channel_type", string(key.Type)),
	))
	defer span.End()

	activeDeliveries.Inc()
	defer activeDeliveries.Dec()

	start := time.Now()
	attempts := 0

	var err error
	adapter, ok := s.registry.Lookup(key.Type)
	if !ok {
		err = fmt.Errorf("%w %q", ErrNoAdapter, key.Type)
	} else {
		breaker := s.breakerFor(cfg)
		err = retry.WithBackoff(ctx, s.retry, func() error {
			attempts++
			return breaker.Do(func() error {
				return s.attempt(ctx, adapter, msg, cfg)
			})
		})
	}

	duration := time.Since(start)
	var res entity.DeliveryResult
	if err == nil {
		res = entity.NewSuccess(key, attempts, s.now())
		slog.InfoContext(ctx, "channel delivery succeeded",
			slog.String("message_id", msg.ID),
			slog.String("channel", cfg.Name),
			slog.String("type", string(key.Type)),
			slog.Int("attempts", attempts),
			slog.Duration("duration", duration))
	} else {
		res = entity.NewFailure(key, diagnose(ctx, err), attempts, s.now())
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Error)
		slog.WarnContext(ctx, "channel delivery failed",
			slog.String("message_id", msg.ID),
			slog.String("channel", cfg.Name),
			slog.String("type", string(key.Type)),
			slog.Int("attempts", attempts),
			slog.Duration("duration", duration),
			slog.String("error", res.Error))
	}
	span.SetAttributes(attribute.Int("notify.attempts", attempts))
	RecordDelivery(string(key.Type), res.Succeeded(), attempts, duration)
	return res
}

// attempt makes a single adapter call under the attempt timeout.
func (s *Service) attempt(ctx context.Context, adapter Adapter, msg *entity.Message, cfg *entity.ChannelConfig) (err error) {
	actx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic in channel adapter",
				slog.String("message_id", msg.ID),
				slog.String("channel", cfg.Key().String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = &panicError{value: r}
		}
	}()

	err = adapter.Deliver(actx, msg, cfg.Clone())
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", errDispatchAborted, err)
	case errors.Is(actx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", errAttemptTimeout, err)
	}
	return err
}

// channelBreaker is the breaker of one channel and the settings it was
// built for.
type channelBreaker struct {
	cb       *circuitbreaker.CircuitBreaker
	settings entity.ChannelSettings
}

// Forget drops the breaker of key, so the next delivery starts closed.
// Call it when a config is changed or deleted.
func (s *Service) Forget(key entity.ChannelKey) {
	s.breakersMu.Lock()
	defer s.breakersMu.Unlock()
	delete(s.breakers, key)
}

// breakerFor returns the breaker of cfg's channel. A breaker built for other
// settings is replaced: the config was edited, possibly by another process.
func (s *Service) breakerFor(cfg *entity.ChannelConfig) *circuitbreaker.CircuitBreaker {
	key := cfg.Key()

	s.breakersMu.Lock()
	defer s.breakersMu.Unlock()

	if b, ok := s.breakers[key]; ok {
		if reflect.DeepEqual(b.settings, cfg.Settings) {
			return b.cb
		}
		slog.Info("channel settings changed, resetting circuit breaker", slog.String("channel", key.String()))
	}

	bcfg := s.breakerConfig(key.String())
	bcfg.IsSuccessful = func(err error) bool {
		// a caller going away says nothing about the channel
		return err == nil || errors.Is(err, errDispatchAborted)
	}
	bcfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		if to == gobreaker.StateOpen {
			RecordCircuitBreakerOpen(string(key.Type))
		}
	}
	cb := circuitbreaker.New(bcfg)
	s.breakers[key] = &channelBreaker{cb: cb, settings: cfg.Clone().Settings}
	return cb
}

// isRetryableDelivery excludes timeouts, cancellations, open breakers and
// panics, then defers to retry.IsRetryable.
func isRetryableDelivery(err error) bool {
	var pe *panicError
	switch {
	case circuitbreaker.IsRejected(err):
		return false
	case errors.Is(err, errAttemptTimeout), errors.Is(err, errDispatchAborted):
		return false
	case isTimeout(err):
		return false
	case errors.As(err, &pe):
		return false
	}
	return retry.IsRetryable(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// diagnose maps a delivery error to the text stored in history.
func diagnose(parent context.Context, err error) string {
	switch {
	case parent.Err() != nil, errors.Is(err, errDispatchAborted):
		return entity.DiagnosticCancelled
	case circuitbreaker.IsRejected(err):
		return DiagnosticCircuitOpen
	case errors.Is(err, errAttemptTimeout), isTimeout(err):
		return entity.DiagnosticTimeout
	case errors.Is(err, context.Canceled):
		return entity.DiagnosticCancelled
	}

	// attempts are reported separately
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		err = exhausted.Err
	}
	msg := logging.Redact(err.Error())
	if len(msg) > maxDiagnosticLength {
		msg = strings.ToValidUTF8(msg[:maxDiagnosticLength], "") + "..."
	}
	return msg
}
