package notify

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"notify-dispatch/internal/domain/entity"
)

// ChannelHealthStatus is the circuit breaker view of one stored channel.
type ChannelHealthStatus struct {
	Name                string
	Type                entity.ChannelType
	Enabled             bool
	State               string // closed, half-open or open
	CircuitBreakerOpen  bool
	ConsecutiveFailures uint32
}

// ChannelHealth reports the breaker state of every stored channel, in store
// order. Channels that have not been used yet report closed.
func (s *Service) ChannelHealth(ctx context.Context) ([]ChannelHealthStatus, error) {
	configs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channel configs: %w", err)
	}

	s.breakersMu.Lock()
	defer s.breakersMu.Unlock()

	statuses := make([]ChannelHealthStatus, 0, len(configs))
	for _, cfg := range configs {
		status := ChannelHealthStatus{
			Name:    cfg.Name,
			Type:    cfg.Type(),
			Enabled: cfg.Enabled,
			State:   gobreaker.StateClosed.String(),
		}
		if b, ok := s.breakers[cfg.Key()]; ok {
			snap := b.cb.Snapshot()
			status.State = snap.State.String()
			status.CircuitBreakerOpen = snap.Open
			status.ConsecutiveFailures = snap.ConsecutiveFailures
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
