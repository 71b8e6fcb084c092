// Package notify fans a notification message out to every enabled channel.
//
// The dispatch engine snapshots the channel store, delivers through the
// adapter registered for each channel type, and records one history entry per
// channel. Each channel is isolated: a slow, failing or panicking adapter only
// affects its own result. Retries, per-attempt timeouts and a per-channel
// circuit breaker are applied here, never inside adapters.
package notify

import (
	"context"
	"slices"
	"sync"

	"notify-dispatch/internal/domain/entity"
)

// Adapter delivers a message through one channel type.
//
// Contract:
//   - Deliver returns nil only when the remote side accepted the message
//   - Deliver must respect ctx cancellation and deadline
//   - errors worth retrying implement Temporary() bool
//   - implementations are safe for concurrent use
type Adapter interface {
	Type() entity.ChannelType
	Deliver(ctx context.Context, msg *entity.Message, cfg *entity.ChannelConfig) error
}

// Registry maps a channel type to its adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[entity.ChannelType]Adapter
}

// NewRegistry returns a registry holding adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[entity.ChannelType]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds a, replacing any adapter already registered for its type.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Type()] = a
}

// Lookup returns the adapter for t.
func (r *Registry) Lookup(t entity.ChannelType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[t]
	return a, ok
}

// Types returns the registered channel types, sorted.
func (r *Registry) Types() []entity.ChannelType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.ChannelType, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
