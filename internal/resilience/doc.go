// Package resilience holds the fault tolerance helpers used around channel
// deliveries and queue intake: per-channel circuit breakers and retry with
// exponential backoff.
//
//	cb := circuitbreaker.New(circuitbreaker.ChannelConfig("dingtalk/ops"))
//	err := retry.WithBackoff(ctx, retry.DeliveryConfig(), func() error {
//	    return cb.Do(deliver)
//	})
package resilience
