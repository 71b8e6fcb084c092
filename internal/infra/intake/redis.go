package intake

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ListClient is the subset of *redis.Client the Redis consumer needs.
type ListClient interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisConsumer pops payloads from a Redis list. Producers RPUSH; a payload
// whose dispatch fails is pushed back to the tail so it is retried after the
// messages already waiting.
type RedisConsumer struct {
	client     ListClient
	key        string
	handler    *Handler
	popTimeout time.Duration
	retryDelay time.Duration
}

// NewRedisConsumer creates a consumer for key. popTimeout bounds one BLPOP so
// shutdown is noticed; retryDelay is the pause after a failed dispatch or a
// Redis error.
func NewRedisConsumer(client ListClient, key string, handler *Handler, popTimeout, retryDelay time.Duration) *RedisConsumer {
	return &RedisConsumer{
		client:     client,
		key:        key,
		handler:    handler,
		popTimeout: popTimeout,
		retryDelay: retryDelay,
	}
}

// Run consumes until ctx is cancelled. It only returns nil.
func (c *RedisConsumer) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "redis intake started", slog.String("key", c.key))
	for ctx.Err() == nil {
		res, err := c.client.BLPop(ctx, c.popTimeout, c.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.ErrorContext(ctx, "redis BLPOP failed", slog.String("key", c.key), slog.Any("error", err))
			sleep(ctx, c.retryDelay)
			continue
		}
		// BLPOP returns [key, value].
		if len(res) != 2 {
			continue
		}
		c.process(ctx, res[1])
	}
	slog.InfoContext(ctx, "redis intake stopped", slog.String("key", c.key))
	return nil
}

func (c *RedisConsumer) process(ctx context.Context, body string) {
	err := c.handler.Handle(ctx, []byte(body))
	if err == nil {
		return
	}

	slog.WarnContext(ctx, "intake dispatch failed, re-queueing",
		slog.String("key", c.key),
		slog.Any("error", err))
	if perr := c.client.RPush(context.WithoutCancel(ctx), c.key, body).Err(); perr != nil {
		recordMessage(DriverRedis, outcomeDropped)
		slog.ErrorContext(ctx, "failed to re-queue intake message, message lost",
			slog.String("key", c.key),
			slog.Any("error", perr))
		return
	}
	recordMessage(DriverRedis, outcomeRequeued)
	sleep(ctx, c.retryDelay)
}
