package fanout

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBridge is the EventPublisher the pipeline and rules packages
// publish into, and also the subscriber that re-broadcasts every message
// into the local Hub. Publishing through Redis rather than calling the
// Hub directly means every daemon replica's WebSocket clients see the
// same event, not just the replica that happened to run the job.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	log    zerolog.Logger
}

func NewRedisBridge(client *redis.Client, hub *Hub, log zerolog.Logger) *RedisBridge {
	return &RedisBridge{client: client, hub: hub, log: log.With().Str("component", "fanout-redis").Logger()}
}

// Publish implements pipeline.EventPublisher.
func (b *RedisBridge) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

// Run subscribes to channel and forwards every message to the hub until
// ctx is cancelled. Intended to run for the daemon's lifetime in its own
// goroutine.
func (b *RedisBridge) Run(ctx context.Context, channel string) error {
	sub := b.client.Subscribe(ctx, channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.hub.Broadcast([]byte(msg.Payload))
		}
	}
}
