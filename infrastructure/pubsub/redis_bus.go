package pubsub

import (
	"context"
	"fmt"
	"job-chat/contract"
	"job-chat/domain/chat"
	"job-chat/repositories"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

const DefaultChannel = "job-chat:messages"

// RedisBus fans persisted messages out through a Redis channel so that every
// instance sharing the store delivers to its own connections.
// Publish is the broadcaster of the dispatcher, Subscribe feeds the relay.
type RedisBus struct {
	log     *slog.Logger
	client  *redis.Client
	channel string
}

func NewRedisBus(log *slog.Logger, client *redis.Client, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{log: log, client: client, channel: channel}
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (b *RedisBus) Publish(ctx context.Context, message chat.Message) error {
	if err := b.client.Publish(ctx, b.channel, repositories.EncodeMessage(message)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", message.Key, err)
	}
	return nil
}

// Subscribe blocks, handing every decoded message to handler, until ctx is
// done or the subscription breaks. Undecodable payloads are logged and skipped.
func (b *RedisBus) Subscribe(ctx context.Context, handler contract.MessageHandler) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	// Wait for the confirmation so nothing published after this point is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription to %s closed", b.channel)
			}
			message, err := repositories.DecodeMessage([]byte(raw.Payload))
			if err != nil {
				b.log.Warn("Dropping undecodable bus payload", "channel", b.channel, "error", err)
				continue
			}
			if err := handler(ctx, message); err != nil {
				b.log.Debug("Bus handler failed", "conversation", message.Key.String(), "error", err)
			}
		}
	}
}
