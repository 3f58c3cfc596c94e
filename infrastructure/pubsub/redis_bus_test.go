package pubsub

import (
	"context"
	"job-chat/domain/chat"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, server *miniredis.Miniredis) *redis.Client {
	t.Helper()
	client, err := NewRedisClient(context.Background(), server.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisBus_Relays_Between_Instances(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	server := miniredis.RunT(t)

	// Given two instances sharing the same Redis
	publisher := NewRedisBus(log, newClient(t, server), "")
	subscriber := NewRedisBus(log, newClient(t, server), "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	received := make(chan chat.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- subscriber.Subscribe(ctx, func(_ context.Context, message chat.Message) error {
			received <- message
			return nil
		})
	}()
	req.Eventually(func() bool {
		return len(server.PubSubChannels(DefaultChannel)) == 1
	}, time.Second, 5*time.Millisecond)

	// When the first instance publishes
	sent := chat.Message{ID: 3, Key: chat.ConversationKey{CompanyID: "C1", StudentID: "S1"},
		Sender: chat.SenderStudent, Body: "Hi back", CreatedAt: time.Unix(0, 1_700_000_000_000_000_000).UTC()}
	req.NoError(publisher.Publish(ctx, sent))

	// Then the second one hands the decoded message to its handler
	select {
	case got := <-received:
		req.Equal(sent, got)
	case <-time.After(2 * time.Second):
		req.Fail("message never relayed")
	}

	cancel()
	req.ErrorIs(<-done, context.Canceled)
}

func TestRedisBus_Skips_Garbage(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	server := miniredis.RunT(t)
	bus := NewRedisBus(log, newClient(t, server), "chat-test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	received := make(chan chat.Message, 2)
	go func() {
		_ = bus.Subscribe(ctx, func(_ context.Context, message chat.Message) error {
			received <- message
			return nil
		})
	}()
	req.Eventually(func() bool {
		return len(server.PubSubChannels("chat-test")) == 1
	}, time.Second, 5*time.Millisecond)

	// Given a foreign payload followed by a real message
	server.Publish("chat-test", "\xff\xff\xff")
	valid := chat.Message{ID: 1, Key: chat.ConversationKey{CompanyID: "C1", StudentID: "S1"},
		Sender: chat.SenderCompany, Body: "Hello", CreatedAt: time.Unix(0, 42).UTC()}
	req.NoError(bus.Publish(ctx, valid))

	// Then only the real message comes through
	select {
	case got := <-received:
		req.Equal(valid, got)
	case <-time.After(2 * time.Second):
		req.Fail("message never relayed")
	}
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, err := NewRedisClient(context.Background(), addr)
	require.Error(t, err)
}
