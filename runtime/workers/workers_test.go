package workers

import (
	"bytes"
	"context"
	"fmt"
	"job-chat/contract"
	"job-chat/domain/chat"
	"job-chat/mocks"
	"job-chat/observability"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fixedStats struct{ stats observability.Stats }

func (f fixedStats) Snapshot() observability.Stats { return f.stats }

func TestReporter_Logs_Stats_Until_Cancelled(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	reporter := NewReporter(log, fixedStats{observability.Stats{MessagesAppended: 42, Delivered: 84}}, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	req.NoError(reporter.Run(ctx))
	req.Contains(buf.String(), `"appended":42`)
	req.Contains(buf.String(), `"delivered":84`)
}

func TestBusRelay_Feeds_Local_Broadcaster(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	feed := mocks.NewMockIMessageFeed(ctrl)
	broadcaster := mocks.NewMockIBroadcaster(ctrl)
	message := chat.Message{ID: 1, Key: chat.ConversationKey{CompanyID: "C1", StudentID: "S1"},
		Sender: chat.SenderCompany, Body: "Hello", CreatedAt: time.Now().UTC()}

	// Given a feed delivering one message then breaking
	feed.EXPECT().Subscribe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, handler contract.MessageHandler) error {
			req.NoError(handler(ctx, message))
			return fmt.Errorf("connection reset")
		})
	broadcaster.EXPECT().Publish(gomock.Any(), message).Return(nil)

	// When the relay runs
	err := NewBusRelay(log, feed, broadcaster).Run(context.Background())

	// Then the message reached the broadcaster and the failure is reported for a restart
	req.ErrorContains(err, "connection reset")
}

func TestBusRelay_Stops_Quietly_On_Cancel(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	feed := mocks.NewMockIMessageFeed(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	feed.EXPECT().Subscribe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ contract.MessageHandler) error {
			cancel()
			return ctx.Err()
		})

	req.NoError(NewBusRelay(log, feed, mocks.NewMockIBroadcaster(ctrl)).Run(ctx))
}

func TestHealthProbe_Follows_Store_Reachability(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	repository := mocks.NewMockIMessageRepository(ctrl)
	server := health.NewServer()
	probe := NewHealthProbe(log, repository, server, time.Second)
	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := server.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		req.NoError(err)
		return resp.GetStatus()
	}

	// Given a reachable store
	repository.EXPECT().Ping(gomock.Any()).Return(nil)
	probe.probe(context.Background())
	req.Equal(healthpb.HealthCheckResponse_SERVING, check())

	// When the store goes away
	repository.EXPECT().Ping(gomock.Any()).Return(fmt.Errorf("closed"))
	probe.probe(context.Background())

	// Then the service is reported as not serving
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, check())
}
