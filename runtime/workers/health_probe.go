package workers

import (
	"context"
	"job-chat/contract"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name the chat service is registered under in the
// gRPC health service.
const ServiceName = "jobchat.Chat"

// HealthProbe pings the message store and publishes the result on the gRPC
// health service, both for the overall server and for ServiceName.
type HealthProbe struct {
	log        *slog.Logger
	repository contract.IMessageRepository
	health     *health.Server
	interval   time.Duration
	serving    *bool
}

func NewHealthProbe(log *slog.Logger, repository contract.IMessageRepository,
	health *health.Server, interval time.Duration) *HealthProbe {
	return &HealthProbe{log: log, repository: repository, health: health, interval: interval}
}

func (w *HealthProbe) Run(ctx context.Context) error {
	w.probe(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.set(healthpb.HealthCheckResponse_NOT_SERVING)
			return nil
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *HealthProbe) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	err := w.repository.Ping(pingCtx)
	serving := err == nil
	if w.serving == nil || *w.serving != serving {
		if serving {
			w.log.Info("Message store reachable")
		} else {
			w.log.Error("Message store unreachable", "error", err)
		}
	}
	w.serving = &serving

	if serving {
		w.set(healthpb.HealthCheckResponse_SERVING)
		return
	}
	w.set(healthpb.HealthCheckResponse_NOT_SERVING)
}

func (w *HealthProbe) set(status healthpb.HealthCheckResponse_ServingStatus) {
	w.health.SetServingStatus("", status)
	w.health.SetServingStatus(ServiceName, status)
}
