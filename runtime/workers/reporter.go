package workers

import (
	"context"
	"job-chat/observability"
	"log/slog"
	"time"
)

type snapshotter interface {
	Snapshot() observability.Stats
}

// Reporter logs the chat counters every interval and once more on shutdown.
type Reporter struct {
	log      *slog.Logger
	stats    snapshotter
	interval time.Duration
}

func NewReporter(log *slog.Logger, stats snapshotter, interval time.Duration) *Reporter {
	return &Reporter{log: log, stats: stats, interval: interval}
}

func (w *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report()
			return nil
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *Reporter) report() {
	stats := w.stats.Snapshot()
	w.log.Info("📊 Chat stats",
		"uptime", stats.Uptime,
		"appended", stats.MessagesAppended,
		"append_failures", stats.AppendFailures,
		"delivered", stats.Delivered,
		"dropped", stats.Dropped,
		"connections", stats.ActiveConnections,
		"subscriptions", stats.ActiveSubscriptions,
		"goroutines", stats.Goroutines,
		"alloc_mb", stats.AllocMemMb,
		"rss_mb", stats.RSSMb,
	)
}
