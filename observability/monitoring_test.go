package observability

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Snapshot_Counts(t *testing.T) {
	req := require.New(t)
	monitor := NewMonitor(logs.GetLoggerFromLevel(slog.LevelDebug))
	monitor.WatchSubscriptions(func() int { return 3 })

	// Given counters incremented from several goroutines
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitor.IncrAppended()
			monitor.IncrDelivered()
			monitor.IncrDelivered()
		}()
	}
	wg.Wait()
	monitor.IncrAppendFailures()
	monitor.IncrDropped()
	monitor.ConnectionOpened()
	monitor.ConnectionOpened()
	monitor.ConnectionClosed()

	// When a snapshot is taken
	stats := monitor.Snapshot()

	// Then
	req.Equal(uint64(10), stats.MessagesAppended)
	req.Equal(uint64(20), stats.Delivered)
	req.Equal(uint64(1), stats.AppendFailures)
	req.Equal(uint64(1), stats.Dropped)
	req.Equal(int64(1), stats.ActiveConnections)
	req.Equal(3, stats.ActiveSubscriptions)
	req.Positive(stats.Goroutines)
}
