package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats is the snapshot served on /debug/stats and logged by the reporter.
type Stats struct {
	MessagesAppended    uint64 `json:"messages_appended"`
	AppendFailures      uint64 `json:"append_failures"`
	Delivered           uint64 `json:"delivered"`
	Dropped             uint64 `json:"dropped"`
	ActiveConnections   int64  `json:"active_connections"`
	ActiveSubscriptions int    `json:"active_subscriptions"`
	Goroutines          int    `json:"goroutines"`
	AllocMemMb          uint64 `json:"alloc_mem_mb"`
	RSSMb               uint64 `json:"rss_mb"`
	NumGC               uint32 `json:"num_gc"`
	Uptime              string `json:"uptime"`
}

// Monitor aggregates the chat counters. All methods are safe for concurrent use.
type Monitor struct {
	log       *slog.Logger
	startedAt time.Time

	appended    atomic.Uint64
	failures    atomic.Uint64
	delivered   atomic.Uint64
	dropped     atomic.Uint64
	connections atomic.Int64

	mu            sync.RWMutex
	subscriptions func() int
	proc          *process.Process
}

func NewMonitor(log *slog.Logger) *Monitor {
	m := &Monitor{log: log, startedAt: time.Now()}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process metrics unavailable", "error", err)
	} else {
		m.proc = proc
	}
	return m
}

// WatchSubscriptions plugs the registry counter into the snapshot.
func (m *Monitor) WatchSubscriptions(count func() int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = count
}

func (m *Monitor) IncrAppended()       { m.appended.Add(1) }
func (m *Monitor) IncrAppendFailures() { m.failures.Add(1) }
func (m *Monitor) IncrDelivered()      { m.delivered.Add(1) }
func (m *Monitor) IncrDropped()        { m.dropped.Add(1) }
func (m *Monitor) ConnectionOpened()   { m.connections.Add(1) }
func (m *Monitor) ConnectionClosed()   { m.connections.Add(-1) }

func (m *Monitor) Snapshot() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := Stats{
		MessagesAppended:  m.appended.Load(),
		AppendFailures:    m.failures.Load(),
		Delivered:         m.delivered.Load(),
		Dropped:           m.dropped.Load(),
		ActiveConnections: m.connections.Load(),
		Goroutines:        runtime.NumGoroutine(),
		AllocMemMb:        mem.Alloc / 1024 / 1024,
		NumGC:             mem.NumGC,
		Uptime:            time.Since(m.startedAt).Round(time.Second).String(),
	}

	m.mu.RLock()
	if m.subscriptions != nil {
		stats.ActiveSubscriptions = m.subscriptions()
	}
	proc := m.proc
	m.mu.RUnlock()

	if proc != nil {
		if info, err := proc.MemoryInfo(); err == nil {
			stats.RSSMb = info.RSS / 1024 / 1024
		}
	}
	return stats
}
