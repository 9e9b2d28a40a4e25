// Package observability aggregates runtime counters and process self-stats
// for the monitoring endpoint and the telemetry worker.
package observability

import (
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Metrics holds the live counters mutated by the hub and the services.
// All fields are atomic; Snapshot is safe from any goroutine.
type Metrics struct {
	Connects        atomic.Int64
	Disconnects     atomic.Int64
	EventsDelivered atomic.Int64
	SinksDropped    atomic.Int64
	MessagesStored  atomic.Int64
	BotReplies      atomic.Int64
	BotFailures     atomic.Int64

	startedAt time.Time
	proc      *process.Process
}

// Snapshot is the JSON shape served by GET /v1/monitoring.
type Snapshot struct {
	UptimeSeconds   int64   `json:"uptime_seconds"`
	Connects        int64   `json:"connects_total"`
	Disconnects     int64   `json:"disconnects_total"`
	EventsDelivered int64   `json:"events_delivered_total"`
	SinksDropped    int64   `json:"sinks_dropped_total"`
	MessagesStored  int64   `json:"messages_stored_total"`
	BotReplies      int64   `json:"bot_replies_total"`
	BotFailures     int64   `json:"bot_failures_total"`
	Goroutines      int     `json:"goroutines"`
	AllocMB         uint64  `json:"alloc_mb"`
	NumGC           uint32  `json:"num_gc"`
	RSSMB           uint64  `json:"rss_mb"`
	CPUPercent      float64 `json:"cpu_percent"`
}

func NewMetrics() (*Metrics, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Metrics{startedAt: time.Now(), proc: p}, nil
}

// Snapshot collects counter values plus memory and CPU self-stats.
// gopsutil failures degrade to zeroed process fields; the counters are
// always reported.
func (m *Metrics) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Snapshot{
		UptimeSeconds:   int64(time.Since(m.startedAt).Seconds()),
		Connects:        m.Connects.Load(),
		Disconnects:     m.Disconnects.Load(),
		EventsDelivered: m.EventsDelivered.Load(),
		SinksDropped:    m.SinksDropped.Load(),
		MessagesStored:  m.MessagesStored.Load(),
		BotReplies:      m.BotReplies.Load(),
		BotFailures:     m.BotFailures.Load(),
		Goroutines:      runtime.NumGoroutine(),
		AllocMB:         mem.Alloc / 1024 / 1024,
		NumGC:           mem.NumGC,
	}

	if m.proc != nil {
		if info, err := m.proc.MemoryInfo(); err == nil && info != nil {
			s.RSSMB = info.RSS / 1024 / 1024
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			s.CPUPercent = cpu
		}
	}
	return s
}
