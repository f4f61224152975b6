package workers

import (
	"context"
	"log/slog"
	"os"
	"peer-chat/observability"
	"peer-chat/runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

type registryStats interface {
	Stats() runtime.Stats
}

type typingCounter interface {
	TypingCount() int
}

// HeartbeatWorker samples the process and the realtime bindings at a fixed interval
// and feeds the monitoring snapshot served on /debug/stats.
type HeartbeatWorker struct {
	log        *slog.Logger
	registry   registryStats
	presence   typingCounter
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewHeartbeatWorker(
	log *slog.Logger,
	registry registryStats,
	presence typingCounter,
	monitoring *observability.MonitoringManager,
	interval time.Duration,
) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:        log,
		registry:   registry,
		presence:   presence,
		monitoring: monitoring,
		interval:   interval,
	}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Sample(p)
		}
	}
}

// Sample reads one round of metrics. Process stats failures are logged and reported as zero.
func (w *HeartbeatWorker) Sample(p *process.Process) {
	sample, err := getSelfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "err", err)
	}
	stats := w.registry.Stats()
	w.monitoring.Update(sample, observability.RealtimeSample{
		Connections: stats.Connections,
		Users:       stats.Users,
		Rooms:       stats.Rooms,
		TypingPairs: w.presence.TypingCount(),
	})
}

func getSelfStats(p *process.Process) (observability.ProcessSample, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return observability.ProcessSample{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return observability.ProcessSample{}, err
	}
	return observability.ProcessSample{RSSBytes: memInfo.RSS, CPUPercent: cpuPercent}, nil
}
