package workers

import (
	"context"
	"log/slog"
	"order-chat/observability"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker samples the server process and feeds the monitoring manager.
type HeartbeatWorker struct {
	log        *slog.Logger
	interval   time.Duration
	monitoring *observability.MonitoringManager
}

func NewHeartbeatWorker(log *slog.Logger, interval time.Duration, monitoring *observability.MonitoringManager) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, interval: interval, monitoring: monitoring}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	w.sample(p)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sample(p)
		}
	}
}

func (w *HeartbeatWorker) sample(p *process.Process) {
	stats, err := selfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "err", err)
		return
	}
	w.monitoring.UpdateProcess(stats)
}

// selfStats retrieves memory, CPU and OS status for the given process.
func selfStats(p *process.Process) (observability.ProcessStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return observability.ProcessStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return observability.ProcessStats{}, err
	}
	status, err := p.Status()
	if err != nil {
		return observability.ProcessStats{}, err
	}
	return observability.ProcessStats{
		Pid:        p.Pid,
		Status:     status,
		CPUPercent: cpuPercent,
		RSSBytes:   memInfo.RSS,
	}, nil
}
